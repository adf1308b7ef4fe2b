package openai

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/kailas-cloud/polyqa/internal/domain"
)

const (
	detectInstruction = "Identify the natural language of the user's message. " +
		"Reply with the English name of that language in lower case, one word, nothing else " +
		"(for example: english, spanish, german). If you cannot tell, reply with unknown."

	translateInstruction = "Translate the user's message into English. " +
		"Output only the translation, without quotes, notes or explanations. " +
		"If the message is already in English, repeat it unchanged."
)

// Translator detects languages and translates text by prompting a chat model.
// It rides on any domain.Completer, so its calls share the completion budget.
type Translator struct {
	completer domain.Completer
	model     string
}

// NewTranslator creates an LLM-backed translator. model may be empty to use the completer default.
func NewTranslator(completer domain.Completer, model string) *Translator {
	return &Translator{completer: completer, model: model}
}

// DetectLanguage returns a lower-case English language name, or "unknown".
func (t *Translator) DetectLanguage(ctx context.Context, text string) (domain.LanguageTag, error) {
	out, err := t.ask(ctx, detectInstruction, text, 8)
	if err != nil {
		return "", fmt.Errorf("detect language: %w", err)
	}
	return NormalizeLanguageName(out), nil
}

// TranslateToEnglish returns the English rendering of text.
func (t *Translator) TranslateToEnglish(ctx context.Context, text string) (string, error) {
	out, err := t.ask(ctx, translateInstruction, text, 0)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty translation: %w", domain.ErrTranslationFailed)
	}
	return out, nil
}

func (t *Translator) ask(ctx context.Context, instruction, text string, maxTokens int) (string, error) {
	res, err := t.completer.Complete(ctx, domain.CompletionRequest{
		Model: t.model,
		Messages: []domain.PromptMessage{
			{Role: domain.RoleSystem, Content: instruction},
			{Role: domain.RoleUser, Content: text},
		},
		Temperature: 0,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTranslationFailed, err)
	}
	return res.Text, nil
}

// NormalizeLanguageName reduces a model reply such as " Spanish.\n" to "spanish".
// Anything that is not a single alphabetic word becomes "unknown".
func NormalizeLanguageName(s string) domain.LanguageTag {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if s == "" || strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
		return domain.LanguageUnknown
	}
	return domain.LanguageTag(s)
}
