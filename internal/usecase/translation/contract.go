package translation

import (
	"context"

	"github.com/kailas-cloud/polyqa/internal/domain"
)

// Detector names the language of a text.
type Detector interface {
	DetectLanguage(ctx context.Context, text string) (domain.LanguageTag, error)
}

// TextTranslator renders text in English.
type TextTranslator interface {
	TranslateToEnglish(ctx context.Context, text string) (string, error)
}
