package query

import (
	"strings"

	"github.com/kailas-cloud/polyqa/internal/domain"
)

// NoInformationReply is what the model is told to say when the context has no answer.
const NoInformationReply = "I don't have information about that in my knowledge base"

const contextSeparator = "\n\n"

// BuildContext joins document contents in retrieval order, separated by a blank line.
// Nothing is trimmed, deduplicated or capped.
func BuildContext(docs []domain.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, contextSeparator)
}

// SystemPrompt embeds the context block between the role description and the English-only rule.
func SystemPrompt(contextBlock string) string {
	var b strings.Builder
	b.WriteString("You are a helpful customer support assistant.\n")
	b.WriteString("Use the following context to answer the user's question.\n\n")
	b.WriteString("CONTEXT:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\n")
	b.WriteString("CRITICAL INSTRUCTION: You must ALWAYS answer in English. Do not use any other language.\n")
	b.WriteString("Even if the context is in Spanish, French, or another language, ")
	b.WriteString("translate the relevant information and answer ONLY in English.\n")
	b.WriteString("If you don't know the answer based on the context, say \"")
	b.WriteString(NoInformationReply)
	b.WriteString("\" in English.\n")
	return b.String()
}

// BuildMessages returns the system message, then any prior turns, then the user question.
// With no history this is exactly two messages.
func BuildMessages(contextBlock, workingQuery string, history []domain.Turn) []domain.PromptMessage {
	msgs := make([]domain.PromptMessage, 0, len(history)+2)
	msgs = append(msgs, domain.PromptMessage{Role: domain.RoleSystem, Content: SystemPrompt(contextBlock)})
	for _, t := range history {
		msgs = append(msgs, domain.PromptMessage{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, domain.PromptMessage{Role: domain.RoleUser, Content: workingQuery})
	return msgs
}
