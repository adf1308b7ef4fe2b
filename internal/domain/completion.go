package domain

import "context"

// Role is the author of a prompt message.
type Role string

const (
	// RoleSystem carries instructions and context.
	RoleSystem Role = "system"
	// RoleUser carries the question.
	RoleUser Role = "user"
	// RoleAssistant carries a previous answer.
	RoleAssistant Role = "assistant"
)

// PromptMessage is one entry of a chat completion request.
type PromptMessage struct {
	Role    Role
	Content string
}

// CompletionRequest is the full input of a chat completion call.
type CompletionRequest struct {
	Model       string
	Messages    []PromptMessage
	Temperature float32
	MaxTokens   int
}

// CompletionResult carries the generated text and token usage through the decorator chain.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completer generates a chat completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}
