package domain

import "context"

type usageKey struct{}

// Usage collects tokens spent while serving one request.
// The HTTP handler places it in the context; decorators add to it; the handler reports it.
type Usage struct {
	EmbeddingTokens  int
	CompletionTokens int
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext returns the collector, or nil when none was installed.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbedding records embedding tokens. Safe on a nil receiver.
func (u *Usage) AddEmbedding(n int) {
	if u != nil {
		u.EmbeddingTokens += n
	}
}

// AddCompletion records completion tokens. Safe on a nil receiver.
func (u *Usage) AddCompletion(n int) {
	if u != nil {
		u.CompletionTokens += n
	}
}

// Total is the sum of all recorded tokens.
func (u *Usage) Total() int {
	if u == nil {
		return 0
	}
	return u.EmbeddingTokens + u.CompletionTokens
}
