package completion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/polyqa/internal/domain"
	"github.com/kailas-cloud/polyqa/internal/logger"
	"github.com/kailas-cloud/polyqa/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedCompleter wraps a Completer with budget enforcement, per-request usage
// accounting and logging. Transport metrics are recorded in transport/openai.
type InstrumentedCompleter struct {
	inner    domain.Completer
	provider string
	budget   BudgetChecker
}

// NewInstrumentedCompleter wraps inner. budget may be nil.
func NewInstrumentedCompleter(inner domain.Completer, provider string, budget BudgetChecker) *InstrumentedCompleter {
	return &InstrumentedCompleter{inner: inner, provider: provider, budget: budget}
}

// Complete checks the budget, delegates, then records tokens.
func (c *InstrumentedCompleter) Complete(
	ctx context.Context, req domain.CompletionRequest,
) (domain.CompletionResult, error) {
	log := logger.FromContext(ctx)

	if c.budget != nil {
		if err := c.budget.Check(ctx); err != nil {
			log.Error("Completion budget exceeded",
				zap.String("provider", c.provider),
				zap.String("model", req.Model),
				zap.Error(err),
			)
			return domain.CompletionResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()
	result, err := c.inner.Complete(ctx, req)
	duration := time.Since(start)

	if err != nil {
		log.Error("Completion request failed",
			zap.String("provider", c.provider),
			zap.String("model", req.Model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.CompletionResult{}, fmt.Errorf("complete: %w", err)
	}

	domain.UsageFromContext(ctx).AddCompletion(result.TotalTokens)

	if c.budget != nil && result.TotalTokens > 0 {
		c.budget.Record(int64(result.TotalTokens))
		metrics.CompletionBudgetTokensRemaining.WithLabelValues("daily").Set(float64(c.budget.RemainingDaily()))
		metrics.CompletionBudgetTokensRemaining.WithLabelValues("monthly").Set(float64(c.budget.RemainingMonthly()))
	}

	log.Debug("Completion request completed",
		zap.String("provider", c.provider),
		zap.String("model", req.Model),
		zap.Duration("duration", duration),
		zap.Int("messages", len(req.Messages)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
	)

	return result, nil
}
