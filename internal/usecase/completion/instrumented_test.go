package completion

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/polyqa/internal/domain"
	"github.com/kailas-cloud/polyqa/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterCompletionMetrics()
	os.Exit(m.Run())
}

type mockCompleter struct {
	result domain.CompletionResult
	err    error
	calls  int
}

func (m *mockCompleter) Complete(_ context.Context, _ domain.CompletionRequest) (domain.CompletionResult, error) {
	m.calls++
	return m.result, m.err
}

func testRequest() domain.CompletionRequest {
	return domain.CompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []domain.PromptMessage{{Role: domain.RoleUser, Content: "hi"}},
	}
}

func TestInstrumentedCompleter_Success(t *testing.T) {
	inner := &mockCompleter{result: domain.CompletionResult{Text: "hello", TotalTokens: 12}}
	c := NewInstrumentedCompleter(inner, "openai", nil)

	res, err := c.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "hello" {
		t.Errorf("expected text %q, got %q", "hello", res.Text)
	}
}

func TestInstrumentedCompleter_RecordsUsageInContext(t *testing.T) {
	inner := &mockCompleter{result: domain.CompletionResult{Text: "ok", TotalTokens: 40}}
	c := NewInstrumentedCompleter(inner, "openai", nil)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	for range 2 {
		if _, err := c.Complete(ctx, testRequest()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if usage.CompletionTokens != 80 {
		t.Errorf("expected 80 completion tokens, got %d", usage.CompletionTokens)
	}
}

func TestInstrumentedCompleter_InnerError(t *testing.T) {
	inner := &mockCompleter{err: domain.ErrCompletionProviderError}
	c := NewInstrumentedCompleter(inner, "openai", nil)

	_, err := c.Complete(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrCompletionProviderError) {
		t.Fatalf("expected ErrCompletionProviderError, got %v", err)
	}
}

func TestInstrumentedCompleter_BudgetRecorded(t *testing.T) {
	bt := NewBudgetTracker("openai", 1000, 0, BudgetActionReject, zap.NewNop())
	inner := &mockCompleter{result: domain.CompletionResult{Text: "ok", TotalTokens: 250}}
	c := NewInstrumentedCompleter(inner, "openai", bt)

	if _, err := c.Complete(context.Background(), testRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bt.DailyUsed() != 250 {
		t.Errorf("expected 250 tokens recorded, got %d", bt.DailyUsed())
	}
	if bt.RemainingDaily() != 750 {
		t.Errorf("expected 750 remaining, got %d", bt.RemainingDaily())
	}
}

func TestInstrumentedCompleter_BudgetRejectsBeforeCall(t *testing.T) {
	bt := NewBudgetTracker("openai", 100, 0, BudgetActionReject, zap.NewNop())
	bt.Record(100)
	inner := &mockCompleter{result: domain.CompletionResult{Text: "ok"}}
	c := NewInstrumentedCompleter(inner, "openai", bt)

	_, err := c.Complete(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrCompletionQuotaExceeded) {
		t.Fatalf("expected ErrCompletionQuotaExceeded, got %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("inner completer must not be called, got %d calls", inner.calls)
	}
}

func TestInstrumentedCompleter_FailureNotBilled(t *testing.T) {
	bt := NewBudgetTracker("openai", 1000, 0, BudgetActionReject, zap.NewNop())
	inner := &mockCompleter{err: errors.New("boom")}
	c := NewInstrumentedCompleter(inner, "openai", bt)

	_, _ = c.Complete(context.Background(), testRequest())

	if bt.DailyUsed() != 0 {
		t.Errorf("expected no tokens recorded, got %d", bt.DailyUsed())
	}
}
