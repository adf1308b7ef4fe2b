package query

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/polyqa/internal/domain"
	"github.com/kailas-cloud/polyqa/internal/logger"
	"github.com/kailas-cloud/polyqa/internal/metrics"
)

// Service answers one question end to end: resolve language, translate, retrieve, complete.
// It holds no per-call state; concurrent use is as safe as the injected collaborators.
type Service struct {
	translator Translator
	retriever  Retriever
	completer  Completer
	opts       Options

	memory         Memory
	historyTurns   int
	includeHistory bool
}

// New creates a query service. Zero-valued options fall back to the package defaults.
func New(translator Translator, retriever Retriever, completer Completer, opts Options) *Service {
	return &Service{
		translator: translator,
		retriever:  retriever,
		completer:  completer,
		opts:       opts.withDefaults(),
	}
}

// WithMemory attaches conversation memory. Turns are recorded for queries that carry a
// session id; when includeHistory is set, up to historyTurns prior turns join the prompt.
func (s *Service) WithMemory(m Memory, historyTurns int, includeHistory bool) *Service {
	s.memory = m
	s.historyTurns = historyTurns
	s.includeHistory = includeHistory
	return s
}

// Options returns the effective pipeline parameters.
func (s *Service) Options() Options { return s.opts }

// Process runs the pipeline once. Collaborator failures are returned wrapped, never retried.
func (s *Service) Process(ctx context.Context, q domain.Query) (domain.QueryResult, error) {
	if err := q.Validate(); err != nil {
		return domain.QueryResult{}, err
	}
	log := logger.FromContext(ctx)

	lang, err := s.resolveLanguage(ctx, q)
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues("error").Inc()
		return domain.QueryResult{}, err
	}

	working, err := s.workingQuery(ctx, q.Text, lang)
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues("error").Inc()
		return domain.QueryResult{}, err
	}

	start := time.Now()
	docs, err := s.retriever.SimilaritySearch(ctx, working, s.opts.TopK)
	observeStage("retrieve", start)
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues("error").Inc()
		return domain.QueryResult{}, fmt.Errorf("similarity search: %w", err)
	}
	metrics.QueryRetrievedDocuments.Observe(float64(len(docs)))

	history := s.loadHistory(ctx, q.SessionID)
	msgs := BuildMessages(BuildContext(docs), working, history)

	start = time.Now()
	completion, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Model:       s.opts.Model,
		Messages:    msgs,
		Temperature: *s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	observeStage("complete", start)
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues("error").Inc()
		return domain.QueryResult{}, fmt.Errorf("complete: %w", err)
	}

	s.remember(ctx, q, working, completion.Text)
	metrics.QueryRequestsTotal.WithLabelValues("success").Inc()

	log.Debug("Query answered",
		zap.String("language", lang.String()),
		zap.Bool("translated", working != q.Text),
		zap.Int("documents", len(docs)),
		zap.Int("prompt_messages", len(msgs)),
		zap.Int("total_tokens", completion.TotalTokens),
	)

	return domain.QueryResult{
		OriginalQuery:    q.Text,
		DetectedLanguage: lang,
		TranslatedQuery:  working,
		Answer:           completion.Text,
		Sources:          sources(docs),
	}, nil
}

// resolveLanguage trusts an explicit hint verbatim and detects otherwise.
// An empty detection result is recorded as unknown, which later forces translation.
func (s *Service) resolveLanguage(ctx context.Context, q domain.Query) (domain.LanguageTag, error) {
	if !q.NeedsDetection() {
		return domain.LanguageTag(q.Language), nil
	}

	start := time.Now()
	lang, err := s.translator.DetectLanguage(ctx, q.Text)
	observeStage("detect", start)
	if err != nil {
		return "", fmt.Errorf("detect language: %w", err)
	}
	if lang == "" {
		logger.FromContext(ctx).Warn("Language detection returned no tag, assuming non-English")
		return domain.LanguageUnknown, nil
	}
	return lang, nil
}

func (s *Service) workingQuery(ctx context.Context, text string, lang domain.LanguageTag) (string, error) {
	if lang.IsCanonical() {
		return text, nil
	}

	start := time.Now()
	translated, err := s.translator.TranslateToEnglish(ctx, text)
	observeStage("translate", start)
	if err != nil {
		return "", fmt.Errorf("translate to english: %w", err)
	}
	return translated, nil
}

func (s *Service) loadHistory(ctx context.Context, sessionID string) []domain.Turn {
	if sessionID == "" || s.memory == nil || !s.includeHistory || s.historyTurns <= 0 {
		return nil
	}
	turns, err := s.memory.History(ctx, sessionID, s.historyTurns)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to load conversation history",
			zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}
	return turns
}

func (s *Service) remember(ctx context.Context, q domain.Query, working, answer string) {
	if q.SessionID == "" || s.memory == nil {
		return
	}
	user := domain.Turn{SessionID: q.SessionID, Role: domain.RoleUser, Content: working}
	if working != q.Text {
		user.Original = q.Text
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	err := s.memory.Append(ctx,
		user,
		domain.Turn{SessionID: q.SessionID, Role: domain.RoleAssistant, Content: answer, CreatedAt: now},
	)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to persist conversation turns",
			zap.String("session_id", q.SessionID), zap.Error(err))
	}
}

func sources(docs []domain.Document) []map[string]any {
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = d.Metadata
	}
	return out
}

func observeStage(stage string, start time.Time) {
	metrics.QueryStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
