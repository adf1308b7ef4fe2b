package query

import (
	"context"

	"github.com/kailas-cloud/polyqa/internal/domain"
)

// Translator resolves the language of a text and renders it in English.
type Translator interface {
	DetectLanguage(ctx context.Context, text string) (domain.LanguageTag, error)
	TranslateToEnglish(ctx context.Context, text string) (string, error)
}

// Retriever returns the k documents most similar to query, most relevant first.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]domain.Document, error)
}

// Completer generates the answer text.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error)
}

// Memory persists conversation turns per session.
type Memory interface {
	History(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
	Append(ctx context.Context, turns ...domain.Turn) error
}
