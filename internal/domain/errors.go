package domain

import "errors"

var (
	// ErrInvalidQuery signals an empty or malformed query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidDocument signals a knowledge-base document that cannot be indexed.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrBatchTooLarge signals an ingestion batch above the configured limit.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrCompletionQuotaExceeded signals an exhausted completion token budget.
	ErrCompletionQuotaExceeded = errors.New("completion quota exceeded")
	// ErrCompletionProviderError signals a chat completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrTranslationFailed signals a translation or language detection failure.
	ErrTranslationFailed = errors.New("translation failed")
	// ErrMemoryUnavailable signals that conversation memory is not configured.
	ErrMemoryUnavailable = errors.New("conversation memory unavailable")
)
