package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/polyqa/internal/db"
	"github.com/kailas-cloud/polyqa/internal/domain"
	"github.com/kailas-cloud/polyqa/internal/logger"
)

// DefaultMaxBatchSize is the maximum number of documents per Ingest call.
const DefaultMaxBatchSize = 100

// Service loads helpdesk documents into the knowledge index.
type Service struct {
	kb           KnowledgeBase
	embed        domain.Embedder
	maxBatchSize int
}

// New creates an ingestion service. embed vectorizes document contents.
func New(kb KnowledgeBase, embed domain.Embedder) *Service {
	return &Service{kb: kb, embed: embed, maxBatchSize: DefaultMaxBatchSize}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// MaxBatchSize returns the configured batch limit.
func (s *Service) MaxBatchSize() int { return s.maxBatchSize }

// Ingest validates, vectorizes and stores docs. Either all documents are written or none.
// Returns the number of documents indexed.
func (s *Service) Ingest(ctx context.Context, docs []domain.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	if len(docs) > s.maxBatchSize {
		return 0, fmt.Errorf("%d documents, limit %d: %w", len(docs), s.maxBatchSize, domain.ErrBatchTooLarge)
	}
	if err := validate(docs); err != nil {
		return 0, err
	}

	if err := s.kb.EnsureIndex(ctx); err != nil {
		return 0, fmt.Errorf("ensure index: %w", err)
	}

	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Content
	}
	emb, err := domain.EmbedAll(ctx, s.embed, texts)
	if err != nil {
		return 0, fmt.Errorf("embed documents: %w", err)
	}
	if len(emb.Embeddings) != len(docs) {
		return 0, fmt.Errorf("embed documents: got %d vectors for %d texts: %w",
			len(emb.Embeddings), len(docs), domain.ErrEmbeddingProviderError)
	}

	if err := s.kb.Upsert(ctx, docs, emb.Embeddings); err != nil {
		return 0, fmt.Errorf("upsert documents: %w", err)
	}

	logger.FromContext(ctx).Info("Documents ingested",
		zap.Int("count", len(docs)),
		zap.Int("embedding_tokens", emb.TotalTokens),
	)
	return len(docs), nil
}

// Document returns a stored document by id.
func (s *Service) Document(ctx context.Context, id string) (domain.Document, error) {
	if !db.IsValidIdentifier(id) {
		return domain.Document{}, fmt.Errorf("id %q: %w", id, domain.ErrInvalidDocument)
	}
	doc, err := s.kb.Get(ctx, id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Delete removes a document from the knowledge base.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !db.IsValidIdentifier(id) {
		return fmt.Errorf("id %q: %w", id, domain.ErrInvalidDocument)
	}
	if err := s.kb.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	logger.FromContext(ctx).Info("Document deleted", zap.String("id", id))
	return nil
}

// Reindex drops and recreates the knowledge index so stored documents are
// indexed under the current HNSW settings.
func (s *Service) Reindex(ctx context.Context) error {
	if err := s.kb.DropIndex(ctx); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	if err := s.kb.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	logger.FromContext(ctx).Info("Knowledge index recreated")
	return nil
}

func validate(docs []domain.Document) error {
	seen := make(map[string]struct{}, len(docs))
	for i := range docs {
		d := &docs[i]
		if !db.IsValidIdentifier(d.ID) {
			return fmt.Errorf("document %d: id %q must match [a-zA-Z0-9_:-]+: %w", i, d.ID, domain.ErrInvalidDocument)
		}
		if strings.TrimSpace(d.Content) == "" {
			return fmt.Errorf("document %q: empty content: %w", d.ID, domain.ErrInvalidDocument)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("document %q: duplicate id: %w", d.ID, domain.ErrInvalidDocument)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}
