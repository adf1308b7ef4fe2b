package ingest

import (
	"context"

	"github.com/kailas-cloud/polyqa/internal/domain"
)

// KnowledgeBase stores documents with their vectors in the knowledge index.
type KnowledgeBase interface {
	EnsureIndex(ctx context.Context) error
	DropIndex(ctx context.Context) error
	Upsert(ctx context.Context, docs []domain.Document, vectors [][]float32) error
	Get(ctx context.Context, id string) (domain.Document, error)
	Delete(ctx context.Context, id string) error
}
