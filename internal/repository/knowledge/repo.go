package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/polyqa/internal/db"
	"github.com/kailas-cloud/polyqa/internal/domain"
)

// Hash field layout of a knowledge document.
const (
	fieldContent  = "__content"
	fieldMetadata = "__metadata"
	fieldVector   = "__vector"
	vectorAlias   = "vector"
)

// store is the consumer interface for the knowledge index.
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// IndexConfig shapes the FT index created by EnsureIndex.
type IndexConfig struct {
	Name            string
	Dimensions      int
	HNSWM           int
	HNSWEFConstruct int
}

// Repo stores helpdesk documents as hashes and answers KNN queries over them.
type Repo struct {
	store    store
	embedder domain.Embedder
	cfg      IndexConfig
}

// New creates a knowledge repository. embedder vectorizes incoming queries.
func New(s store, embedder domain.Embedder, cfg IndexConfig) *Repo {
	return &Repo{store: s, embedder: embedder, cfg: cfg}
}

// IndexName is the FT index name for the configured knowledge base.
func (r *Repo) IndexName() string {
	return domain.KeyPrefix + "kb:" + r.cfg.Name + ":idx"
}

func (r *Repo) keyPrefix() string {
	return domain.KeyPrefix + "kb:" + r.cfg.Name + ":"
}

func (r *Repo) docKey(id string) string {
	return r.keyPrefix() + id
}

// SimilaritySearch embeds query and returns the k closest documents, most similar first.
// A missing index means nothing was ingested yet and yields no documents.
func (r *Repo) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.Document, error) {
	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.IndexName(),
		Vector:       emb.Embedding,
		K:            k,
		ReturnFields: []string{fieldContent, fieldMetadata},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return []domain.Document{}, nil
		}
		return nil, fmt.Errorf("search knn %s: %w", r.cfg.Name, err)
	}

	return r.parseResults(sr)
}

func (r *Repo) parseResults(sr *db.SearchResult) ([]domain.Document, error) {
	if sr == nil || len(sr.Entries) == 0 {
		return []domain.Document{}, nil
	}

	prefix := r.keyPrefix()
	docs := make([]domain.Document, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		meta, err := decodeMetadata(entry.Fields[fieldMetadata])
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", entry.Key, err)
		}
		docs = append(docs, domain.Document{
			ID:       strings.TrimPrefix(entry.Key, prefix),
			Content:  entry.Fields[fieldContent],
			Metadata: meta,
			Score:    entry.Score,
		})
	}
	return docs, nil
}

// EnsureIndex creates the knowledge index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.IndexName(), err)
	}
	if exists {
		return nil
	}

	def, err := r.indexDefinition()
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.IndexName(), err)
	}
	return nil
}

// DropIndex removes the FT index. Document hashes are kept and the next EnsureIndex
// re-indexes them under the current configuration. A missing index is not an error.
func (r *Repo) DropIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.IndexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.IndexName(), err)
	}
	return nil
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	def, err := db.NewIndex(r.IndexName()).
		Prefix(r.keyPrefix()).
		Text(fieldContent).
		VectorHNSW(fieldVector, vectorAlias, r.cfg.Dimensions, db.DistanceCosine, r.cfg.HNSWM, r.cfg.HNSWEFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("index definition: %w", err)
	}
	return def, nil
}

// Upsert writes documents with their vectors in one pipelined round-trip.
// vectors[i] belongs to docs[i].
func (r *Repo) Upsert(ctx context.Context, docs []domain.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("upsert: %d documents but %d vectors", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(docs))
	for i := range docs {
		fields, err := buildHashFields(&docs[i], vectors[i])
		if err != nil {
			return fmt.Errorf("document %s: %w", docs[i].ID, err)
		}
		items[i] = db.HashSetItem{Key: r.docKey(docs[i].ID), Fields: fields}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset %d documents: %w", len(items), err)
	}
	return nil
}

// Get returns a stored document without its vector.
func (r *Repo) Get(ctx context.Context, id string) (domain.Document, error) {
	fields, err := r.store.HGetAll(ctx, r.docKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return domain.Document{}, fmt.Errorf("hgetall %s: %w", id, err)
	}

	meta, err := decodeMetadata(fields[fieldMetadata])
	if err != nil {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, err)
	}
	return domain.Document{ID: id, Content: fields[fieldContent], Metadata: meta}, nil
}

// Delete removes a document from the knowledge base.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := r.docKey(id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("exists %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", id, err)
	}
	return nil
}

func buildHashFields(doc *domain.Document, vector []float32) (map[string]string, error) {
	meta, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		fieldContent:  doc.Content,
		fieldMetadata: meta,
		fieldVector:   string(db.EncodeVector(vector)),
	}, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

// decodeMetadata tolerates hashes written without metadata.
// Numbers are kept as json.Number so integers beyond 2^53 survive.
func decodeMetadata(s string) (map[string]any, error) {
	m := map[string]any{}
	if s == "" {
		return m, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}
