package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/polyqa/internal/db"
	"github.com/kailas-cloud/polyqa/internal/domain"
)

func TestSimilaritySearch_ParsesEntries(t *testing.T) {
	repo, ms, me := newTestRepo(t)

	var got *db.KNNQuery
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			{Key: "polyqa:kb:helpdesk:reset-password", Score: 0.91, Fields: map[string]string{
				"__content":  "Use the 'Forgot password' link.",
				"__metadata": `{"source":"faq.md","section":3}`,
			}},
			{Key: "polyqa:kb:helpdesk:billing", Score: 0.52, Fields: map[string]string{
				"__content": "Invoices are sent monthly.",
			}},
		}}, nil
	}

	docs, err := repo.SimilaritySearch(context.Background(), "reset password", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(me.texts) != 1 || me.texts[0] != "reset password" {
		t.Errorf("embedder called with %v", me.texts)
	}
	if got.IndexName != "polyqa:kb:helpdesk:idx" {
		t.Errorf("index = %q", got.IndexName)
	}
	if got.K != 5 {
		t.Errorf("k = %d", got.K)
	}
	if len(got.Vector) != 4 {
		t.Errorf("vector len = %d", len(got.Vector))
	}

	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].ID != "reset-password" || docs[1].ID != "billing" {
		t.Errorf("unexpected ids/order: %q, %q", docs[0].ID, docs[1].ID)
	}
	if docs[0].Content != "Use the 'Forgot password' link." {
		t.Errorf("content = %q", docs[0].Content)
	}
	if docs[0].Metadata["source"] != "faq.md" {
		t.Errorf("metadata = %v", docs[0].Metadata)
	}
	if docs[0].Metadata["section"] != json.Number("3") {
		t.Errorf("numeric metadata = %v", docs[0].Metadata["section"])
	}
	if docs[1].Metadata == nil || len(docs[1].Metadata) != 0 {
		t.Errorf("expected empty metadata map, got %v", docs[1].Metadata)
	}
	if docs[0].Score != 0.91 {
		t.Errorf("score = %v", docs[0].Score)
	}
}

func TestSimilaritySearch_NoIndexYieldsEmpty(t *testing.T) {
	repo, ms, _ := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, db.ErrIndexNotFound
	}

	docs, err := repo.SimilaritySearch(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", docs)
	}
}

func TestSimilaritySearch_EmbedError(t *testing.T) {
	repo, ms, me := newTestRepo(t)
	me.err = domain.ErrEmbeddingProviderError
	searched := false
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		searched = true
		return nil, nil
	}

	_, err := repo.SimilaritySearch(context.Background(), "q", 5)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if searched {
		t.Error("search must not run when embedding fails")
	}
}

func TestSimilaritySearch_StoreError(t *testing.T) {
	repo, ms, _ := newTestRepo(t)
	storeErr := &db.Error{Op: db.OpSearch, Err: errors.New("timeout")}
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, storeErr
	}

	_, err := repo.SimilaritySearch(context.Background(), "q", 5)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestSimilaritySearch_BadMetadata(t *testing.T) {
	repo, ms, _ := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			{Key: "polyqa:kb:helpdesk:x", Fields: map[string]string{"__metadata": "{not json"}},
		}}, nil
	}

	if _, err := repo.SimilaritySearch(context.Background(), "q", 5); err == nil {
		t.Fatal("expected metadata decode error")
	}
}

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	repo, ms, _ := newTestRepo(t)

	var created *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		created = def
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected CreateIndex call")
	}

	want := "FT.CREATE polyqa:kb:helpdesk:idx ON HASH PREFIX polyqa:kb:helpdesk: SCHEMA " +
		"__content TEXT __vector AS vector VECTOR HNSW"
	if got := created.String(); got != want {
		t.Errorf("definition:\n got  %s\n want %s", got, want)
	}
	vec := created.Fields[1]
	if vec.VectorDim != 4 || vec.VectorDistance != db.DistanceCosine || vec.VectorM != 16 || vec.VectorEFConstruct != 200 {
		t.Errorf("vector field = %+v", vec)
	}
}

func TestEnsureIndex_SkipsExisting(t *testing.T) {
	repo, ms, _ := newTestRepo(t)
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		t.Fatal("CreateIndex must not be called")
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_RaceIsTolerated(t *testing.T) {
	repo, ms, _ := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error { return db.ErrIndexExists }

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsert_WritesHashes(t *testing.T) {
	repo, ms, _ := newTestRepo(t)

	var items []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, in []db.HashSetItem) error {
		items = in
		return nil
	}

	docs := []domain.Document{
		{ID: "a", Content: "alpha", Metadata: map[string]any{"source": "a.md"}},
		{ID: "b", Content: "beta"},
	}
	vectors := [][]float32{{1, 0}, {0, 1}}

	if err := repo.Upsert(context.Background(), docs, vectors); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Key != "polyqa:kb:helpdesk:a" {
		t.Errorf("key = %q", items[0].Key)
	}
	if items[0].Fields["__content"] != "alpha" {
		t.Errorf("content = %q", items[0].Fields["__content"])
	}
	if items[0].Fields["__metadata"] != `{"source":"a.md"}` {
		t.Errorf("metadata = %q", items[0].Fields["__metadata"])
	}
	if items[1].Fields["__metadata"] != "{}" {
		t.Errorf("nil metadata should encode as {}, got %q", items[1].Fields["__metadata"])
	}
	if len(items[0].Fields["__vector"]) != 8 {
		t.Errorf("vector bytes = %d", len(items[0].Fields["__vector"]))
	}
}

func TestUpsert_LengthMismatch(t *testing.T) {
	repo, _, _ := newTestRepo(t)

	err := repo.Upsert(context.Background(), []domain.Document{{ID: "a"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsert_UnencodableMetadata(t *testing.T) {
	repo, _, _ := newTestRepo(t)

	docs := []domain.Document{{ID: "a", Content: "x", Metadata: map[string]any{"f": func() {}}}}
	if err := repo.Upsert(context.Background(), docs, [][]float32{{1}}); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestGet_DecodesHash(t *testing.T) {
	repo, ms, _ := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "polyqa:kb:helpdesk:reset" {
			t.Errorf("unexpected key %q", key)
		}
		return map[string]string{
			"__content":  "Use the reset link.",
			"__metadata": `{"source":"faq.md"}`,
			"__vector":   "ignored",
		}, nil
	}

	doc, err := repo.Get(context.Background(), "reset")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID != "reset" || doc.Content != "Use the reset link." || doc.Metadata["source"] != "faq.md" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestUpsertGet_PreservesLargeIntegers(t *testing.T) {
	repo, ms, _ := newTestRepo(t)

	dec := json.NewDecoder(strings.NewReader(`{"ticket_id": 9007199254740993}`))
	dec.UseNumber()
	meta := map[string]any{}
	if err := dec.Decode(&meta); err != nil {
		t.Fatal(err)
	}

	var stored map[string]string
	ms.hsetMultiFn = func(_ context.Context, in []db.HashSetItem) error {
		stored = in[0].Fields
		return nil
	}
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return stored, nil
	}

	docs := []domain.Document{{ID: "t1", Content: "ticket", Metadata: meta}}
	if err := repo.Upsert(context.Background(), docs, [][]float32{{1}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stored["__metadata"] != `{"ticket_id":9007199254740993}` {
		t.Errorf("stored metadata = %s", stored["__metadata"])
	}

	doc, err := repo.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	out, err := json.Marshal(doc.Metadata)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"ticket_id":9007199254740993}` {
		t.Errorf("returned metadata = %s", out)
	}
}

func TestGet_Missing(t *testing.T) {
	repo, _, _ := newTestRepo(t)

	_, err := repo.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, ms, _ := newTestRepo(t)
	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	var deleted string
	ms.delFn = func(_ context.Context, key string) error {
		deleted = key
		return nil
	}

	if err := repo.Delete(context.Background(), "reset"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "polyqa:kb:helpdesk:reset" {
		t.Errorf("deleted %q", deleted)
	}
}

func TestDelete_Missing(t *testing.T) {
	repo, ms, _ := newTestRepo(t)
	ms.delFn = func(_ context.Context, _ string) error {
		t.Error("Del must not be called for a missing document")
		return nil
	}

	err := repo.Delete(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDropIndex_MissingIsTolerated(t *testing.T) {
	repo, ms, _ := newTestRepo(t)
	var dropped string
	ms.dropIndexFn = func(_ context.Context, name string) error {
		dropped = name
		return db.ErrIndexNotFound
	}

	if err := repo.DropIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dropped != "polyqa:kb:helpdesk:idx" {
		t.Errorf("dropped %q", dropped)
	}
}

func TestDropIndex_Error(t *testing.T) {
	repo, ms, _ := newTestRepo(t)
	ms.dropIndexFn = func(_ context.Context, _ string) error { return errors.New("conn reset") }

	if err := repo.DropIndex(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
