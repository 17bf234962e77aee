package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/hyperjump/kanoon/internal/embedding"
)

// fixedEmbedder maps known texts to fixed vectors; unknown texts get the zero vector.
type fixedEmbedder struct {
	vectors map[string][]float32
	dims    int
}

func (f *fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, f.dims), nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func (f *fixedEmbedder) Dimensions() int { return f.dims }
func (f *fixedEmbedder) Close() error    { return nil }

type failingEmbedder struct{ fixedEmbedder }

func (f *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedder offline")
}

func newFixedStore(t *testing.T) *Store {
	t.Helper()
	emb := &fixedEmbedder{dims: 3, vectors: map[string][]float32{
		"rent":      {1, 0, 0},
		"lease":     {0.9, 0.1, 0},
		"bail":      {0, 1, 0},
		"query":     {1, 0, 0},
		"negative":  {-1, 0, 0},
		"same-as-a": {1, 0, 0},
	}}
	return NewStore(emb)
}

func TestStore_RetrieveOrdersByScore(t *testing.T) {
	ctx := context.Background()
	s := newFixedStore(t)
	for _, id := range []string{"bail", "lease", "rent"} {
		if err := s.AddDocument(ctx, id, id); err != nil {
			t.Fatal(err)
		}
	}
	results, err := s.Retrieve(ctx, "query", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Text != "rent" || results[1].Text != "lease" {
		t.Errorf("order: %+v", results)
	}
	if math.Abs(results[0].Score-1) > 1e-6 {
		t.Errorf("top score = %f, want 1", results[0].Score)
	}
}

func TestStore_RetrieveTopKLargerThanStore(t *testing.T) {
	ctx := context.Background()
	s := newFixedStore(t)
	_ = s.AddDocument(ctx, "b", "bail")
	_ = s.AddDocument(ctx, "r", "rent")
	results, err := s.Retrieve(ctx, "query", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected all 2 documents, got %d", len(results))
	}
	if results[0].ID != "r" || results[1].ID != "b" {
		t.Errorf("expected full ordering, got %+v", results)
	}
	all, _ := s.Retrieve(ctx, "query", 0)
	if len(all) != 2 {
		t.Errorf("topK=0 should return all, got %d", len(all))
	}
}

func TestStore_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newFixedStore(t)
	_ = s.AddDocument(ctx, "first", "rent")
	_ = s.AddDocument(ctx, "second", "same-as-a")
	_ = s.AddDocument(ctx, "third", "rent")
	results, _ := s.Retrieve(ctx, "query", 3)
	for i, want := range []string{"first", "second", "third"} {
		if results[i].ID != want {
			t.Errorf("results[%d] = %s, want %s", i, results[i].ID, want)
		}
	}
}

func TestStore_RetrieveEmpty(t *testing.T) {
	s := NewStore(&failingEmbedder{})
	results, err := s.Retrieve(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("empty store should not embed or fail: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", results)
	}
}

func TestStore_EmptyTextScoresZero(t *testing.T) {
	ctx := context.Background()
	s := NewStore(embedding.NewHashEmbedder(32))
	if err := s.AddDocument(ctx, "d1", ""); err != nil {
		t.Fatal(err)
	}
	results, err := s.Retrieve(ctx, "anything", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Score != 0 {
		t.Errorf("expected one result with score 0, got %+v", results)
	}
	if math.IsNaN(results[0].Score) {
		t.Error("score must not be NaN")
	}
}

func TestStore_OverwriteKeepsPosition(t *testing.T) {
	ctx := context.Background()
	s := newFixedStore(t)
	_ = s.AddDocument(ctx, "a", "rent")
	_ = s.AddDocument(ctx, "b", "bail")
	_ = s.AddDocument(ctx, "a", "bail")
	if s.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", s.Size())
	}
	if ids := s.IDs(); ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs() = %v", ids)
	}
	results, _ := s.Retrieve(ctx, "query", 1)
	if results[0].Text == "rent" {
		t.Error("last write should win")
	}
}

func TestStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	emb := &fixedEmbedder{dims: 2, vectors: map[string][]float32{"short": {1, 0}, "long": {1, 0, 0}}}
	s := NewStore(emb)
	if err := s.AddDocument(ctx, "a", "short"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDocument(ctx, "b", "long"); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if s.Dimensions() != 2 {
		t.Errorf("Dimensions() = %d", s.Dimensions())
	}
}

func TestStore_EmbedderFailure(t *testing.T) {
	s := NewStore(&failingEmbedder{})
	if err := s.AddDocument(context.Background(), "a", "x"); err == nil {
		t.Error("expected embed error")
	}
	if s.Size() != 0 {
		t.Error("failed add must not store anything")
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newFixedStore(t)
	_ = s.AddDocument(ctx, "doc1#0", "rent")
	_ = s.AddDocument(ctx, "doc1#1", "lease")
	_ = s.AddDocument(ctx, "doc2#0", "bail")

	if !s.Delete("doc2#0") {
		t.Error("Delete should report present id")
	}
	if s.Delete("missing") {
		t.Error("Delete should report absent id")
	}
	if n := s.DeletePrefix("doc1#"); n != 2 {
		t.Errorf("DeletePrefix removed %d, want 2", n)
	}
	if s.Size() != 0 {
		t.Errorf("Size() = %d", s.Size())
	}
	_ = s.AddDocument(ctx, "doc3#0", "rent")
	if ids := s.IDs(); len(ids) != 1 || ids[0] != "doc3#0" {
		t.Errorf("IDs() = %v", ids)
	}
}

func TestStore_ConcurrentAddRetrieve(t *testing.T) {
	ctx := context.Background()
	s := NewStore(embedding.NewHashEmbedder(64))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = s.AddDocument(ctx, fmt.Sprintf("d%d-%d", i, j), fmt.Sprintf("section %d clause %d", i, j))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := s.Retrieve(ctx, "section clause", 3); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()
	if s.Size() != 160 {
		t.Errorf("Size() = %d, want 160", s.Size())
	}
}
