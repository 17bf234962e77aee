// Package vector is the in-memory store of embedded corpus passages. Retrieval is a
// brute-force cosine scan, which is fine for a reference corpus of a few thousand passages.
package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/kanoon/internal/embedding"
	"github.com/hyperjump/kanoon/pkg/utils"
)

// ErrDimensionMismatch is returned when a vector's length differs from the store's.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// RetrievalResult is one retrieved passage.
type RetrievalResult struct {
	ID    string
	Text  string
	Score float64
}

type document struct {
	id     string
	text   string
	vector []float32
	norm   float64
}

// Store holds (id, text, vector) triples in insertion order. Every vector comes from
// the embedder bound at construction, so stored and query vectors are always comparable.
type Store struct {
	embedder   embedding.Embedder
	docs       []*document
	index      map[string]int
	dimensions int
	mu         sync.RWMutex
}

// NewStore returns an empty store embedding through embedder.
func NewStore(embedder embedding.Embedder) *Store {
	return &Store{
		embedder: embedder,
		index:    make(map[string]int),
	}
}

// AddDocument embeds text and stores it under id. Embedding happens before the lock is
// taken. Re-adding an existing id replaces its text and vector in place, keeping the
// original insertion position.
func (s *Store) AddDocument(ctx context.Context, id, text string) error {
	if id == "" {
		return errors.New("document id is required")
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed document %s: %w", id, err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("embedder returned an empty vector for %s", id)
	}
	stored := make([]float32, len(vec))
	copy(stored, vec)
	doc := &document{id: id, text: text, vector: stored, norm: utils.L2Norm(stored)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimensions == 0 {
		s.dimensions = len(stored)
	} else if len(stored) != s.dimensions {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(stored), s.dimensions)
	}
	if i, ok := s.index[id]; ok {
		s.docs[i] = doc
		return nil
	}
	s.index[id] = len(s.docs)
	s.docs = append(s.docs, doc)
	return nil
}

// Retrieve returns up to topK passages by descending cosine similarity to query.
// Ties keep insertion order. topK <= 0 returns every passage. An empty store
// returns an empty slice without embedding the query.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]RetrievalResult, error) {
	if s.Size() == 0 {
		return []RetrievalResult{}, nil
	}
	q, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	qNorm := utils.L2Norm(q)

	s.mu.RLock()
	if len(q) != s.dimensions && len(s.docs) > 0 {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: query has %d, store has %d", ErrDimensionMismatch, len(q), s.dimensions)
	}
	results := make([]RetrievalResult, len(s.docs))
	for i, d := range s.docs {
		results[i] = RetrievalResult{ID: d.id, Text: d.text, Score: cosine(q, qNorm, d.vector, d.norm)}
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes id. It reports whether id was present.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.docs = append(s.docs[:i], s.docs[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.docs); j++ {
		s.index[s.docs[j].id] = j
	}
	return true
}

// DeletePrefix removes every id starting with prefix and returns how many were removed.
func (s *Store) DeletePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.docs[:0]
	removed := 0
	for _, d := range s.docs {
		if strings.HasPrefix(d.id, prefix) {
			delete(s.index, d.id)
			removed++
			continue
		}
		kept = append(kept, d)
	}
	for i := len(kept); i < len(s.docs); i++ {
		s.docs[i] = nil
	}
	s.docs = kept
	for i, d := range s.docs {
		s.index[d.id] = i
	}
	return removed
}

// Size returns the number of stored passages.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Dimensions returns the vector length fixed by the first stored vector, or 0.
func (s *Store) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// IDs returns the stored ids in insertion order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.docs))
	for i, d := range s.docs {
		ids[i] = d.id
	}
	return ids
}
