package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kanoon/internal/models"
)

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// newMapping indexes title and content with the standard analyzer (lowercase, no stemming)
// so statute names and section numbers match exactly.
func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = true
	text.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("content", text)
	docMapping.AddFieldMappingsAt("title", text)
	docMapping.AddFieldMappingsAt("id", bleve.NewKeywordFieldMapping())
	// Free-form metadata is kept in SQLite, not searched.
	docMapping.AddSubDocumentMapping("metadata", bleve.NewDocumentDisabledMapping())

	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex opens the index at path, creating it if needed. An empty path gives an
// in-memory index, which is rebuilt from storage at startup like the vector store.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		return NewMemoryIndex()
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryIndex returns an index that lives only in memory.
func NewMemoryIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a document by id, replacing any previous version.
func (b *BleveIndex) Index(ctx context.Context, id string, doc *models.Document) error {
	return b.index.Index(id, doc)
}

// Search runs a match query and returns up to limit results by descending score.
// With a title boost, title and content are queried separately and added, and hits
// covering fewer of the query terms are penalized.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if opts == nil {
		opts = &SearchOptions{}
	}
	if opts.TitleBoost <= 1 {
		return b.searchSingle(ctx, query, limit, opts)
	}
	return b.searchWithBoost(ctx, query, limit, opts)
}

func (b *BleveIndex) newRequest(q blevequery.Query, size int, opts *SearchOptions) *bleve.SearchRequest {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	req.Fields = []string{"title"}
	if opts.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("content")
	}
	return req
}

func (b *BleveIndex) searchSingle(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	req := b.newRequest(b.buildQuery(query, "", opts), limit, opts)
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{
			ID:        hit.ID,
			Score:     hit.Score,
			Title:     fieldString(hit.Fields, "title"),
			Fragments: hit.Fragments["content"],
		}
	}
	return out, nil
}

func (b *BleveIndex) searchWithBoost(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	titleRes, err := b.index.SearchInContext(ctx, b.newRequest(b.buildQuery(query, "title", opts), reqSize, &SearchOptions{}))
	if err != nil {
		return nil, fmt.Errorf("Bleve title search failed: %w", err)
	}
	contentRes, err := b.index.SearchInContext(ctx, b.newRequest(b.buildQuery(query, "content", opts), reqSize, opts))
	if err != nil {
		return nil, fmt.Errorf("Bleve content search failed: %w", err)
	}

	hits := make(map[string]*KeywordResult)
	get := func(id string) *KeywordResult {
		if r, ok := hits[id]; ok {
			return r
		}
		r := &KeywordResult{ID: id}
		hits[id] = r
		return r
	}
	for _, hit := range titleRes.Hits {
		r := get(hit.ID)
		r.Score += hit.Score * opts.TitleBoost
		r.Title = fieldString(hit.Fields, "title")
	}
	for _, hit := range contentRes.Hits {
		r := get(hit.ID)
		r.Score += hit.Score
		if r.Title == "" {
			r.Title = fieldString(hit.Fields, "title")
		}
		r.Fragments = hit.Fragments["content"]
	}

	terms := Terms(query)
	if len(terms) > 1 {
		coverage := b.termCoverage(ctx, terms, reqSize)
		for id, r := range hits {
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			r.Score *= c * c
		}
	}

	out := make([]*KeywordResult, 0, len(hits))
	for _, r := range hits {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *BleveIndex) buildQuery(query, field string, opts *SearchOptions) blevequery.Query {
	terms := Terms(query)
	if !opts.FuzzyEnabled || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	fuzziness := opts.Fuzziness
	if fuzziness <= 0 {
		fuzziness = 1
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// termCoverage counts how many distinct terms each document matches.
func (b *BleveIndex) termCoverage(ctx context.Context, terms []string, size int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		req := bleve.NewSearchRequest(bleve.NewMatchQuery(term))
		req.Size = size
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			continue
		}
		for _, hit := range results.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}

// MatchedTerms returns which of terms occur in the document id.
func (b *BleveIndex) MatchedTerms(ctx context.Context, id string, terms []string) (map[string]bool, error) {
	matched := make(map[string]bool, len(terms))
	for _, term := range terms {
		q := bleve.NewConjunctionQuery(bleve.NewDocIDQuery([]string{id}), bleve.NewMatchQuery(term))
		req := bleve.NewSearchRequest(q)
		req.Size = 1
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("Bleve term lookup failed: %w", err)
		}
		matched[term] = res.Total > 0
	}
	return matched, nil
}

// Terms splits query into distinct lowercase terms.
func Terms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
