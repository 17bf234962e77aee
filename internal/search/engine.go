package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kanoon/internal/config"
	"github.com/hyperjump/kanoon/internal/keyword"
	"github.com/hyperjump/kanoon/internal/models"
	"github.com/hyperjump/kanoon/internal/storage"
	"github.com/hyperjump/kanoon/internal/vector"
	"github.com/hyperjump/kanoon/pkg/utils"
)

// Hit limits for Search.
const (
	DefaultLimit = 10
	MaxLimit     = 100
	snippetRunes = 240
)

// Retriever returns the passages most similar to a query. *vector.Store implements it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]vector.RetrievalResult, error)
}

// Engine runs hybrid library search.
type Engine struct {
	storage   storage.Storage
	keywords  keyword.KeywordIndex
	retriever Retriever
	cfg       config.LibraryConfig
	logger    *zap.Logger
}

// NewEngine creates a search engine. A nil retriever disables the semantic half.
func NewEngine(store storage.Storage, keywords keyword.KeywordIndex, retriever Retriever, cfg config.LibraryConfig, logger *zap.Logger) *Engine {
	if cfg.Candidates <= 0 {
		cfg.Candidates = 20
	}
	if cfg.KeywordWeight == 0 && cfg.SemanticWeight == 0 {
		cfg.KeywordWeight, cfg.SemanticWeight = 0.5, 0.5
	}
	return &Engine{
		storage:   store,
		keywords:  keywords,
		retriever: retriever,
		cfg:       cfg,
		logger:    utils.OrNop(logger),
	}
}

// Search returns up to limit documents matching query. A failing semantic search is
// logged and the keyword ranking is served alone.
func (e *Engine) Search(ctx context.Context, query string, limit int) (*models.LibrarySearchResponse, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &models.ValidationError{Field: "q", Message: "is required"}
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	var (
		keywordResults []*keyword.KeywordResult
		passages       []vector.RetrievalResult
	)
	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.KeywordWeight > 0 {
		g.Go(func() error {
			results, err := e.keywords.Search(gctx, query, e.cfg.Candidates, &keyword.SearchOptions{
				TitleBoost:   e.cfg.TitleBoost,
				FuzzyEnabled: e.cfg.Fuzzy,
				Highlight:    true,
			})
			if err != nil {
				return fmt.Errorf("keyword search failed: %w", err)
			}
			keywordResults = results
			return nil
		})
	}
	if e.cfg.SemanticWeight > 0 && e.retriever != nil {
		g.Go(func() error {
			results, err := e.retriever.Retrieve(gctx, query, e.cfg.Candidates)
			if err != nil {
				e.logger.Warn("Semantic search failed; serving keyword results", zap.Error(err))
				return nil
			}
			passages = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	semanticScores, bestPassage := SemanticByDocument(passages)
	fused := Fuse(NormalizeKeywordScores(keywordResults), semanticScores, e.cfg.KeywordWeight, e.cfg.SemanticWeight)
	fragments := make(map[string]string, len(keywordResults))
	for _, r := range keywordResults {
		if len(r.Fragments) > 0 {
			fragments[r.ID] = r.Fragments[0]
		}
	}

	resp := &models.LibrarySearchResponse{Query: query, Hits: make([]*models.LibraryHit, 0, limit)}
	for _, f := range fused {
		if f.Score <= 0 {
			continue
		}
		resp.Total++
		if len(resp.Hits) == limit {
			continue
		}
		doc, err := e.storage.GetDocument(ctx, f.DocumentID)
		if errors.Is(err, storage.ErrNotFound) {
			resp.Total--
			continue
		}
		if err != nil {
			return nil, err
		}
		snippet, ok := fragments[f.DocumentID]
		if !ok {
			if p, found := bestPassage[f.DocumentID]; found {
				snippet = Snippet(p.Text, snippetRunes)
			} else {
				snippet = Snippet(doc.Content, snippetRunes)
			}
		}
		resp.Hits = append(resp.Hits, &models.LibraryHit{
			DocumentID:    f.DocumentID,
			Title:         doc.Title,
			Snippet:       snippet,
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
			Rank:          len(resp.Hits) + 1,
		})
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	e.logger.Debug("Library search",
		zap.String("query", query),
		zap.Int("hits", len(resp.Hits)),
		zap.Int("keyword_candidates", len(keywordResults)),
		zap.Int("semantic_candidates", len(passages)))
	return resp, nil
}
