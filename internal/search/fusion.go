// Package search runs library search over the reference corpus: Bleve keyword hits and
// vector store passages are fused into one document ranking.
package search

import (
	"sort"

	"github.com/hyperjump/kanoon/internal/indexer"
	"github.com/hyperjump/kanoon/internal/keyword"
	"github.com/hyperjump/kanoon/internal/vector"
)

// FusedResult holds a document ID and fused keyword/semantic scores.
type FusedResult struct {
	DocumentID    string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores normalizes keyword scores to [0,1] by max.
func NormalizeKeywordScores(results []*keyword.KeywordResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	var maxScore float64
	for _, r := range results {
		maxScore = max(maxScore, r.Score)
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// SemanticByDocument folds passage scores into document scores, keeping each document's
// best passage. Negative cosine scores count as 0; passages that do not belong to a
// document are ignored.
func SemanticByDocument(passages []vector.RetrievalResult) (scores map[string]float64, best map[string]vector.RetrievalResult) {
	scores = make(map[string]float64)
	best = make(map[string]vector.RetrievalResult)
	for _, p := range passages {
		docID := indexer.DocumentOf(p.ID)
		if docID == "" {
			continue
		}
		score := max(p.Score, 0)
		if s, ok := scores[docID]; !ok || score > s {
			scores[docID] = score
			best[docID] = p
		}
	}
	return scores, best
}

// Fuse merges keyword and semantic score maps with weights and returns results sorted by
// score, then document ID.
func Fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	scoreMap := make(map[string]*FusedResult, len(keywordScores)+len(semanticScores))
	get := func(id string) *FusedResult {
		if r, ok := scoreMap[id]; ok {
			return r
		}
		r := &FusedResult{DocumentID: id}
		scoreMap[id] = r
		return r
	}
	for id, score := range keywordScores {
		get(id).KeywordScore = score
	}
	for id, score := range semanticScores {
		get(id).SemanticScore = score
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, r := range scoreMap {
		r.Score = keywordWeight*r.KeywordScore + semanticWeight*r.SemanticScore
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	return results
}
