// Package keyword provides full-text search over the reference corpus with Bleve.
package keyword

import (
	"context"

	"github.com/hyperjump/kanoon/internal/models"
)

// SearchOptions tunes keyword search. Nil means defaults.
type SearchOptions struct {
	// TitleBoost multiplies title matches. Values <= 1 search title and content as one field.
	TitleBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits (1 or 2, default 1).
	FuzzyEnabled bool
	Fuzziness    int
	// Highlight requests content fragments for each hit.
	Highlight bool
}

// KeywordIndex defines keyword search operations.
type KeywordIndex interface {
	Index(ctx context.Context, id string, doc *models.Document) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID        string
	Score     float64
	Title     string
	Fragments []string
}
