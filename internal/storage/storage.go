// Package storage persists the reference corpus: documents and the chunks that feed the
// vector store and keyword index.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kanoon/internal/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Storage is the corpus persistence layer.
type Storage interface {
	// PutDocument inserts or replaces doc together with its chunks in one transaction.
	// Chunks of a previous version are removed.
	PutDocument(ctx context.Context, doc *models.Document, chunks []*models.DocumentChunk) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	ChunksByDocument(ctx context.Context, docID string) ([]*models.DocumentChunk, error)
	// EachChunk calls fn for every chunk in document then chunk order. Returning an error
	// from fn stops the iteration.
	EachChunk(ctx context.Context, fn func(*models.DocumentChunk) error) error

	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
