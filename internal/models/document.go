// Package models defines request and response shapes served by the orchestrator,
// and the corpus documents backing retrieval.
package models

import "time"

// Document is a reference-corpus document (statute, judgment, template) kept in storage.
type Document struct {
	ID       string                 `json:"id" db:"id"`
	Title    string                 `json:"title" db:"title"`
	Content  string                 `json:"content" db:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	// Source fields are set for documents indexed from files; they let unchanged files
	// be skipped on re-index.
	SourcePath    string    `json:"source_path,omitempty" db:"source_path"`
	SourceModTime int64     `json:"source_mod_time,omitempty" db:"source_mod_time"`
	SourceSize    int64     `json:"source_size,omitempty" db:"source_size"`
	ChunkCount    int       `json:"chunk_count" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// DocumentChunk is a retrievable slice of a Document; each chunk is one vector store entry.
type DocumentChunk struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Content    string    `json:"content" db:"content"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// DocumentInput is the input for adding or replacing a corpus document.
type DocumentInput struct {
	ID       string                 `json:"id,omitempty"`
	Title    string                 `json:"title,omitempty"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks that the document has content.
func (d *DocumentInput) Validate() error {
	if isBlank(d.Content) {
		return &ValidationError{Field: "content", Message: "cannot be empty"}
	}
	return nil
}

// LibraryHit is a hybrid search hit over the reference corpus.
type LibraryHit struct {
	DocumentID    string  `json:"document_id"`
	Title         string  `json:"title,omitempty"`
	Snippet       string  `json:"snippet"`
	Score         float64 `json:"score"`
	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`
	Rank          int     `json:"rank"`
}

// LibrarySearchResponse is the response for a library search.
type LibrarySearchResponse struct {
	Query     string        `json:"query"`
	Hits      []*LibraryHit `json:"hits"`
	Total     int           `json:"total"`
	QueryTime int64         `json:"query_time_ms"`
}
