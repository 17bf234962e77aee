package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kanoon/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	metadata TEXT,
	source_path TEXT NOT NULL DEFAULT '',
	source_mod_time INTEGER NOT NULL DEFAULT 0,
	source_size INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
CREATE INDEX IF NOT EXISTS idx_documents_source_path ON documents(source_path);

CREATE TABLE IF NOT EXISTS document_chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON document_chunks(document_id, chunk_index);
`

const documentColumns = `d.id, d.title, d.content, d.metadata, d.source_path, d.source_mod_time,
	d.source_size, d.created_at, d.updated_at,
	(SELECT COUNT(*) FROM document_chunks c WHERE c.document_id = d.id)`

// SQLiteStorage implements Storage on SQLite in WAL mode.
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage opens or creates the database at dbPath, creating parent directories.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteStorage{db: db, now: time.Now}, nil
}

// PutDocument upserts doc and replaces its chunks. CreatedAt is preserved across
// replacements; UpdatedAt is set to now.
func (s *SQLiteStorage) PutDocument(ctx context.Context, doc *models.Document, chunks []*models.DocumentChunk) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().UTC()
	var created time.Time
	err = tx.QueryRowContext(ctx, `SELECT created_at FROM documents WHERE id = ?`, doc.ID).Scan(&created)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = now
	case err != nil:
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, metadata, source_path, source_mod_time, source_size, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, content = excluded.content, metadata = excluded.metadata,
			source_path = excluded.source_path, source_mod_time = excluded.source_mod_time,
			source_size = excluded.source_size, updated_at = excluded.updated_at`,
		doc.ID, doc.Title, doc.Content, string(metadata), doc.SourcePath, doc.SourceModTime, doc.SourceSize, created, now,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO document_chunks (id, document_id, content, chunk_index, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range chunks {
		c.DocumentID = doc.ID
		c.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Content, c.ChunkIndex, c.CreatedAt); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	doc.CreatedAt, doc.UpdatedAt, doc.ChunkCount = created, now, len(chunks)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		doc      models.Document
		metadata sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &metadata, &doc.SourcePath, &doc.SourceModTime,
		&doc.SourceSize, &doc.CreatedAt, &doc.UpdatedAt, &doc.ChunkCount)
	if err != nil {
		return nil, err
	}
	if metadata.Valid && metadata.String != "" && metadata.String != "null" {
		if err := json.Unmarshal([]byte(metadata.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata of %s: %w", doc.ID, err)
		}
	}
	return &doc, nil
}

// GetDocument returns the document with id, or ErrNotFound.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents d WHERE d.id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, err
}

// DeleteDocument removes a document and its chunks. Missing documents yield ErrNotFound.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListDocuments returns documents newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents d ORDER BY d.created_at DESC, d.id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ChunksByDocument returns the chunks of docID in order.
func (s *SQLiteStorage) ChunksByDocument(ctx context.Context, docID string) ([]*models.DocumentChunk, error) {
	var chunks []*models.DocumentChunk
	err := s.queryChunks(ctx, `WHERE document_id = ? ORDER BY chunk_index`, []any{docID}, func(c *models.DocumentChunk) error {
		chunks = append(chunks, c)
		return nil
	})
	return chunks, err
}

// EachChunk streams every chunk, oldest document first.
func (s *SQLiteStorage) EachChunk(ctx context.Context, fn func(*models.DocumentChunk) error) error {
	return s.queryChunks(ctx,
		`JOIN documents d ON d.id = c.document_id ORDER BY d.created_at, d.id, c.chunk_index`, nil, fn)
}

func (s *SQLiteStorage) queryChunks(ctx context.Context, tail string, args []any, fn func(*models.DocumentChunk) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.content, c.chunk_index, c.created_at FROM document_chunks c `+tail, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c models.DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.ChunkIndex, &c.CreatedAt); err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountDocuments returns the number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// CountChunks returns the number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
