// Package indexer ingests the reference corpus. A document is chunked, stored in SQLite,
// embedded into the vector store passage by passage and indexed for keyword search.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/config"
	"github.com/hyperjump/kanoon/internal/extract"
	"github.com/hyperjump/kanoon/internal/fileid"
	"github.com/hyperjump/kanoon/internal/keyword"
	"github.com/hyperjump/kanoon/internal/models"
	"github.com/hyperjump/kanoon/internal/storage"
	"github.com/hyperjump/kanoon/pkg/utils"
)

// VectorStore is the part of *vector.Store the indexer writes to.
type VectorStore interface {
	AddDocument(ctx context.Context, id, text string) error
	DeletePrefix(prefix string) int
	Size() int
}

// Stats counts what is indexed.
type Stats struct {
	Documents   int64  `json:"documents"`
	Chunks      int64  `json:"chunks"`
	Passages    int    `json:"passages"`
	KeywordDocs uint64 `json:"keyword_docs"`
}

// Indexer keeps storage, the vector store and the keyword index in step.
type Indexer struct {
	storage    storage.Storage
	vectors    VectorStore
	keywords   keyword.KeywordIndex
	chunker    *Chunker
	extractor  *extract.Extractor
	extensions []string
	logger     *zap.Logger
	onChange   func()
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = utils.OrNop(l) }
}

// WithExtractor sets the extractor used by IndexFile. Without one, files are read as
// plain text.
func WithExtractor(e *extract.Extractor) Option {
	return func(idx *Indexer) { idx.extractor = e }
}

// WithOnChange registers fn to run after the corpus gains or loses a document.
func WithOnChange(fn func()) Option {
	return func(idx *Indexer) { idx.onChange = fn }
}

// New creates an Indexer. Chunk sizes and allowed file extensions come from cfg.
func New(store storage.Storage, vectors VectorStore, keywords keyword.KeywordIndex, cfg config.CorpusConfig, opts ...Option) *Indexer {
	idx := &Indexer{
		storage:    store,
		vectors:    vectors,
		keywords:   keywords,
		chunker:    NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		extensions: cfg.Extensions,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

func (idx *Indexer) changed() {
	if idx.onChange != nil {
		idx.onChange()
	}
}

// IndexDocument stores input and makes its passages retrievable. A missing id gets a
// fresh UUID; an existing id is replaced.
func (idx *Indexer) IndexDocument(ctx context.Context, input *models.DocumentInput) (*models.Document, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if strings.Contains(input.ID, "#") {
		return nil, &models.ValidationError{Field: "id", Message: "must not contain '#'"}
	}
	doc := &models.Document{
		ID:       input.ID,
		Title:    input.Title,
		Content:  strings.TrimSpace(input.Content),
		Metadata: input.Metadata,
	}
	if err := idx.put(ctx, doc); err != nil {
		return nil, err
	}
	idx.changed()
	return doc, nil
}

func (idx *Indexer) put(ctx context.Context, doc *models.Document) error {
	texts := idx.chunker.Split(doc.Content)
	chunks := make([]*models.DocumentChunk, len(texts))
	for i, text := range texts {
		chunks[i] = &models.DocumentChunk{ID: ChunkID(doc.ID, i), DocumentID: doc.ID, Content: text, ChunkIndex: i}
	}
	if err := idx.storage.PutDocument(ctx, doc, chunks); err != nil {
		return fmt.Errorf("store document %s: %w", doc.ID, err)
	}

	idx.vectors.DeletePrefix(ChunkPrefix(doc.ID))
	for _, c := range chunks {
		if err := idx.vectors.AddDocument(ctx, c.ID, c.Content); err != nil {
			return fmt.Errorf("embed passage %s: %w", c.ID, err)
		}
	}
	if err := idx.keywords.Index(ctx, doc.ID, keywordDoc(doc)); err != nil {
		return fmt.Errorf("keyword index %s: %w", doc.ID, err)
	}
	idx.logger.Debug("Document indexed",
		zap.String("id", doc.ID),
		zap.String("title", doc.Title),
		zap.Int("chunks", len(chunks)))
	return nil
}

// keywordDoc makes file names searchable as words ("rent_agreement.docx" → "rent agreement docx").
func keywordDoc(doc *models.Document) *models.Document {
	d := *doc
	d.Title = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(doc.Title)
	return &d
}

// IndexFile indexes the file at path under its path-derived id. Files already indexed
// with the same size and modification time are skipped; indexed reports whether any
// work was done.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (indexed bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	if !idx.Allowed(abs) {
		return false, fmt.Errorf("extension %q is not indexed", filepath.Ext(abs))
	}
	info, err := os.Stat(abs)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", abs)
	}

	id := fileid.ForPath(abs)
	if prev, err := idx.storage.GetDocument(ctx, id); err == nil &&
		prev.SourcePath == abs &&
		prev.SourceModTime == info.ModTime().UnixNano() &&
		prev.SourceSize == info.Size() {
		idx.logger.Debug("File unchanged; skipping", zap.String("path", abs))
		return false, nil
	}

	text, err := idx.read(abs)
	if err != nil {
		return false, fmt.Errorf("extract %s: %w", abs, err)
	}
	if strings.TrimSpace(text) == "" {
		return false, fmt.Errorf("no text extracted from %s", abs)
	}
	doc := &models.Document{
		ID:            id,
		Title:         filepath.Base(abs),
		Content:       strings.TrimSpace(text),
		SourcePath:    abs,
		SourceModTime: info.ModTime().UnixNano(),
		SourceSize:    info.Size(),
	}
	if err := idx.put(ctx, doc); err != nil {
		return false, err
	}
	idx.changed()
	return true, nil
}

func (idx *Indexer) read(path string) (string, error) {
	if idx.extractor != nil {
		return idx.extractor.Extract(path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Allowed reports whether path has one of the configured extensions. An empty list
// allows everything.
func (idx *Indexer) Allowed(path string) bool {
	if len(idx.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, a := range idx.extensions {
		if strings.TrimPrefix(strings.ToLower(a), ".") == ext {
			return true
		}
	}
	return false
}

// IndexDirectory indexes every allowed regular file under dir, descending into
// subdirectories when recursive is set. Hidden files and directories are skipped.
// Failing files are logged and counted, not fatal.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, recursive bool) (indexed, failed int, err error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return 0, 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, 0, fmt.Errorf("not a directory: %s", root)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !idx.Allowed(path) {
			return nil
		}
		ok, err := idx.IndexFile(ctx, path)
		switch {
		case err != nil:
			failed++
			idx.logger.Warn("Failed to index file", zap.String("path", path), zap.Error(err))
		case ok:
			indexed++
		}
		return nil
	})
	return indexed, failed, err
}

// DeleteDocument removes a document everywhere. Unknown ids yield storage.ErrNotFound.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	if err := idx.storage.DeleteDocument(ctx, id); err != nil {
		return err
	}
	removed := idx.vectors.DeletePrefix(ChunkPrefix(id))
	if err := idx.keywords.Delete(ctx, id); err != nil {
		return fmt.Errorf("keyword delete %s: %w", id, err)
	}
	idx.logger.Debug("Document deleted", zap.String("id", id), zap.Int("passages", removed))
	idx.changed()
	return nil
}

// Document returns a stored document. Unknown ids yield storage.ErrNotFound.
func (idx *Indexer) Document(ctx context.Context, id string) (*models.Document, error) {
	return idx.storage.GetDocument(ctx, id)
}

// DeleteFile removes the document indexed from path, if any.
func (idx *Indexer) DeleteFile(ctx context.Context, path string) error {
	err := idx.DeleteDocument(ctx, fileid.ForPath(path))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// Restore repopulates the vector store and keyword index from storage. The vector store
// lives in memory only, so this runs at every startup.
func (idx *Indexer) Restore(ctx context.Context) (passages int, err error) {
	err = idx.storage.EachChunk(ctx, func(c *models.DocumentChunk) error {
		if err := idx.vectors.AddDocument(ctx, c.ID, c.Content); err != nil {
			return fmt.Errorf("embed passage %s: %w", c.ID, err)
		}
		passages++
		return nil
	})
	if err != nil {
		return passages, err
	}

	kw, err := idx.keywords.DocCount()
	if err != nil {
		return passages, fmt.Errorf("keyword count: %w", err)
	}
	docs, err := idx.storage.CountDocuments(ctx)
	if err != nil {
		return passages, err
	}
	if int64(kw) != docs {
		all, err := idx.storage.ListDocuments(ctx, 0, 0)
		if err != nil {
			return passages, err
		}
		for _, d := range all {
			if err := idx.keywords.Index(ctx, d.ID, keywordDoc(d)); err != nil {
				return passages, fmt.Errorf("keyword index %s: %w", d.ID, err)
			}
		}
	}
	idx.logger.Info("Corpus restored", zap.Int("passages", passages), zap.Int64("documents", docs))
	return passages, nil
}

// Stats reports corpus counts.
func (idx *Indexer) Stats(ctx context.Context) (Stats, error) {
	var (
		s   Stats
		err error
	)
	if s.Documents, err = idx.storage.CountDocuments(ctx); err != nil {
		return s, err
	}
	if s.Chunks, err = idx.storage.CountChunks(ctx); err != nil {
		return s, err
	}
	if s.KeywordDocs, err = idx.keywords.DocCount(); err != nil {
		return s, err
	}
	s.Passages = idx.vectors.Size()
	return s, nil
}
