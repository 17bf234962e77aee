package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/kanoon/internal/config"
	"github.com/hyperjump/kanoon/internal/embedding"
	"github.com/hyperjump/kanoon/internal/extract"
	"github.com/hyperjump/kanoon/internal/fileid"
	"github.com/hyperjump/kanoon/internal/keyword"
	"github.com/hyperjump/kanoon/internal/models"
	"github.com/hyperjump/kanoon/internal/storage"
	"github.com/hyperjump/kanoon/internal/vector"
)

type harness struct {
	idx      *Indexer
	store    *storage.SQLiteStorage
	vectors  *vector.Store
	keywords *keyword.BleveIndex
	changes  int
}

func newHarness(t *testing.T, dir string, opts ...Option) *harness {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db", "corpus.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	kw, err := keyword.NewMemoryIndex()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	h := &harness{store: store, keywords: kw, vectors: vector.NewStore(embedding.NewHashEmbedder(256))}
	cfg := config.CorpusConfig{ChunkSize: 5, ChunkOverlap: 1, Extensions: []string{".txt", ".md", ".xlsx"}}
	opts = append([]Option{WithOnChange(func() { h.changes++ })}, opts...)
	h.idx = New(store, h.vectors, kw, cfg, opts...)
	return h
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestIndexDocument(t *testing.T) {
	h := newHarness(t, t.TempDir())
	ctx := context.Background()

	doc, err := h.idx.IndexDocument(ctx, &models.DocumentInput{
		Title:   "Limitation Act",
		Content: "The period of limitation for a suit for money lent is three years from the date of the loan.",
	})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if doc.ID == "" || doc.ChunkCount < 2 {
		t.Fatalf("document = %+v", doc)
	}
	if h.vectors.Size() != doc.ChunkCount {
		t.Errorf("vector store has %d passages, want %d", h.vectors.Size(), doc.ChunkCount)
	}
	for _, id := range h.vectors.IDs() {
		if !strings.HasPrefix(id, ChunkPrefix(doc.ID)) {
			t.Errorf("passage id %q lacks document prefix", id)
		}
	}
	hits, err := h.keywords.Search(ctx, "limitation", 5, nil)
	if err != nil || len(hits) != 1 || hits[0].ID != doc.ID {
		t.Errorf("keyword search = %v, %v", hits, err)
	}
	if h.changes != 1 {
		t.Errorf("onChange called %d times", h.changes)
	}
}

func TestIndexDocument_replaceDropsOldPassages(t *testing.T) {
	h := newHarness(t, t.TempDir())
	ctx := context.Background()

	long := strings.Repeat("clause ", 30)
	if _, err := h.idx.IndexDocument(ctx, &models.DocumentInput{ID: "lease", Content: long}); err != nil {
		t.Fatal(err)
	}
	before := h.vectors.Size()
	if _, err := h.idx.IndexDocument(ctx, &models.DocumentInput{ID: "lease", Content: "short lease"}); err != nil {
		t.Fatal(err)
	}
	if before <= 1 || h.vectors.Size() != 1 {
		t.Errorf("passages before=%d after=%d, want many then 1", before, h.vectors.Size())
	}
}

func TestIndexDocument_validation(t *testing.T) {
	h := newHarness(t, t.TempDir())
	ctx := context.Background()

	var verr *models.ValidationError
	if _, err := h.idx.IndexDocument(ctx, &models.DocumentInput{Content: "  "}); !errors.As(err, &verr) {
		t.Errorf("blank content: %v", err)
	}
	if _, err := h.idx.IndexDocument(ctx, &models.DocumentInput{ID: "a#b", Content: "x"}); !errors.As(err, &verr) {
		t.Errorf("id with '#': %v", err)
	}
	if h.changes != 0 {
		t.Error("onChange called for rejected documents")
	}
}

func TestIndexFile_createSkipUpdate(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)
	ctx := context.Background()
	path := filepath.Join(dir, "corpus", "notice_template.txt")
	write(t, path, "Legal notice for recovery of dues.")

	ok, err := h.idx.IndexFile(ctx, path)
	if err != nil || !ok {
		t.Fatalf("IndexFile = %v, %v", ok, err)
	}
	id := fileid.ForPath(path)
	doc, err := h.store.GetDocument(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "notice_template.txt" || doc.Content != "Legal notice for recovery of dues." || doc.SourcePath == "" {
		t.Errorf("doc = %+v", doc)
	}
	hits, _ := h.keywords.Search(ctx, "template", 5, nil)
	if len(hits) != 1 {
		t.Errorf("file name words not searchable: %v", hits)
	}

	ok, err = h.idx.IndexFile(ctx, path)
	if err != nil || ok {
		t.Errorf("unchanged file: indexed=%v err=%v", ok, err)
	}

	write(t, path, "Legal notice for recovery of unpaid rent and dues.")
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	ok, err = h.idx.IndexFile(ctx, path)
	if err != nil || !ok {
		t.Fatalf("changed file: indexed=%v err=%v", ok, err)
	}
	doc, _ = h.store.GetDocument(ctx, id)
	if !strings.Contains(doc.Content, "unpaid rent") {
		t.Errorf("content not updated: %q", doc.Content)
	}
	if h.changes != 2 {
		t.Errorf("onChange called %d times, want 2", h.changes)
	}
}

func TestIndexFile_errors(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)
	ctx := context.Background()

	script := filepath.Join(dir, "run.sh")
	write(t, script, "#!/bin/sh")
	if _, err := h.idx.IndexFile(ctx, script); err == nil {
		t.Error("expected error for disallowed extension")
	}
	if _, err := h.idx.IndexFile(ctx, filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
	blank := filepath.Join(dir, "blank.md")
	write(t, blank, "  \n ")
	if _, err := h.idx.IndexFile(ctx, blank); err == nil {
		t.Error("expected error for file without text")
	}
}

func TestIndexFile_spreadsheetWithExtractor(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir, WithExtractor(extract.NewExtractor()))
	ctx := context.Background()

	path := filepath.Join(dir, "court_fees.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Suit value")
	f.SetCellValue("Sheet1", "B1", "Court fee")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	if _, err := h.idx.IndexFile(ctx, path); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	doc, err := h.store.GetDocument(ctx, fileid.ForPath(path))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Content != "Suit value | Court fee" {
		t.Errorf("content = %q", doc.Content)
	}
}

func TestIndexDirectory(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)
	ctx := context.Background()
	root := filepath.Join(dir, "corpus")
	write(t, filepath.Join(root, "ipc.txt"), "Indian Penal Code section 420")
	write(t, filepath.Join(root, "crpc.md"), "Code of Criminal Procedure section 154")
	write(t, filepath.Join(root, "acts", "contract.txt"), "Indian Contract Act section 10")
	write(t, filepath.Join(root, ".git", "HEAD.txt"), "hidden")
	write(t, filepath.Join(root, "image.png"), "binary")
	write(t, filepath.Join(root, "empty.txt"), " ")

	n, failed, err := h.idx.IndexDirectory(ctx, root, false)
	if err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}
	if n != 2 || failed != 1 {
		t.Errorf("non-recursive: indexed=%d failed=%d, want 2 and 1", n, failed)
	}

	n, _, err = h.idx.IndexDirectory(ctx, root, true)
	if err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}
	if n != 1 {
		t.Errorf("recursive pass indexed %d new files, want 1", n)
	}
	if c, _ := h.store.CountDocuments(ctx); c != 3 {
		t.Errorf("documents = %d, want 3", c)
	}

	if _, _, err := h.idx.IndexDirectory(ctx, filepath.Join(root, "ipc.txt"), true); err == nil {
		t.Error("expected error for a file passed as directory")
	}
}

func TestDeleteDocumentAndFile(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)
	ctx := context.Background()
	path := filepath.Join(dir, "deed.txt")
	write(t, path, "Sale deed executed at Pune on the first day of April")
	if _, err := h.idx.IndexFile(ctx, path); err != nil {
		t.Fatal(err)
	}

	if doc, err := h.idx.Document(ctx, fileid.ForPath(path)); err != nil || doc.Title != "deed.txt" {
		t.Fatalf("Document = %v, %v", doc, err)
	}
	if err := h.idx.DeleteFile(ctx, path); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, err := h.idx.Document(ctx, fileid.ForPath(path)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Document after delete: %v", err)
	}
	if h.vectors.Size() != 0 {
		t.Errorf("passages left: %d", h.vectors.Size())
	}
	if n, _ := h.keywords.DocCount(); n != 0 {
		t.Errorf("keyword docs left: %d", n)
	}
	if err := h.idx.DeleteFile(ctx, path); err != nil {
		t.Errorf("DeleteFile of unindexed path: %v", err)
	}
	if err := h.idx.DeleteDocument(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteDocument unknown id: %v", err)
	}
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)
	ctx := context.Background()
	for _, in := range []*models.DocumentInput{
		{ID: "a", Title: "Arbitration", Content: "Arbitration and Conciliation Act 1996 section 34 set aside"},
		{ID: "b", Title: "Bail", Content: "Bail is the rule and jail the exception"},
	} {
		if _, err := h.idx.IndexDocument(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	want, _ := h.store.CountChunks(ctx)

	// A fresh process: same database, empty vector store and keyword index.
	kw, err := keyword.NewMemoryIndex()
	if err != nil {
		t.Fatal(err)
	}
	defer kw.Close()
	vectors := vector.NewStore(embedding.NewHashEmbedder(256))
	restored := New(h.store, vectors, kw, config.CorpusConfig{})

	n, err := restored.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if int64(n) != want || int64(vectors.Size()) != want {
		t.Errorf("restored %d passages (store has %d), want %d", n, vectors.Size(), want)
	}
	stats, err := restored.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 2 || stats.KeywordDocs != 2 || int64(stats.Passages) != want {
		t.Errorf("stats = %+v", stats)
	}
	results, err := vectors.Retrieve(ctx, "bail jail", 1)
	if err != nil || len(results) != 1 || !strings.HasPrefix(results[0].ID, "b#") {
		t.Errorf("retrieve after restore = %v, %v", results, err)
	}
}

func TestAllowed(t *testing.T) {
	idx := New(nil, nil, nil, config.CorpusConfig{Extensions: []string{"txt", ".PDF"}})
	for path, want := range map[string]bool{
		"/a/b.txt": true, "/a/b.TXT": true, "/a/b.pdf": true, "/a/b.docx": false, "/a/b": false,
	} {
		if got := idx.Allowed(path); got != want {
			t.Errorf("Allowed(%q) = %v, want %v", path, got, want)
		}
	}
	if !New(nil, nil, nil, config.CorpusConfig{}).Allowed("/any.thing") {
		t.Error("empty extension list should allow everything")
	}
}
