package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsage(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "corpus.db")
	if err := os.WriteFile(db, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", make([]byte, 20), 0o644); err != nil {
		t.Fatal(err)
	}
	index := filepath.Join(dir, "bleve")
	if err := os.MkdirAll(filepath.Join(index, "store"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "index_meta.json"), make([]byte, 7), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "store", "root.bolt"), make([]byte, 3), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := DiskUsage(db, index)
	if err != nil {
		t.Fatalf("DiskUsage: %v", err)
	}
	if got != 130 {
		t.Errorf("DiskUsage = %d, want 130", got)
	}
}

func TestDiskUsage_missingPaths(t *testing.T) {
	dir := t.TempDir()
	got, err := DiskUsage(filepath.Join(dir, "none.db"), "")
	if err != nil {
		t.Fatalf("DiskUsage: %v", err)
	}
	if got != 0 {
		t.Errorf("DiskUsage = %d, want 0", got)
	}
}
