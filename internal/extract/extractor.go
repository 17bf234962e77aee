// Package extract turns uploaded or corpus files into plain text for analysis and indexing.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat is returned for binary content in a format we cannot read.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// MaxFileSize bounds what Extract will read from disk.
const MaxFileSize = 50 << 20

var pdfMagic = []byte("%PDF-")

// Extractor extracts text from PDF, DOCX, XLSX and plain-text documents.
type Extractor struct {
	maxSize int64
}

// NewExtractor returns an Extractor that reads files up to MaxFileSize.
func NewExtractor() *Extractor {
	return &Extractor{maxSize: MaxFileSize}
}

// Supported reports whether ext (with leading dot) has a dedicated reader.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".xlsx", ".txt", ".md", ".text":
		return true
	}
	return false
}

// Extract reads the file at path and returns its text.
func (e *Extractor) Extract(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if e.maxSize > 0 && info.Size() > e.maxSize {
		return "", fmt.Errorf("%s is %d bytes, limit is %d", filepath.Base(path), info.Size(), e.maxSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content. ext selects the reader; when it is empty or
// unknown, PDF content is recognized by its header and anything else must be UTF-8 text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractSpreadsheet(content)
	case ".txt", ".md", ".text":
		return extractPlain(content), nil
	}
	if bytes.HasPrefix(content, pdfMagic) {
		return extractPDF(content)
	}
	if !utf8.Valid(content) || bytes.IndexByte(content, 0) >= 0 {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return extractPlain(content), nil
}
