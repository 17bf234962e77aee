package indexer

import (
	"strconv"
	"strings"
)

// Chunker cuts text into overlapping windows of words. Each window becomes one vector
// store passage.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker returns a Chunker with windows of size words sharing overlap words.
// size <= 0 means 200; an overlap that is negative or not smaller than size is reset to 0.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 200
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split returns the windows of text. Whitespace inside a window is collapsed to single
// spaces. Blank text yields no windows.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.size - c.overlap
	var out []string
	for start := 0; ; start += step {
		end := min(start+c.size, len(words))
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			return out
		}
	}
}

// ChunkID names the n-th passage of a document. Every passage id of docID starts with
// ChunkPrefix(docID).
func ChunkID(docID string, n int) string {
	return ChunkPrefix(docID) + strconv.Itoa(n)
}

// ChunkPrefix is the id prefix shared by all passages of docID.
func ChunkPrefix(docID string) string {
	return docID + "#"
}

// DocumentOf returns the document id of a passage id, or "" when id is not a passage id.
func DocumentOf(chunkID string) string {
	i := strings.LastIndexByte(chunkID, '#')
	if i <= 0 {
		return ""
	}
	return chunkID[:i]
}
