// Package fileid derives stable corpus document ids from file paths, so re-indexing or
// deleting a watched file always addresses the same document.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// Prefix marks ids that were derived from a path.
const Prefix = "file-"

// ForPath returns the document id for path. Relative paths are made absolute first, and
// equivalent spellings of the same path yield the same id.
func ForPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return Prefix + hex.EncodeToString(sum[:12])
}

// IsFileID reports whether id was produced by ForPath.
func IsFileID(id string) bool {
	return strings.HasPrefix(id, Prefix) && len(id) == len(Prefix)+24
}
