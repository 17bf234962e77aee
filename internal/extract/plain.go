package extract

import "strings"

const bom = "\ufeff"

// extractPlain normalizes line endings, drops a byte order mark and replaces invalid
// UTF-8 with U+FFFD.
func extractPlain(content []byte) string {
	s := strings.ToValidUTF8(string(content), "\ufffd")
	s = strings.TrimPrefix(s, bom)
	return strings.ReplaceAll(s, "\r\n", "\n")
}
