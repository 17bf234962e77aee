package search

import (
	"strings"

	"github.com/hyperjump/kanoon/pkg/utils"
)

// Snippet flattens whitespace in content and cuts it to maxLen runes with "..." appended.
func Snippet(content string, maxLen int) string {
	return utils.Truncate(strings.Join(strings.Fields(content), " "), maxLen)
}
