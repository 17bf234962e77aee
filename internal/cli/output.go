// Package cli provides output formatting and a server client for the kanoon CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/kanoon/internal/models"
	"github.com/hyperjump/kanoon/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat accepts "text" or "json".
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

const rule = "─────────────────────────────────────────────────────────"

// Write writes v to w in the given format. Types without a text layout are written as JSON.
func Write(w io.Writer, v any, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, v)
	}
	switch r := v.(type) {
	case *models.ChatResponse:
		fmt.Fprintln(w, r.Response)
	case *models.NoticeResponse:
		fmt.Fprintln(w, r.Notice)
	case *models.RoadmapResponse:
		writeRoadmap(w, r)
	case *models.AskResponse:
		writeAsk(w, r)
	case *models.AnalysisResponse:
		writeAnalysis(w, r)
	case *models.TranslationResponse:
		fmt.Fprintln(w, r.TranslatedText)
	case *models.LibrarySearchResponse:
		writeLibrary(w, r)
	case map[string]any:
		writeFields(w, "", r)
	default:
		return writeJSON(w, v)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRoadmap(w io.Writer, r *models.RoadmapResponse) {
	fmt.Fprintf(w, "Roadmap: %s (%s)\n\n", r.IssueType, r.Jurisdiction)
	for i, step := range r.Steps {
		fmt.Fprintf(w, "%2d. %s\n", i+1, step)
	}
}

func writeAsk(w io.Writer, r *models.AskResponse) {
	fmt.Fprintln(w, r.Answer)
	if len(r.Sources) == 0 {
		return
	}
	fmt.Fprintf(w, "\nSources:\n")
	for _, s := range r.Sources {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "%s | Score: %.4f\n", s.ID, s.Score)
		fmt.Fprintln(w, utils.Truncate(s.Text, 200))
	}
}

func writeAnalysis(w io.Writer, r *models.AnalysisResponse) {
	fmt.Fprintf(w, "Document length: %d characters\n", r.DocumentLength)
	if r.Message != nil {
		fmt.Fprintf(w, "Note: %s\n", *r.Message)
	}
	if r.Answer != nil {
		fmt.Fprintf(w, "\nAnswer: %s\n", *r.Answer)
		if r.Confidence != nil {
			fmt.Fprintf(w, "Confidence: %.2f\n", *r.Confidence)
		}
	}
	if r.Summary != nil {
		fmt.Fprintf(w, "\nSummary:\n%s\n", *r.Summary)
	}
}

func writeLibrary(w io.Writer, r *models.LibrarySearchResponse) {
	fmt.Fprintf(w, "\nFound %d documents in %dms\n\n", r.Total, r.QueryTime)
	for _, hit := range r.Hits {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f (Keyword: %.4f, Semantic: %.4f)\n",
			hit.Rank, hit.Score, hit.KeywordScore, hit.SemanticScore)
		fmt.Fprintf(w, "ID: %s\n", hit.DocumentID)
		if hit.Title != "" {
			fmt.Fprintf(w, "Title: %s\n", hit.Title)
		}
		fmt.Fprintf(w, "\n%s\n\n", hit.Snippet)
	}
}

// writeFields prints a decoded JSON object as sorted "key: value" lines, nesting objects
// under dotted keys.
func writeFields(w io.Writer, prefix string, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		switch v := m[k].(type) {
		case map[string]any:
			writeFields(w, name, v)
		case []any:
			parts := make([]string, len(v))
			for i, item := range v {
				parts[i] = fmt.Sprint(item)
			}
			fmt.Fprintf(w, "%s: %s\n", name, strings.Join(parts, ", "))
		case float64:
			fmt.Fprintf(w, "%s: %s\n", name, formatNumber(v))
		default:
			fmt.Fprintf(w, "%s: %v\n", name, v)
		}
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.4f", f)
}
