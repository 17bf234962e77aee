// Package summarizer provides summarization backends: a remote HTTP model server and an
// extractive word-frequency summarizer that needs no model.
package summarizer

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/hyperjump/kanoon/internal/backend"
)

var (
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]*`)
)

// FrequencySummarizer ranks sentences by the normalized frequency of their non-stopword
// tokens and returns the best ones in document order.
type FrequencySummarizer struct {
	maxSentences int
	stopwords    map[string]struct{}
}

// NewFrequencySummarizer returns a summarizer keeping at most maxSentences sentences (<= 0 means 5).
func NewFrequencySummarizer(maxSentences int) *FrequencySummarizer {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &FrequencySummarizer{
		maxSentences: maxSentences,
		stopwords:    defaultStopwords(),
	}
}

// Summarize returns the top sentences of text joined by spaces.
func (s *FrequencySummarizer) Summarize(ctx context.Context, text string) (*backend.Summary, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("nothing to summarize")
	}
	var sentences []string
	for _, m := range sentencePattern.FindAllString(text, -1) {
		if m = strings.TrimSpace(m); m != "" {
			sentences = append(sentences, m)
		}
	}
	if len(sentences) <= s.maxSentences {
		return &backend.Summary{Text: strings.Join(sentences, " ")}, nil
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tokens[i] = s.tokens(sent)
		for _, tok := range tokens[i] {
			if _, stop := s.stopwords[tok]; !stop {
				freq[tok]++
			}
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, toks := range tokens {
		var sum float64
		for _, tok := range toks {
			sum += freq[tok]
		}
		// Dampen long sentences so they do not win on length alone.
		if n := float64(len(toks)); n > 0 {
			sum /= math.Sqrt(n)
		}
		scores[i] = scored{idx: i, score: sum}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	selected := make([]int, s.maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return &backend.Summary{Text: strings.Join(out, " ")}, nil
}

// Close is a no-op.
func (s *FrequencySummarizer) Close() error {
	return nil
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at",
		"by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that",
		"these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so",
		"such", "into", "about", "between", "through", "during", "before", "after", "above", "below",
		"out", "off", "own", "same", "too", "very", "can", "will", "just", "should", "now", "shall",
		"said", "hereby", "herein", "thereof", "whereas",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
