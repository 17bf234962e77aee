package qa

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperjump/kanoon/internal/backend"
	"github.com/hyperjump/kanoon/internal/keyword"
	"github.com/hyperjump/kanoon/internal/models"
)

var sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]*`)

// Words the keyword analyzer drops; they never count towards coverage.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {}, "then": {}, "there": {},
	"these": {}, "they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
	"what": {}, "which": {}, "who": {}, "when": {}, "where": {}, "how": {}, "why": {}, "does": {}, "do": {},
}

// ExtractiveQA answers by ranking the context's sentences against the question with an
// in-memory Bleve index. The answer is the best sentence; the score is the share of the
// question's content words that sentence contains.
type ExtractiveQA struct {
	maxSentences int
}

// NewExtractiveQA returns an extractive answerer that considers at most maxSentences
// sentences of the context (<= 0 means 500).
func NewExtractiveQA(maxSentences int) *ExtractiveQA {
	if maxSentences <= 0 {
		maxSentences = 500
	}
	return &ExtractiveQA{maxSentences: maxSentences}
}

// Answer returns the best supporting sentence for question.
func (q *ExtractiveQA) Answer(ctx context.Context, question, passage string) (*backend.Answer, error) {
	terms := contentTerms(question)
	if len(terms) == 0 {
		return nil, errors.New("question has no searchable terms")
	}
	sentences := SplitSentences(passage)
	if len(sentences) == 0 {
		return nil, errors.New("context is empty")
	}
	if len(sentences) > q.maxSentences {
		sentences = sentences[:q.maxSentences]
	}

	idx, err := keyword.NewMemoryIndex()
	if err != nil {
		return nil, err
	}
	defer idx.Close()
	for i, s := range sentences {
		id := strconv.Itoa(i)
		if err := idx.Index(ctx, id, &models.Document{ID: id, Content: s}); err != nil {
			return nil, fmt.Errorf("failed to index sentence: %w", err)
		}
	}

	hits, err := idx.Search(ctx, strings.Join(terms, " "), 1, nil)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &backend.Answer{Text: sentences[0], Score: 0}, nil
	}
	best := hits[0].ID
	matched, err := idx.MatchedTerms(ctx, best, terms)
	if err != nil {
		return nil, err
	}
	n := 0
	for _, ok := range matched {
		if ok {
			n++
		}
	}
	i, _ := strconv.Atoi(best)
	return &backend.Answer{Text: sentences[i], Score: float64(n) / float64(len(terms))}, nil
}

// Close is a no-op.
func (q *ExtractiveQA) Close() error {
	return nil
}

func contentTerms(question string) []string {
	var out []string
	for _, t := range keyword.Terms(question) {
		if _, stop := stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

// SplitSentences splits text on sentence punctuation and line breaks, dropping blanks.
func SplitSentences(text string) []string {
	var out []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
