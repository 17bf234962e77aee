package orchestrator

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kanoon/pkg/utils"
)

// ApologyMessage replaces answers shorter than the configured minimum.
const ApologyMessage = "I apologize, but I couldn't generate a proper legal response based on Indian law. " +
	"Please try rephrasing your question with more specific details about your legal situation in India."

const minNoticeLength = 100

const minRoadmapSteps = 3

// extractAnswer removes the echoed prompt, which ends with the marker. Output that does
// not start with the prompt is cut after its first marker, or has the prompt removed
// when no marker appears.
func extractAnswer(raw, prompt, marker string) string {
	var text string
	trimmed := strings.TrimSpace(prompt)
	echoed := strings.TrimSpace(raw)
	switch {
	case trimmed != "" && strings.HasPrefix(echoed, trimmed):
		text = echoed[len(trimmed):]
	case strings.Contains(raw, marker):
		text = raw[strings.Index(raw, marker)+len(marker):]
	default:
		text = strings.ReplaceAll(raw, trimmed, "")
	}
	return utils.CollapseBlankLines(text)
}

// firstOutput returns the first generated sequence, or "" for empty output.
func firstOutput(out []string) string {
	if len(out) == 0 {
		return ""
	}
	return out[0]
}

func (o *Orchestrator) guardAnswer(answer string) string {
	if utf8.RuneCountInString(answer) < o.cfg.MinAnswerLength {
		return ApologyMessage
	}
	return answer
}

func validNotice(notice string) bool {
	return utf8.RuneCountInString(notice) >= minNoticeLength &&
		strings.Contains(strings.ToUpper(notice), "NOTICE")
}
