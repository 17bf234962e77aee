// Package backend holds the registry of inference backend slots. Each slot is filled once
// at startup from an ordered list of candidate implementations, and invocations return
// explicit results with a fallback value instead of propagating backend failures.
package backend

import (
	"context"

	"github.com/hyperjump/kanoon/internal/embedding"
)

// Role names a backend slot.
type Role string

const (
	RoleGenerator  Role = "generator"
	RoleQA         Role = "qa"
	RoleSummarizer Role = "summarizer"
	RoleEmbedder   Role = "embedder"
)

// Roles returns every slot role in a fixed order.
func Roles() []Role {
	return []Role{RoleGenerator, RoleQA, RoleSummarizer, RoleEmbedder}
}

// UnavailableMessage is the generator fallback text.
const UnavailableMessage = "I apologize, but I'm currently unable to access my language generation capabilities. " +
	"Please try again later or contact support if this issue persists."

// Instance is a loaded backend. Close releases its resources.
type Instance interface {
	Close() error
}

// Generator produces one or more continuations of prompt. Implementations may echo
// the prompt in their output; callers strip it.
type Generator interface {
	Instance
	Generate(ctx context.Context, prompt string, maxLength int) ([]string, error)
}

// Answer is an extractive answer with a confidence score in [0, 1].
type Answer struct {
	Text  string  `json:"answer"`
	Score float64 `json:"score"`
}

// QuestionAnswerer answers a question from a context passage.
type QuestionAnswerer interface {
	Instance
	Answer(ctx context.Context, question, passage string) (*Answer, error)
}

// Summary is a summarizer's output.
type Summary struct {
	Text string `json:"summary"`
}

// Summarizer condenses text.
type Summarizer interface {
	Instance
	Summarize(ctx context.Context, text string) (*Summary, error)
}

// Embedder is the embedder slot interface.
type Embedder = embedding.Embedder

// GenerateInput is the Invoke input for the generator slot.
type GenerateInput struct {
	Prompt    string
	MaxLength int
}

// QAInput is the Invoke input for the qa slot.
type QAInput struct {
	Question string
	Context  string
}

// SummarizeInput is the Invoke input for the summarizer slot.
type SummarizeInput struct {
	Text string
}

// EmbedInput is the Invoke input for the embedder slot.
type EmbedInput struct {
	Text string
}

// Candidate is one way of filling a slot. Load should fail fast when the backend
// cannot serve (missing weights, unreachable service, wrong model).
type Candidate struct {
	Name string
	Load func(ctx context.Context) (Instance, error)
}

// implements reports whether inst can serve role.
func implements(role Role, inst Instance) bool {
	switch role {
	case RoleGenerator:
		_, ok := inst.(Generator)
		return ok
	case RoleQA:
		_, ok := inst.(QuestionAnswerer)
		return ok
	case RoleSummarizer:
		_, ok := inst.(Summarizer)
		return ok
	case RoleEmbedder:
		_, ok := inst.(Embedder)
		return ok
	}
	return false
}

// fallback returns the value Invoke yields when a slot cannot produce a real one.
func fallback(role Role) any {
	switch role {
	case RoleGenerator:
		return []string{UnavailableMessage}
	case RoleQA:
		return (*Answer)(nil)
	case RoleSummarizer:
		return (*Summary)(nil)
	case RoleEmbedder:
		return []float32(nil)
	}
	return nil
}
