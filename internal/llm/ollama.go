// Package llm provides text-generation backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/remote"
	"github.com/hyperjump/kanoon/pkg/utils"
)

// OllamaConfig configures an Ollama generator.
type OllamaConfig struct {
	Client *remote.Client
	Model  string
	Logger *zap.Logger
}

// OllamaGenerator generates text with a model served by Ollama.
type OllamaGenerator struct {
	client *remote.Client
	model  string
	logger *zap.Logger
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// NewOllamaGenerator checks that the server is reachable and already has the model pulled,
// so that a missing model fails at load time and the next candidate is tried.
func NewOllamaGenerator(ctx context.Context, cfg OllamaConfig) (*OllamaGenerator, error) {
	if cfg.Client == nil {
		return nil, errors.New("ollama: client is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("ollama: model is required")
	}
	var tags tagsResponse
	if err := cfg.Client.GetJSON(ctx, "/api/tags", &tags); err != nil {
		return nil, fmt.Errorf("ollama health check failed: %w", err)
	}
	found := false
	for _, m := range tags.Models {
		if modelMatches(cfg.Model, m.Name) || modelMatches(cfg.Model, m.Model) {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("ollama: model %q is not available on %s", cfg.Model, cfg.Client.BaseURL())
	}
	return &OllamaGenerator{
		client: cfg.Client,
		model:  cfg.Model,
		logger: utils.OrNop(cfg.Logger),
	}, nil
}

// modelMatches treats "llama3.2" and "llama3.2:latest" as the same model.
func modelMatches(want, have string) bool {
	if have == "" {
		return false
	}
	if want == have {
		return true
	}
	return !strings.Contains(want, ":") && have == want+":latest"
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count"`
}

// Generate returns one candidate: the prompt followed by the model's completion, the shape
// raw text-generation pipelines return. maxLength bounds the number of generated tokens.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, maxLength int) ([]string, error) {
	req := generateRequest{Model: g.model, Prompt: prompt}
	if maxLength > 0 {
		req.Options = map[string]any{"num_predict": maxLength}
	}
	var out generateResponse
	if err := g.client.PostJSON(ctx, "/api/generate", req, &out); err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	g.logger.Debug("Ollama generation finished",
		zap.String("model", g.model),
		zap.Int("eval_count", out.EvalCount))
	return []string{prompt + "\n" + out.Response}, nil
}

// Model returns the served model name.
func (g *OllamaGenerator) Model() string {
	return g.model
}

// Close is a no-op; the model stays resident in Ollama.
func (g *OllamaGenerator) Close() error {
	return nil
}
