package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hyperjump/kanoon/internal/remote"
)

// RemoteConfig configures an OpenAI- or Ollama-compatible embeddings endpoint.
type RemoteConfig struct {
	Client *remote.Client
	Model  string
	// Dimensions, when set, is enforced on every response; otherwise the first response fixes it.
	Dimensions int
	CacheSize  int
}

// RemoteEmbedder calls POST {base}/embeddings.
type RemoteEmbedder struct {
	client     *remote.Client
	model      string
	dimensions atomic.Int64
	cache      *EmbeddingCache
}

// NewRemoteEmbedder probes the endpoint with a short text so that a dead service
// fails at load time and the dimensionality is known before the first document is added.
func NewRemoteEmbedder(ctx context.Context, cfg RemoteConfig) (*RemoteEmbedder, error) {
	if cfg.Client == nil {
		return nil, errors.New("remote embedder: client is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	e := &RemoteEmbedder{
		client: cfg.Client,
		model:  cfg.Model,
		cache:  NewEmbeddingCache(cfg.CacheSize),
	}
	e.dimensions.Store(int64(cfg.Dimensions))
	if _, err := e.Embed(ctx, "probe"); err != nil {
		return nil, fmt.Errorf("remote embedder probe failed: %w", err)
	}
	return e, nil
}

type embeddingsRequest struct {
	Model  string `json:"model"`
	Input  string `json:"input,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// embeddingsResponse accepts both the OpenAI shape ({"data":[{"embedding":[...]}]})
// and the Ollama shape ({"embedding":[...]}).
type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Embedding []float32 `json:"embedding"`
}

func (r *embeddingsResponse) vector() []float32 {
	if len(r.Data) > 0 && len(r.Data[0].Embedding) > 0 {
		return r.Data[0].Embedding
	}
	return r.Embedding
}

// Embed returns the embedding for text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	var out embeddingsResponse
	req := embeddingsRequest{Model: e.model, Input: text, Prompt: text}
	if err := e.client.PostJSON(ctx, "/embeddings", req, &out); err != nil {
		return nil, err
	}
	v := out.vector()
	if len(v) == 0 {
		return nil, errors.New("no embedding returned")
	}
	want := int(e.dimensions.Load())
	if want == 0 {
		e.dimensions.CompareAndSwap(0, int64(len(v)))
		want = int(e.dimensions.Load())
	}
	if len(v) != want {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(v), want)
	}
	e.cache.Set(text, v)
	return v, nil
}

// EmbedBatch calls Embed for each text.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension, or 0 before the first response.
func (e *RemoteEmbedder) Dimensions() int {
	return int(e.dimensions.Load())
}

// Close is a no-op; the HTTP client holds no per-embedder resources.
func (e *RemoteEmbedder) Close() error {
	return nil
}
