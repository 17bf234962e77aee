// Package embedding provides the embedder backends used by the vector store:
// ONNX (cgo), OpenAI/Ollama-compatible HTTP and a deterministic hashing embedder.
package embedding

import "context"

// Embedder produces fixed-length vector embeddings for text.
// Every vector returned by one Embedder has Dimensions() elements.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// embedEach implements EmbedBatch for embedders without a native batch call.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}
