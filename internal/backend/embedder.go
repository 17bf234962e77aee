package backend

import (
	"context"
	"fmt"
)

// SlotEmbedder exposes the embedder slot as an embedding.Embedder so the vector store
// embeds documents and queries through the same registry-managed backend.
type SlotEmbedder struct {
	registry *Registry
}

// NewSlotEmbedder returns an embedder backed by r's embedder slot.
func NewSlotEmbedder(r *Registry) *SlotEmbedder {
	return &SlotEmbedder{registry: r}
}

// Embed returns an error unless the embedder slot produced a vector; a fallback
// value is never a usable embedding.
func (e *SlotEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, res := e.registry.Embed(ctx, text)
	if !res.OK() {
		return nil, fmt.Errorf("embed: %s: %w", res.Status, res.Err)
	}
	return v, nil
}

// EmbedBatch embeds each text in turn.
func (e *SlotEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the loaded embedder's dimensions, or 0 when the slot is empty.
func (e *SlotEmbedder) Dimensions() int {
	inst, ok := e.registry.Get(RoleEmbedder)
	if !ok {
		return 0
	}
	return inst.(Embedder).Dimensions()
}

// Close is a no-op; the registry owns the underlying instance.
func (e *SlotEmbedder) Close() error {
	return nil
}
