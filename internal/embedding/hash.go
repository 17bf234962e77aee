package embedding

import (
	"context"

	"github.com/hyperjump/kanoon/pkg/utils"
)

// HashEmbedder is a deterministic bag-of-words embedder using the hashing trick.
// Texts sharing words get positive cosine similarity; empty text embeds to the zero vector.
// It needs no model files, which makes it the last-resort embedder candidate and the test embedder.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hashing embedder producing vectors of the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the L2-normalized hashed term-count vector of text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, w := range Words(text) {
		h := HashString(w)
		// Sign bit from a second hash keeps collisions from only ever adding up.
		sign := float32(1)
		if HashString("#"+w)&1 == 1 {
			sign = -1
		}
		emb[h%e.dimensions] += sign
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}
