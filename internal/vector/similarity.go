package vector

import "github.com/hyperjump/kanoon/pkg/utils"

// CosineSimilarity returns a·b / (‖a‖·‖b‖), clamped to [-1, 1]. It is 0 when either
// vector has zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return cosine(a, utils.L2Norm(a), b, utils.L2Norm(b))
}

// cosine takes precomputed norms so stored vectors are not re-measured on every query.
func cosine(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	sim := dot / (normA * normB)
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}
