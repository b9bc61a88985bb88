// Package vector ranks embeddings by similarity.
package vector

import "github.com/hyperjump/lexembed/pkg/utils"

// InnerProduct returns the inner product of two vectors; for unit vectors it equals
// cosine similarity. Vectors of different length score 0.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Cosine returns the cosine similarity of a and b in [-1, 1], normalizing both.
// A zero vector scores 0.
func Cosine(a, b []float32) float64 {
	na, nb := utils.L2Norm(a), utils.L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	c := InnerProduct(a, b) / (na * nb)
	return min(1, max(-1, c))
}
