// Package vecmath provides the vector operations used by semantic recall:
// cosine similarity, norms, and a compact binary encoding for persisting
// embeddings.
package vecmath

import "math"

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
//
// Malformed input never panics: vectors of different length, and vectors
// with a zero norm, yield 0. Empty vectors have a zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp rounding drift on near-parallel vectors.
	switch {
	case score > 1:
		return 1
	case score < -1:
		return -1
	}
	return score
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
