package domain

import "context"

// BatchEmbedder vectorizes a batch of texts, one vector per input in order.
// Implementations must return exactly len(texts) vectors; a degraded vector
// is all zeros, which callers treat as "embedding unavailable", not absent.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// BatchEmbeddingResult carries embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
	// Degraded counts inputs that received a zero vector because a
	// provider batch failed.
	Degraded int
}

// ZeroVector returns an all-zero vector of the given dimensionality.
func ZeroVector(dim int) []float32 {
	return make([]float32, dim)
}

// IsZeroVector reports whether every component of v is zero.
func IsZeroVector(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
