// Package embed provides the embedding capability: adapters that turn text
// into fixed-length float vectors. Retry and backoff live here, in the
// adapters, so the indexing pipeline stays free of transport concerns.
package embed

import (
	"context"
	"math"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the default per-call batch limit for providers
	// that do not declare their own.
	DefaultBatchSize = 100

	// DefaultMaxRetries is the default number of retry attempts for
	// transient provider failures.
	DefaultMaxRetries = 3
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, same length and
	// order as the input. Implementations may split the input into smaller
	// provider-side batches.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// BatchLimit returns the provider's own per-call batch limit for an embedder,
// or DefaultBatchSize when the embedder does not declare one.
func BatchLimit(e Embedder) int {
	if l, ok := e.(interface{ MaxBatchSize() int }); ok && l.MaxBatchSize() > 0 {
		return l.MaxBatchSize()
	}
	return DefaultBatchSize
}

// normalizeVector scales a vector to unit length. Zero vectors pass through.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	inv := float32(1 / magnitude)
	for i := range v {
		v[i] *= inv
	}
	return v
}
