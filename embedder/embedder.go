// Package embedder maps text to fixed-length float vectors. All providers
// return the same dimension count for every call within a deployment.
package embedder

import (
	"context"
	"fmt"
)

// Embedder generates embedding vectors for text.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed vector length this embedder produces.
	Dimensions() int

	// Close releases any resources held by the embedder.
	Close() error
}

// EmbeddingError marks a failure of the embedding service. Transient by
// nature; callers retry with backoff before surfacing it.
type EmbeddingError struct {
	StatusCode int // HTTP status when known, 0 otherwise
	Err        error
}

func (e *EmbeddingError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}
