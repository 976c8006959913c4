package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

const defaultHashDimensions = 256

// HashEmbedder produces deterministic pseudo-embeddings derived from a
// SHA-256 of the input. It needs no network and no credentials, which makes
// it the offline/test provider: identical text always maps to the identical
// unit vector, so hash-based skip logic and store round trips can be
// exercised without a real embedding service. The vectors carry no semantic
// meaning.
type HashEmbedder struct {
	dimensions int
}

func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = defaultHashDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimensions)
	seed := sha256.Sum256([]byte(text))

	// Expand the digest into as many bytes as the vector needs.
	buf := seed[:]
	for len(buf) < e.dimensions*4 {
		next := sha256.Sum256(buf[len(buf)-sha256.Size:])
		buf = append(buf, next[:]...)
	}

	var norm float64
	for i := 0; i < e.dimensions; i++ {
		bits := binary.BigEndian.Uint32(buf[i*4 : i*4+4])
		// Map to [-1, 1).
		v := float32(int64(bits)-math.MaxInt32) / float32(math.MaxInt32)
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec, nil
}

func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *HashEmbedder) Close() error {
	return nil
}
