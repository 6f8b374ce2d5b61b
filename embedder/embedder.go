package embedder

import (
	"context"
	"errors"
	"math"
)

var (
	ErrEmptyInput  = errors.New("empty input")
	ErrNoEmbedding = errors.New("embedding service returned no vector")
)

// Embedder maps text to a vector. Implementations must return vectors of a
// single fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Unit scales v to length one in place. The zero vector is left alone.
func Unit(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}

	return v
}
