package storer

import (
	"errors"
	"fmt"
)

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidRecord     = errors.New("invalid record")
)

func invalid(detail string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, detail)
}

// CheckDimension reports a mismatch between a vector and the store's
// dimension. A zero want means the store has not fixed its dimension yet.
func CheckDimension(want int, vector []float32) error {
	if want == 0 || len(vector) == want {
		return nil
	}
	return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), want)
}
