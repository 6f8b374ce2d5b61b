package storer

import "context"

// Storer is the durable command catalog. Writes are serialized by each
// implementation; reads never observe a partially applied write.
type Storer interface {
	Exists(ctx context.Context, id string) (bool, error)
	// Add inserts rec, replacing any record with the same id.
	Add(ctx context.Context, rec Record) error
	// Update atomically replaces the record with the same id. If the write
	// fails the previous record is still present.
	Update(ctx context.Context, rec Record) error
	// Delete reports whether a record was removed. A missing id is not an error.
	Delete(ctx context.Context, id string) (bool, error)
	// Search returns at most k matches with similarity >= minSimilarity,
	// best first, ties in insertion order.
	Search(ctx context.Context, vector []float32, k int, minSimilarity float64) ([]Match, error)
	// All returns every record in insertion order.
	All(ctx context.Context) ([]Record, error)
	Stats(ctx context.Context) (Stats, error)
	// Reset drops every record. It does not re-seed.
	Reset(ctx context.Context) error
	Close() error
}

// BestMatch returns the single best match at or above threshold, or nil.
func BestMatch(ctx context.Context, s Storer, vector []float32, threshold float64) (*Match, error) {
	matches, err := s.Search(ctx, vector, 1, threshold)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, nil
	}

	return &matches[0], nil
}
