package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/w-h-a/vox/storer"
)

type memoryStorer struct {
	options   storer.Options
	records   map[string]storer.Record
	order     []string
	dimension int
	mtx       sync.RWMutex
}

func (s *memoryStorer) Exists(ctx context.Context, id string) (bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	_, ok := s.records[id]

	return ok, nil
}

func (s *memoryStorer) Add(ctx context.Context, rec storer.Record) error {
	return s.replace(rec)
}

func (s *memoryStorer) Update(ctx context.Context, rec storer.Record) error {
	return s.replace(rec)
}

func (s *memoryStorer) replace(rec storer.Record) error {
	rec, err := storer.Prepare(rec)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := storer.CheckDimension(s.dimension, rec.Embedding); err != nil {
		return err
	}

	if existing, ok := s.records[rec.Id]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		s.order = append(s.order, rec.Id)
	}

	s.records[rec.Id] = rec
	s.dimension = len(rec.Embedding)

	return nil
}

func (s *memoryStorer) Delete(ctx context.Context, id string) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}

	delete(s.records, id)

	s.order = slices.DeleteFunc(s.order, func(key string) bool {
		return key == id
	})

	return true, nil
}

func (s *memoryStorer) Search(ctx context.Context, vector []float32, k int, minSimilarity float64) ([]storer.Match, error) {
	if k < 1 {
		return nil, nil
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if err := storer.CheckDimension(s.dimension, vector); err != nil {
		return nil, err
	}

	return storer.Rank(s.ordered(), vector, k, minSimilarity), nil
}

func (s *memoryStorer) All(ctx context.Context) ([]storer.Record, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.ordered(), nil
}

func (s *memoryStorer) Stats(ctx context.Context) (storer.Stats, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	records := s.ordered()

	return storer.Stats{
		Total:      len(records),
		Categories: storer.CountCategories(records),
		Location:   s.location(),
		Dimension:  s.dimension,
	}, nil
}

func (s *memoryStorer) Reset(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.records = map[string]storer.Record{}
	s.order = nil
	s.dimension = s.options.Dimension

	return nil
}

func (s *memoryStorer) Close() error {
	return nil
}

// ordered copies the records in insertion order. Callers hold the lock.
func (s *memoryStorer) ordered() []storer.Record {
	records := make([]storer.Record, 0, len(s.order))

	for _, id := range s.order {
		rec := s.records[id]
		cpy := make([]float32, len(rec.Embedding))
		copy(cpy, rec.Embedding)
		rec.Embedding = cpy
		records = append(records, rec)
	}

	return records
}

func (s *memoryStorer) location() string {
	if len(s.options.Location) > 0 {
		return s.options.Location
	}
	return "memory"
}

func NewStorer(opts ...storer.Option) storer.Storer {
	options := storer.NewOptions(opts...)

	s := &memoryStorer{
		options:   options,
		records:   map[string]storer.Record{},
		dimension: options.Dimension,
		mtx:       sync.RWMutex{},
	}

	return s
}
