// Package embeddertest provides a deterministic embedder for tests.
package embeddertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/w-h-a/vox/embedder"
)

// Table returns fixed vectors for known texts, so similarities in tests are
// exact. Lookups fold case and whitespace.
type Table struct {
	vectors map[string][]float32
	err     error
	calls   atomic.Int64
	mtx     sync.RWMutex
}

func (t *Table) Embed(ctx context.Context, text string) ([]float32, error) {
	t.calls.Add(1)

	key := fold(text)
	if len(key) == 0 {
		return nil, embedder.ErrEmptyInput
	}

	t.mtx.RLock()
	defer t.mtx.RUnlock()

	if t.err != nil {
		return nil, t.err
	}

	vec, ok := t.vectors[key]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", key)
	}

	out := make([]float32, len(vec))
	copy(out, vec)

	return out, nil
}

func (t *Table) Set(text string, vec ...float32) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	t.vectors[fold(text)] = vec
}

// Fail makes every later call return err. A nil err restores lookups.
func (t *Table) Fail(err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	t.err = err
}

// Calls counts Embed invocations, including failed ones.
func (t *Table) Calls() int {
	return int(t.calls.Load())
}

func fold(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func New(vectors map[string][]float32) *Table {
	t := &Table{
		vectors: map[string][]float32{},
	}

	for text, vec := range vectors {
		t.vectors[fold(text)] = vec
	}

	return t
}
