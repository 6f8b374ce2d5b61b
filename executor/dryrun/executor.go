package dryrun

import (
	"context"
	"log/slog"
	"sync"

	"github.com/w-h-a/vox/executor"
)

// Executor logs payloads instead of sending them anywhere. It keeps what it
// saw so callers can inspect it.
type Executor struct {
	mtx  sync.Mutex
	runs []string
}

func (e *Executor) Run(ctx context.Context, payload string) error {
	e.mtx.Lock()
	e.runs = append(e.runs, payload)
	e.mtx.Unlock()

	slog.InfoContext(ctx, "dry run", "payload", payload)

	return nil
}

func (e *Executor) Runs() []string {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	out := make([]string, len(e.runs))
	copy(out, e.runs)

	return out
}

var _ executor.Executor = (*Executor)(nil)

func NewExecutor() *Executor {
	return &Executor{}
}
