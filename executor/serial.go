package executor

import (
	"context"
	"sync"
)

type serialExecutor struct {
	next Executor
	mtx  sync.Mutex
}

func (e *serialExecutor) Run(ctx context.Context, payload string) error {
	if !e.mtx.TryLock() {
		return ErrBusy
	}
	defer e.mtx.Unlock()

	return e.next.Run(ctx, payload)
}

// Serialize allows one payload on the device at a time. A Run that arrives
// while another is in flight fails fast with ErrBusy instead of queueing.
func Serialize(next Executor) Executor {
	if s, ok := next.(*serialExecutor); ok {
		return s
	}
	return &serialExecutor{next: next}
}
