package executor

import (
	"context"
	"errors"
)

var (
	// ErrBusy means another payload is still running on the device.
	ErrBusy = errors.New("executor busy")
	// ErrExecution wraps a failure reported by the device itself.
	ErrExecution = errors.New("execution failed")
)

// Executor hands a command payload to the device. The payload is opaque.
type Executor interface {
	Run(ctx context.Context, payload string) error
}

// Func adapts an ordinary function to an Executor.
type Func func(ctx context.Context, payload string) error

func (f Func) Run(ctx context.Context, payload string) error {
	return f(ctx, payload)
}
