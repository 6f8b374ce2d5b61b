package server

import "context"

// Server serves a handler until stopped.
type Server interface {
	Options() Options
	Handle(handler any) error
	Start() error
	Stop(ctx context.Context) error
	// Errors delivers a failure of the serve loop after Start. It is closed
	// once serving ends.
	Errors() <-chan error
	// Address is the bound address once Start has returned.
	Address() string
}
