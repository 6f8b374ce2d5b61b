package executor

import (
	"context"
	"time"
)

type Option func(*Options)

type Options struct {
	// Location is backend specific: a device bridge URL or a providers file.
	Location string
	Timeout  time.Duration
	Context  context.Context
}

func WithLocation(loc string) Option {
	return func(o *Options) {
		o.Location = loc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Timeout: 10 * time.Second,
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
