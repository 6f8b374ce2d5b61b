package server

import "context"

type Option func(*Options)

type Options struct {
	Name    string
	Version string
	Address string
	Context context.Context
}

func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

func WithVersion(version string) Option {
	return func(o *Options) {
		o.Version = version
	}
}

func WithAddress(addr string) Option {
	return func(o *Options) {
		o.Address = addr
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Name:    "vox",
		Address: ":0",
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
