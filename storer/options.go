package storer

import "context"

type Option func(*Options)

type Options struct {
	Location   string
	Collection string
	Dimension  int
	Context    context.Context
}

func WithLocation(loc string) Option {
	return func(o *Options) {
		o.Location = loc
	}
}

func WithCollection(name string) Option {
	return func(o *Options) {
		o.Collection = name
	}
}

// WithDimension fixes the embedding dimension up front. Without it a store
// adopts the dimension of the first record it holds.
func WithDimension(dim int) Option {
	return func(o *Options) {
		o.Dimension = dim
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Collection: "vox_commands",
		Context:    context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
