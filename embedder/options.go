package embedder

import "context"

type Option func(*Options)

type Options struct {
	ApiKey    string
	Model     string
	BaseURL   string
	Dimension int
	Context   context.Context
}

func WithApiKey(apiKey string) Option {
	return func(o *Options) {
		o.ApiKey = apiKey
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithBaseURL points a hosted embedder at a compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Options) {
		o.BaseURL = url
	}
}

// WithDimension asks for vectors of the given size where the backend
// supports it.
func WithDimension(dim int) Option {
	return func(o *Options) {
		o.Dimension = dim
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
