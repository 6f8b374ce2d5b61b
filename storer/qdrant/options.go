package qdrant

import (
	"context"

	"github.com/w-h-a/vox/storer"
)

type apiKeyKey struct{}

func WithApiKey(apiKey string) storer.Option {
	return func(o *storer.Options) {
		o.Context = context.WithValue(o.Context, apiKeyKey{}, apiKey)
	}
}

func ApiKeyFrom(ctx context.Context) (string, bool) {
	apiKey, ok := ctx.Value(apiKeyKey{}).(string)
	return apiKey, ok && len(apiKey) > 0
}
