package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/w-h-a/vox/embedder"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultModel = string(openai.SmallEmbedding3)

type openAIEmbedder struct {
	options embedder.Options
	client  *openai.Client
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(strings.TrimSpace(text)) == 0 {
		return nil, embedder.ErrEmptyInput
	}

	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(e.options.Model),
		Dimensions: e.options.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, embedder.ErrNoEmbedding
	}

	return rsp.Data[0].Embedding, nil
}

func NewEmbedder(opts ...embedder.Option) embedder.Embedder {
	options := embedder.NewOptions(opts...)

	if len(options.Model) == 0 {
		options.Model = DefaultModel
	}

	e := &openAIEmbedder{
		options: options,
	}

	config := openai.DefaultConfig(options.ApiKey)

	if len(options.BaseURL) > 0 {
		config.BaseURL = options.BaseURL
	}

	config.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	e.client = openai.NewClientWithConfig(config)

	return e
}
