package google

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/w-h-a/vox/embedder"
	genaiopt "google.golang.org/api/option"
)

const DefaultModel = "text-embedding-004"

type googleEmbedder struct {
	options embedder.Options
	client  *genai.Client
}

func (e *googleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(strings.TrimSpace(text)) == 0 {
		return nil, embedder.ErrEmptyInput
	}

	model := e.client.EmbeddingModel(e.options.Model)
	model.TaskType = genai.TaskTypeSemanticSimilarity

	rsp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("google embeddings: %w", err)
	}

	if rsp == nil || rsp.Embedding == nil || len(rsp.Embedding.Values) == 0 {
		return nil, embedder.ErrNoEmbedding
	}

	return rsp.Embedding.Values, nil
}

func NewEmbedder(opts ...embedder.Option) embedder.Embedder {
	options := embedder.NewOptions(opts...)

	if len(options.Model) == 0 {
		options.Model = DefaultModel
	}

	e := &googleEmbedder{
		options: options,
	}

	clientOpts := []genaiopt.ClientOption{genaiopt.WithAPIKey(options.ApiKey)}
	if len(options.BaseURL) > 0 {
		clientOpts = append(clientOpts, genaiopt.WithEndpoint(options.BaseURL))
	}

	client, err := genai.NewClient(context.Background(), clientOpts...)
	if err != nil {
		detail := "failed to create google embedding client"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	e.client = client

	return e
}
