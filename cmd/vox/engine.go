package main

import (
	"context"

	"github.com/w-h-a/vox"
	"github.com/w-h-a/vox/command"
	"github.com/w-h-a/vox/embedder"
	"github.com/w-h-a/vox/embedder/google"
	"github.com/w-h-a/vox/embedder/lexical"
	"github.com/w-h-a/vox/embedder/openai"
	"github.com/w-h-a/vox/executor"
	"github.com/w-h-a/vox/executor/dryrun"
	httpexecutor "github.com/w-h-a/vox/executor/http"
	"github.com/w-h-a/vox/executor/utcp"
	"github.com/w-h-a/vox/manifest"
	"github.com/w-h-a/vox/storer"
	"github.com/w-h-a/vox/storer/memory"
	"github.com/w-h-a/vox/storer/postgres"
	"github.com/w-h-a/vox/storer/qdrant"
	"github.com/w-h-a/vox/storer/sqlite"
)

func (g *Globals) thresholds() (command.Thresholds, error) {
	return command.ThresholdUpdate{
		Execution: &g.ExecutionThreshold,
		Learning:  &g.LearningThreshold,
		Dedup:     &g.DedupThreshold,
	}.Apply(command.DefaultThresholds())
}

func (g *Globals) manifest() (manifest.Manifest, error) {
	if len(g.Manifest) == 0 {
		return manifest.Default(), nil
	}
	return manifest.Load(g.Manifest)
}

func (g *Globals) storer() storer.Storer {
	opts := []storer.Option{
		storer.WithCollection(g.Collection),
		storer.WithDimension(g.Dimension),
	}

	if len(g.StoreLocation) > 0 {
		opts = append(opts, storer.WithLocation(g.StoreLocation))
	}

	switch g.Store {
	case "memory":
		return memory.NewStorer(opts...)
	case "postgres":
		return postgres.NewStorer(opts...)
	case "qdrant":
		if len(g.QdrantKey) > 0 {
			opts = append(opts, qdrant.WithApiKey(g.QdrantKey))
		}
		return qdrant.NewStorer(opts...)
	default:
		return sqlite.NewStorer(opts...)
	}
}

func (g *Globals) embedder() embedder.Embedder {
	opts := []embedder.Option{
		embedder.WithApiKey(g.EmbedderKey),
		embedder.WithModel(g.EmbedderModel),
		embedder.WithBaseURL(g.EmbedderURL),
		embedder.WithDimension(g.Dimension),
	}

	switch g.Embedder {
	case "openai":
		return openai.NewEmbedder(opts...)
	case "google":
		return google.NewEmbedder(opts...)
	default:
		return lexical.NewEmbedder(opts...)
	}
}

func (g *Globals) executor() executor.Executor {
	opts := []executor.Option{
		executor.WithLocation(g.ExecutorLocation),
		executor.WithTimeout(g.ExecutorTimeout),
	}

	switch g.Executor {
	case "http":
		return httpexecutor.NewExecutor(opts...)
	case "utcp":
		opts = append(opts, utcp.WithToolName(g.ExecutorTool))
		return utcp.NewExecutor(opts...)
	default:
		return dryrun.NewExecutor()
	}
}

// open builds the engine and seeds it unless told not to.
func (g *Globals) open(ctx context.Context, bootstrap bool) (*vox.Engine, error) {
	thresholds, err := g.thresholds()
	if err != nil {
		return nil, err
	}

	engine := vox.New(
		g.storer(),
		g.embedder(),
		g.executor(),
		vox.WithThresholds(thresholds),
		vox.WithLearningMode(g.Learning),
		vox.WithPendingPayload(g.PendingPayload),
	)

	if bootstrap && !g.NoBootstrap {
		m, err := g.manifest()
		if err != nil {
			engine.Close()
			return nil, err
		}

		engine.Bootstrap(ctx, m)
	}

	return engine, nil
}
