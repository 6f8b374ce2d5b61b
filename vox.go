package vox

import (
	"context"

	"github.com/w-h-a/vox/command"
	"github.com/w-h-a/vox/embedder"
	"github.com/w-h-a/vox/executor"
	"github.com/w-h-a/vox/internal/service/catalog"
	"github.com/w-h-a/vox/internal/service/resolver"
	"github.com/w-h-a/vox/manifest"
	"github.com/w-h-a/vox/storer"
)

type Report = catalog.Report

type Stats struct {
	storer.Stats
	Thresholds     command.Thresholds `json:"thresholds"`
	LearningMode   bool               `json:"learning_mode"`
	PendingPayload string             `json:"pending_payload"`
}

// Engine resolves utterances against a command catalog and administers
// that catalog. It is safe for concurrent use.
type Engine struct {
	storer   storer.Storer
	resolver *resolver.Service
	catalog  *catalog.Service
}

func (e *Engine) Resolve(ctx context.Context, text string) command.Outcome {
	return e.resolver.Resolve(ctx, text)
}

func (e *Engine) Learn(ctx context.Context, cmd command.Command) command.LearnResult {
	return e.catalog.Learn(ctx, cmd, e.resolver.Thresholds().Dedup)
}

func (e *Engine) Forget(ctx context.Context, id string) command.ForgetResult {
	return e.catalog.Forget(ctx, id)
}

func (e *Engine) List(ctx context.Context) ([]storer.Record, error) {
	return e.catalog.List(ctx)
}

func (e *Engine) Thresholds() command.Thresholds {
	return e.resolver.Thresholds()
}

func (e *Engine) ConfigureThresholds(u command.ThresholdUpdate) (command.Thresholds, error) {
	return e.resolver.ConfigureThresholds(u)
}

func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	stats, err := e.catalog.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Stats:          stats,
		Thresholds:     e.resolver.Thresholds(),
		LearningMode:   e.resolver.LearningMode(),
		PendingPayload: e.resolver.PendingPayload(),
	}, nil
}

// Reset empties the catalog. It does not re-seed; call Bootstrap for that.
func (e *Engine) Reset(ctx context.Context) error {
	return e.catalog.Reset(ctx)
}

func (e *Engine) Bootstrap(ctx context.Context, m manifest.Manifest) Report {
	return e.catalog.Bootstrap(ctx, m)
}

func (e *Engine) LearningMode() bool {
	return e.resolver.LearningMode()
}

func (e *Engine) SetLearningMode(enabled bool) {
	e.resolver.SetLearningMode(enabled)
}

func (e *Engine) SetPendingPayload(payload string) {
	e.resolver.SetPendingPayload(payload)
}

func (e *Engine) Close() error {
	return e.storer.Close()
}

func New(
	s storer.Storer,
	emb embedder.Embedder,
	x executor.Executor,
	opts ...Option,
) *Engine {
	if s == nil || emb == nil || x == nil {
		panic("vox engine needs a storer, an embedder and an executor")
	}

	options := NewOptions(opts...)

	catalog := catalog.New(s, emb)

	resolver := resolver.New(
		s,
		emb,
		executor.Serialize(x),
		catalog,
		options.Thresholds,
	)

	resolver.SetLearningMode(options.LearningMode)
	resolver.SetPendingPayload(options.PendingPayload)

	return &Engine{
		storer:   s,
		resolver: resolver,
		catalog:  catalog,
	}
}
