package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/w-h-a/vox/command"
	"github.com/w-h-a/vox/embedder"
	"github.com/w-h-a/vox/manifest"
	"github.com/w-h-a/vox/storer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/w-h-a/vox/internal/service/catalog")

// Report summarises one bootstrap run.
type Report struct {
	Added   []string              `json:"added"`
	Skipped []string              `json:"skipped"`
	Failed  []command.LearnResult `json:"failed,omitempty"`
}

// Service owns every write to the store. Learn holds the write lock across
// the near-duplicate search and the insert so two learns cannot both pass
// the check.
type Service struct {
	storer   storer.Storer
	embedder embedder.Embedder
	mtx      sync.Mutex
}

// Learn embeds the description and stores the command unless a different
// command lies strictly above dedup similarity.
func (s *Service) Learn(ctx context.Context, cmd command.Command, dedup float64) command.LearnResult {
	ctx, span := tracer.Start(ctx, "catalog.Learn")
	defer span.End()

	cmd, reason, ok := cmd.Validate()
	if !ok {
		return command.LearnFailed(cmd.Id, reason, nil)
	}

	span.SetAttributes(attribute.String("command.id", cmd.Id))

	vector, err := s.embedder.Embed(ctx, command.Normalize(cmd.Description))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, embedder.ErrEmptyInput) {
			return command.LearnFailed(cmd.Id, command.ReasonEmptyInput, err)
		}
		return command.LearnFailed(cmd.Id, command.ReasonEmbeddingFailed, err)
	}

	result := s.learn(ctx, cmd, vector, dedup)

	span.SetAttributes(attribute.String("learn.status", string(result.Status)))

	return result
}

// LearnEmbedded is Learn for a caller that already holds the embedding of
// the description.
func (s *Service) LearnEmbedded(ctx context.Context, cmd command.Command, vector []float32, dedup float64) command.LearnResult {
	cmd, reason, ok := cmd.Validate()
	if !ok {
		return command.LearnFailed(cmd.Id, reason, nil)
	}

	return s.learn(ctx, cmd, vector, dedup)
}

func (s *Service) learn(ctx context.Context, cmd command.Command, vector []float32, dedup float64) command.LearnResult {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	// two candidates are enough since at most one can share the id
	matches, err := s.storer.Search(ctx, vector, 2, dedup)
	if err != nil {
		return command.LearnFailed(cmd.Id, command.ReasonStorageError, err)
	}

	for _, m := range matches {
		if m.Id == cmd.Id {
			continue
		}
		if m.Similarity > dedup {
			slog.InfoContext(ctx, "near-duplicate command", "id", cmd.Id, "existing_id", m.Id, "similarity", m.Similarity)
			return command.Conflict(cmd.Id, m.Id, m.Similarity)
		}
	}

	if err := s.storer.Add(ctx, record(cmd, vector)); err != nil {
		slog.ErrorContext(ctx, "failed to store command", "id", cmd.Id, "error", err)
		return command.LearnFailed(cmd.Id, command.ReasonStorageError, err)
	}

	slog.InfoContext(ctx, "learned command", "id", cmd.Id, "category", cmd.Category)

	return command.Learned(cmd.Id)
}

func (s *Service) Forget(ctx context.Context, id string) command.ForgetResult {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	removed, err := s.storer.Delete(ctx, id)
	if err != nil {
		return command.ForgetResult{Id: id, Reason: command.ReasonStorageError, Err: err}
	}

	if removed {
		slog.InfoContext(ctx, "forgot command", "id", id)
	}

	return command.ForgetResult{Id: id, Removed: removed}
}

func (s *Service) List(ctx context.Context) ([]storer.Record, error) {
	return s.storer.All(ctx)
}

func (s *Service) Stats(ctx context.Context) (storer.Stats, error) {
	return s.storer.Stats(ctx)
}

func (s *Service) Reset(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.storer.Reset(ctx); err != nil {
		return err
	}

	slog.InfoContext(ctx, "reset command catalog")

	return nil
}

// Bootstrap inserts every manifest entry whose id is not yet stored.
// Existing ids are left alone so that user edits survive restarts.
func (s *Service) Bootstrap(ctx context.Context, m manifest.Manifest) Report {
	ctx, span := tracer.Start(ctx, "catalog.Bootstrap")
	defer span.End()

	report := Report{
		Added:   []string{},
		Skipped: []string{},
	}

	for _, entry := range m.Entries {
		result := s.seed(ctx, command.Command{
			Id:          entry.Id,
			Description: entry.Description,
			Payload:     entry.Payload,
			Category:    entry.Category,
		})

		switch {
		case result.Ok():
			report.Added = append(report.Added, result.Id)
		case result.Status == command.LearnConflict:
			report.Skipped = append(report.Skipped, result.Id)
		default:
			slog.WarnContext(ctx, "failed to seed command", "id", result.Id, "reason", result.Reason, "error", result.Err)
			report.Failed = append(report.Failed, result)
		}
	}

	span.SetAttributes(
		attribute.Int("bootstrap.added", len(report.Added)),
		attribute.Int("bootstrap.skipped", len(report.Skipped)),
		attribute.Int("bootstrap.failed", len(report.Failed)),
	)

	slog.InfoContext(ctx, "bootstrapped command catalog", "added", len(report.Added), "skipped", len(report.Skipped), "failed", len(report.Failed))

	return report
}

// seed reports an already stored id as a conflict with itself.
func (s *Service) seed(ctx context.Context, cmd command.Command) command.LearnResult {
	cmd, reason, ok := cmd.Validate()
	if !ok {
		return command.LearnFailed(cmd.Id, reason, nil)
	}

	exists, err := s.storer.Exists(ctx, cmd.Id)
	if err != nil {
		return command.LearnFailed(cmd.Id, command.ReasonStorageError, err)
	}
	if exists {
		return command.Conflict(cmd.Id, cmd.Id, 1)
	}

	vector, err := s.embedder.Embed(ctx, command.Normalize(cmd.Description))
	if err != nil {
		return command.LearnFailed(cmd.Id, command.ReasonEmbeddingFailed, err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	// a concurrent learn may have taken the id meanwhile
	exists, err = s.storer.Exists(ctx, cmd.Id)
	if err != nil {
		return command.LearnFailed(cmd.Id, command.ReasonStorageError, err)
	}
	if exists {
		return command.Conflict(cmd.Id, cmd.Id, 1)
	}

	if err := s.storer.Add(ctx, record(cmd, vector)); err != nil {
		return command.LearnFailed(cmd.Id, command.ReasonStorageError, err)
	}

	return command.Learned(cmd.Id)
}

func record(cmd command.Command, vector []float32) storer.Record {
	return storer.Record{
		Id:          cmd.Id,
		Description: cmd.Description,
		Payload:     cmd.Payload,
		Category:    cmd.Category,
		Embedding:   vector,
	}
}

func New(s storer.Storer, e embedder.Embedder) *Service {
	return &Service{
		storer:   s,
		embedder: e,
	}
}
