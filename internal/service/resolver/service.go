package resolver

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/w-h-a/vox/command"
	"github.com/w-h-a/vox/embedder"
	"github.com/w-h-a/vox/executor"
	"github.com/w-h-a/vox/storer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultPendingPayload stops the motors. Auto-learned commands get it
	// unless the caller supplied something else.
	DefaultPendingPayload = "motor.left.target = 0\nmotor.right.target = 0"

	learnedIdPrefix = "learned_"
)

var tracer = otel.Tracer("github.com/w-h-a/vox/internal/service/resolver")

// Learner stores a command whose embedding is already known.
type Learner interface {
	LearnEmbedded(ctx context.Context, cmd command.Command, vector []float32, dedup float64) command.LearnResult
}

type Service struct {
	storer          storer.Storer
	embedder        embedder.Embedder
	executor        executor.Executor
	learner         Learner
	suggestionFloor float64
	suggestionLimit int
	thresholds      command.Thresholds
	learning        bool
	pending         string
	mtx             sync.RWMutex
}

// Resolve turns one utterance into exactly one outcome. Once a payload has
// been handed to the executor it runs to completion even if ctx is
// cancelled.
func (s *Service) Resolve(ctx context.Context, text string) command.Outcome {
	ctx, span := tracer.Start(ctx, "resolver.Resolve")
	defer span.End()

	outcome := s.resolve(ctx, text)

	span.SetAttributes(
		attribute.String("outcome.status", string(outcome.Status)),
		attribute.String("outcome.id", outcome.Id),
		attribute.Float64("outcome.similarity", outcome.Similarity),
	)

	if outcome.Status == command.StatusError {
		span.SetAttributes(attribute.String("outcome.reason", string(outcome.Reason)))
		if outcome.Err != nil {
			span.SetStatus(codes.Error, outcome.Err.Error())
		}
	}

	return outcome
}

func (s *Service) resolve(ctx context.Context, text string) command.Outcome {
	normalized := command.Normalize(text)
	if len(normalized) == 0 {
		return command.Failed(text, command.ReasonEmptyInput, embedder.ErrEmptyInput)
	}

	thresholds, learning, pending := s.snapshot()

	vector, err := s.embedder.Embed(ctx, normalized)
	if errors.Is(err, embedder.ErrEmptyInput) {
		return command.Failed(text, command.ReasonEmptyInput, err)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to embed utterance", "text", normalized, "error", err)
		return command.Failed(text, command.ReasonEmbeddingFailed, err)
	}

	match, err := storer.BestMatch(ctx, s.storer, vector, thresholds.Execution)
	if err != nil {
		slog.ErrorContext(ctx, "failed to search commands", "error", err)
		return command.Failed(text, command.ReasonStorageError, err)
	}

	if match == nil {
		return s.suggest(ctx, text, vector)
	}

	outcome := command.Outcome{
		Status:      command.StatusExecuted,
		Text:        text,
		Id:          match.Id,
		Similarity:  match.Similarity,
		Description: match.Description,
	}

	if learning && match.Similarity >= thresholds.Learning {
		outcome.LearnedId = s.learnFrom(ctx, normalized, vector, pending, thresholds.Dedup)
	}

	if err := s.executor.Run(context.WithoutCancel(ctx), match.Payload); err != nil {
		outcome.Status = command.StatusError
		outcome.Err = err
		outcome.Reason = command.ReasonExecutionFailed
		if errors.Is(err, executor.ErrBusy) {
			outcome.Reason = command.ReasonExecutionBusy
		}
		slog.ErrorContext(ctx, "failed to execute command", "id", match.Id, "reason", outcome.Reason, "error", err)
		return outcome
	}

	slog.InfoContext(ctx, "executed command", "id", match.Id, "similarity", match.Similarity)

	return outcome
}

func (s *Service) suggest(ctx context.Context, text string, vector []float32) command.Outcome {
	suggestions, err := s.storer.Search(ctx, vector, s.suggestionLimit, s.suggestionFloor)
	if err != nil {
		slog.ErrorContext(ctx, "failed to search suggestions", "error", err)
		return command.Failed(text, command.ReasonStorageError, err)
	}

	if suggestions == nil {
		suggestions = []storer.Match{}
	}

	slog.InfoContext(ctx, "unknown command", "text", text, "suggestions", len(suggestions))

	return command.Outcome{
		Status:      command.StatusUnknown,
		Text:        text,
		Suggestions: suggestions,
	}
}

// learnFrom saves the utterance as a new command and returns its id, or the
// empty string when nothing was stored. Conflicts are expected here.
func (s *Service) learnFrom(ctx context.Context, text string, vector []float32, payload string, dedup float64) string {
	cmd := command.Command{
		Id:          learnedIdPrefix + uuid.NewString(),
		Description: text,
		Payload:     payload,
		Category:    command.CategoryLearned,
	}

	result := s.learner.LearnEmbedded(ctx, cmd, vector, dedup)

	switch result.Status {
	case command.LearnSuccess:
		return result.Id
	case command.LearnConflict:
		slog.InfoContext(ctx, "skipped learning utterance", "text", text, "existing_id", result.ExistingId, "similarity", result.Similarity)
	default:
		slog.WarnContext(ctx, "failed to learn utterance", "text", text, "reason", result.Reason, "error", result.Err)
	}

	return ""
}

func (s *Service) snapshot() (command.Thresholds, bool, string) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.thresholds, s.learning, s.pending
}

func (s *Service) Thresholds() command.Thresholds {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.thresholds
}

// ConfigureThresholds applies every value in u or none of them.
func (s *Service) ConfigureThresholds(u command.ThresholdUpdate) (command.Thresholds, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	next, err := u.Apply(s.thresholds)
	if err != nil {
		return s.thresholds, err
	}

	s.thresholds = next

	return next, nil
}

func (s *Service) LearningMode() bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.learning
}

func (s *Service) SetLearningMode(enabled bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.learning = enabled
}

func (s *Service) PendingPayload() string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.pending
}

// SetPendingPayload sets the payload given to auto-learned commands. An
// empty payload restores the default.
func (s *Service) SetPendingPayload(payload string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if len(payload) == 0 {
		payload = DefaultPendingPayload
	}

	s.pending = payload
}

func New(
	s storer.Storer,
	e embedder.Embedder,
	x executor.Executor,
	l Learner,
	thresholds command.Thresholds,
) *Service {
	return &Service{
		storer:          s,
		embedder:        e,
		executor:        x,
		learner:         l,
		suggestionFloor: command.DefaultSuggestionThreshold,
		suggestionLimit: command.DefaultSuggestionLimit,
		thresholds:      thresholds,
		pending:         DefaultPendingPayload,
	}
}
