package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/vox/command"
	"github.com/w-h-a/vox/embedder"
	"github.com/w-h-a/vox/embedder/embeddertest"
	"github.com/w-h-a/vox/executor"
	"github.com/w-h-a/vox/executor/dryrun"
	"github.com/w-h-a/vox/internal/service/catalog"
	"github.com/w-h-a/vox/storer"
	"github.com/w-h-a/vox/storer/memory"
)

const avancerPayload = "motor.left.target = 200\nmotor.right.target = 200"

type fixture struct {
	svc     *Service
	catalog *catalog.Service
	table   *embeddertest.Table
	storer  storer.Storer
	device  *dryrun.Executor
}

func newFixture(t *testing.T, x executor.Executor) *fixture {
	t.Helper()

	table := embeddertest.New(map[string][]float32{
		"faire avancer le robot":          {1, 0, 0, 0},
		"faire reculer le robot":          {0, 1, 0, 0},
		"avance":                          {0.8, 0.6, 0, 0},
		"calculer la racine carrée de 64": {0, 0, 0.1, 1},
		"avance vite":                     {0.88, 0.475, 0, 0},
		"avance tout droit":               {0.95, 0.3122, 0, 0},
		"en arrière un peu":               {0.1, 0.4, 0, 0.9},
	})

	s := memory.NewStorer()
	t.Cleanup(func() { _ = s.Close() })

	cat := catalog.New(s, table)

	device := dryrun.NewExecutor()
	if x == nil {
		x = device
	}

	f := &fixture{
		svc:     New(s, table, x, cat, command.DefaultThresholds()),
		catalog: cat,
		table:   table,
		storer:  s,
		device:  device,
	}

	result := cat.Learn(context.Background(), command.Command{
		Id:          "avancer",
		Description: "faire avancer le robot",
		Payload:     avancerPayload,
		Category:    "default",
	}, command.DefaultDedupThreshold)
	require.True(t, result.Ok())

	return f
}

func ptr(v float64) *float64 { return &v }

func TestResolveExecutesParaphrase(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.ConfigureThresholds(command.ThresholdUpdate{Execution: ptr(0.6)})
	require.NoError(t, err)

	outcome := f.svc.Resolve(context.Background(), "Avance")

	require.Equal(t, command.StatusExecuted, outcome.Status, "%+v", outcome)
	assert.Equal(t, "avancer", outcome.Id)
	assert.Equal(t, "faire avancer le robot", outcome.Description)
	assert.InDelta(t, 0.8, outcome.Similarity, 1e-6)
	assert.Empty(t, outcome.LearnedId)
	assert.Equal(t, []string{avancerPayload}, f.device.Runs())
}

func TestResolveUnknownOffersSuggestions(t *testing.T) {
	f := newFixture(t, nil)

	outcome := f.svc.Resolve(context.Background(), "calculer la racine carrée de 64")

	assert.Equal(t, command.StatusUnknown, outcome.Status)
	assert.Equal(t, "calculer la racine carrée de 64", outcome.Text)
	assert.NotNil(t, outcome.Suggestions)
	assert.Empty(t, outcome.Suggestions)
	assert.Empty(t, f.device.Runs())
}

func TestResolveSuggestionsAboveFloor(t *testing.T) {
	f := newFixture(t, nil)

	require.True(t, f.catalog.Learn(context.Background(), command.Command{
		Id: "reculer", Description: "faire reculer le robot", Payload: "x",
	}, command.DefaultDedupThreshold).Ok())

	outcome := f.svc.Resolve(context.Background(), "en arrière un peu")

	require.Equal(t, command.StatusUnknown, outcome.Status, "%+v", outcome)
	require.Len(t, outcome.Suggestions, 1)
	assert.Equal(t, "reculer", outcome.Suggestions[0].Id)
	assert.GreaterOrEqual(t, outcome.Suggestions[0].Similarity, command.DefaultSuggestionThreshold)
	assert.Less(t, outcome.Suggestions[0].Similarity, command.DefaultExecutionThreshold)
}

func TestResolveThresholdIsInclusive(t *testing.T) {
	f := newFixture(t, nil)

	sim := storer.CosineSimilarity([]float32{1, 0, 0, 0}, []float32{0.8, 0.6, 0, 0})

	_, err := f.svc.ConfigureThresholds(command.ThresholdUpdate{Execution: ptr(sim)})
	require.NoError(t, err)

	outcome := f.svc.Resolve(context.Background(), "avance")
	assert.Equal(t, command.StatusExecuted, outcome.Status)

	_, err = f.svc.ConfigureThresholds(command.ThresholdUpdate{Execution: ptr(sim + 1e-9)})
	require.NoError(t, err)

	outcome = f.svc.Resolve(context.Background(), "avance")
	assert.Equal(t, command.StatusUnknown, outcome.Status)
	require.Len(t, outcome.Suggestions, 1)
	assert.Equal(t, "avancer", outcome.Suggestions[0].Id)
}

func TestResolveEmptyInputSkipsEmbedder(t *testing.T) {
	f := newFixture(t, nil)

	calls := f.table.Calls()

	for _, text := range []string{"", "   ", "\t\n"} {
		outcome := f.svc.Resolve(context.Background(), text)
		assert.Equal(t, command.StatusError, outcome.Status)
		assert.Equal(t, command.ReasonEmptyInput, outcome.Reason)
	}

	assert.Equal(t, calls, f.table.Calls())
}

func TestResolveEmbeddingFailure(t *testing.T) {
	f := newFixture(t, nil)

	f.table.Fail(errors.New("model offline"))

	outcome := f.svc.Resolve(context.Background(), "avance")
	assert.Equal(t, command.StatusError, outcome.Status)
	assert.Equal(t, command.ReasonEmbeddingFailed, outcome.Reason)
	assert.Empty(t, f.device.Runs())
}

func TestResolveEmbedderFindsNothingToEmbed(t *testing.T) {
	f := newFixture(t, nil)

	f.table.Fail(embedder.ErrEmptyInput)

	outcome := f.svc.Resolve(context.Background(), " ?! ")
	assert.Equal(t, command.StatusError, outcome.Status)
	assert.Equal(t, command.ReasonEmptyInput, outcome.Reason)
	assert.ErrorIs(t, outcome.Err, embedder.ErrEmptyInput)
	assert.Empty(t, f.device.Runs())

	learned := f.catalog.Learn(context.Background(), command.Command{
		Id:          "ponctuation",
		Description: " ?! ",
		Payload:     "x",
	}, command.DefaultDedupThreshold)
	assert.Equal(t, command.ReasonEmptyInput, learned.Reason)
}

func TestResolveExecutionFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason command.Reason
	}{
		{name: "device error", err: executor.ErrExecution, reason: command.ReasonExecutionFailed},
		{name: "other error", err: errors.New("usb unplugged"), reason: command.ReasonExecutionFailed},
		{name: "busy", err: executor.ErrBusy, reason: command.ReasonExecutionBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, executor.Func(func(ctx context.Context, payload string) error {
				return tt.err
			}))

			outcome := f.svc.Resolve(context.Background(), "faire avancer le robot")
			assert.Equal(t, command.StatusError, outcome.Status)
			assert.Equal(t, tt.reason, outcome.Reason)
			assert.Equal(t, "avancer", outcome.Id)
			assert.ErrorIs(t, outcome.Err, tt.err)
		})
	}
}

func TestResolveRunsDespiteCancellation(t *testing.T) {
	var runErr error

	f := newFixture(t, executor.Func(func(ctx context.Context, payload string) error {
		runErr = ctx.Err()
		return runErr
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := f.svc.Resolve(ctx, "faire avancer le robot")
	assert.NoError(t, runErr)
	assert.Equal(t, command.StatusExecuted, outcome.Status, "%+v", outcome)
}

func TestLearnOnResolveGrowsCatalog(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.svc.SetLearningMode(true)
	f.svc.SetPendingPayload("motor.left.target = 400\nmotor.right.target = 400")

	outcome := f.svc.Resolve(ctx, "avance vite")

	require.Equal(t, command.StatusExecuted, outcome.Status, "%+v", outcome)
	assert.Equal(t, "avancer", outcome.Id)
	require.NotEmpty(t, outcome.LearnedId)
	assert.True(t, strings.HasPrefix(outcome.LearnedId, "learned_"))

	records, err := f.catalog.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	learned := records[1]
	assert.Equal(t, outcome.LearnedId, learned.Id)
	assert.Equal(t, "avance vite", learned.Description)
	assert.Equal(t, command.CategoryLearned, learned.Category)
	assert.Equal(t, "motor.left.target = 400\nmotor.right.target = 400", learned.Payload)

	// the executed payload is the matched command, not the pending one
	assert.Equal(t, []string{avancerPayload}, f.device.Runs())
}

func TestLearnOnResolveSwallowsConflicts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.svc.SetLearningMode(true)

	outcome := f.svc.Resolve(ctx, "avance tout droit")

	require.Equal(t, command.StatusExecuted, outcome.Status, "%+v", outcome)
	assert.Empty(t, outcome.LearnedId)

	records, err := f.catalog.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLearnOnResolveNeedsLearningMode(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	outcome := f.svc.Resolve(ctx, "avance vite")
	require.Equal(t, command.StatusExecuted, outcome.Status)
	assert.Empty(t, outcome.LearnedId)

	f.svc.SetLearningMode(true)
	_, err := f.svc.ConfigureThresholds(command.ThresholdUpdate{Learning: ptr(0.95)})
	require.NoError(t, err)

	outcome = f.svc.Resolve(ctx, "avance vite")
	require.Equal(t, command.StatusExecuted, outcome.Status)
	assert.Empty(t, outcome.LearnedId)

	records, err := f.catalog.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLearnOnResolveDefaultPayload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.svc.SetLearningMode(true)
	f.svc.SetPendingPayload("")
	assert.Equal(t, DefaultPendingPayload, f.svc.PendingPayload())

	outcome := f.svc.Resolve(ctx, "avance vite")
	require.NotEmpty(t, outcome.LearnedId)

	records, err := f.catalog.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, DefaultPendingPayload, records[1].Payload)
}

func TestConfigureThresholdsIsAtomic(t *testing.T) {
	f := newFixture(t, nil)

	before := f.svc.Thresholds()

	_, err := f.svc.ConfigureThresholds(command.ThresholdUpdate{
		Execution: ptr(0.7),
		Learning:  ptr(1.5),
	})
	require.ErrorIs(t, err, command.ErrOutOfRange)
	assert.Equal(t, before, f.svc.Thresholds())

	got, err := f.svc.ConfigureThresholds(command.ThresholdUpdate{Dedup: ptr(0.95)})
	require.NoError(t, err)
	assert.Equal(t, 0.95, got.Dedup)
	assert.Equal(t, before.Execution, got.Execution)
}
