package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/vox/command"
	"github.com/w-h-a/vox/embedder/embeddertest"
	"github.com/w-h-a/vox/manifest"
	"github.com/w-h-a/vox/storer"
	"github.com/w-h-a/vox/storer/memory"
)

const dedup = command.DefaultDedupThreshold

func newService(t *testing.T) (*Service, *embeddertest.Table, storer.Storer) {
	t.Helper()

	table := embeddertest.New(map[string][]float32{
		"faire avancer le robot": {1, 0, 0, 0},
		"faire reculer le robot": {0, 1, 0, 0},
		"arrêter le robot":       {0, 0, 1, 0},
		"va tout droit":          {0.95, 0.3122, 0, 0},
		"danser":                 {0, 0, 0, 1},
	})

	s := memory.NewStorer()
	t.Cleanup(func() { _ = s.Close() })

	return New(s, table), table, s
}

func avancer() command.Command {
	return command.Command{
		Id:          "avancer",
		Description: "faire avancer le robot",
		Payload:     "motor.left.target = 200\nmotor.right.target = 200",
	}
}

func TestLearnStoresCommand(t *testing.T) {
	ctx := context.Background()
	svc, _, s := newService(t)

	result := svc.Learn(ctx, avancer(), dedup)
	require.True(t, result.Ok(), "%+v", result)
	assert.Equal(t, "avancer", result.Id)

	ok, err := s.Exists(ctx, "avancer")
	require.NoError(t, err)
	assert.True(t, ok)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "faire avancer le robot", records[0].Description)
	assert.Equal(t, "motor.left.target = 200\nmotor.right.target = 200", records[0].Payload)
	assert.Equal(t, command.CategoryCustom, records[0].Category)

	best, err := storer.BestMatch(ctx, s, []float32{1, 0, 0, 0}, 0)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "avancer", best.Id)
	assert.GreaterOrEqual(t, best.Similarity, 0.99)
}

func TestLearnTwiceKeepsOneRecord(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	require.True(t, svc.Learn(ctx, avancer(), dedup).Ok())

	updated := avancer()
	updated.Payload = "motor.left.target = 300\nmotor.right.target = 300"
	require.True(t, svc.Learn(ctx, updated, dedup).Ok())

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, updated.Payload, records[0].Payload)
}

func TestLearnRejectsNearDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	require.True(t, svc.Learn(ctx, avancer(), dedup).Ok())

	result := svc.Learn(ctx, command.Command{Id: "tout_droit", Description: "va tout droit", Payload: "x"}, dedup)
	assert.Equal(t, command.LearnConflict, result.Status)
	assert.Equal(t, "avancer", result.ExistingId)
	assert.Greater(t, result.Similarity, dedup)
	assert.NoError(t, result.Err)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// raising the bar lets it through
	result = svc.Learn(ctx, command.Command{Id: "tout_droit", Description: "va tout droit", Payload: "x"}, 0.99)
	assert.True(t, result.Ok())
}

func TestLearnDedupIsStrict(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	require.True(t, svc.Learn(ctx, avancer(), dedup).Ok())

	sim := storer.CosineSimilarity([]float32{1, 0, 0, 0}, []float32{0.95, 0.3122, 0, 0})

	result := svc.Learn(ctx, command.Command{Id: "tout_droit", Description: "va tout droit", Payload: "x"}, sim)
	assert.True(t, result.Ok(), "similarity equal to the dedup threshold is not a duplicate")
}

func TestLearnFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		cmd    command.Command
		reason command.Reason
	}{
		{name: "empty payload", cmd: command.Command{Id: "a", Description: "danser", Payload: " "}, reason: command.ReasonEmptyPayload},
		{name: "empty id", cmd: command.Command{Description: "danser", Payload: "x"}, reason: command.ReasonEmptyInput},
		{name: "empty description", cmd: command.Command{Id: "a", Payload: "x"}, reason: command.ReasonEmptyInput},
		{name: "unknown text", cmd: command.Command{Id: "a", Description: "chanter", Payload: "x"}, reason: command.ReasonEmbeddingFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, s := newService(t)

			result := svc.Learn(ctx, tt.cmd, dedup)
			assert.Equal(t, command.LearnFailure, result.Status)
			assert.Equal(t, tt.reason, result.Reason)

			stats, err := s.Stats(ctx)
			require.NoError(t, err)
			assert.Zero(t, stats.Total)
		})
	}
}

func TestLearnReportsStorageErrors(t *testing.T) {
	ctx := context.Background()
	svc, table, _ := newService(t)

	require.True(t, svc.Learn(ctx, avancer(), dedup).Ok())

	table.Set("trois dimensions", 1, 0, 0)

	result := svc.Learn(ctx, command.Command{Id: "b", Description: "trois dimensions", Payload: "x"}, dedup)
	assert.Equal(t, command.LearnFailure, result.Status)
	assert.Equal(t, command.ReasonStorageError, result.Reason)
	assert.ErrorIs(t, result.Err, storer.ErrDimensionMismatch)
}

func TestConcurrentLearns(t *testing.T) {
	ctx := context.Background()
	svc, table, _ := newService(t)

	const n = 24

	for i := range n {
		vec := make([]float32, n)
		vec[i] = 1
		table.Set(fmt.Sprintf("commande %d", i), vec...)
	}

	var wg sync.WaitGroup
	results := make(chan command.LearnResult, n)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Learn(ctx, command.Command{
				Id:          fmt.Sprintf("cmd_%d", i),
				Description: fmt.Sprintf("commande %d", i),
				Payload:     "x",
			}, dedup)
		}()
	}

	wg.Wait()
	close(results)

	for result := range results {
		assert.True(t, result.Ok(), "%+v", result)
	}

	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, n)
}

func TestConcurrentNearDuplicatesStoreOne(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	var wg sync.WaitGroup
	results := make(chan command.LearnResult, 2)

	for _, cmd := range []command.Command{
		avancer(),
		{Id: "tout_droit", Description: "va tout droit", Payload: "x"},
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Learn(ctx, cmd, dedup)
		}()
	}

	wg.Wait()
	close(results)

	var ok, conflicts int
	for result := range results {
		switch result.Status {
		case command.LearnSuccess:
			ok++
		case command.LearnConflict:
			conflicts++
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	result := svc.Forget(ctx, "avancer")
	assert.False(t, result.Removed)
	assert.Empty(t, result.Reason)

	require.True(t, svc.Learn(ctx, avancer(), dedup).Ok())

	result = svc.Forget(ctx, "avancer")
	assert.True(t, result.Removed)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()

	table := embeddertest.New(nil)
	for i, e := range manifest.Default().Entries {
		vec := make([]float32, 5)
		vec[i] = 1
		table.Set(e.Description, vec...)
	}

	s := memory.NewStorer()
	defer s.Close()

	svc := New(s, table)

	report := svc.Bootstrap(ctx, manifest.Default())
	assert.Equal(t, []string{"avancer", "reculer", "arreter", "tourner_gauche", "tourner_droite"}, report.Added)
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.Failed)

	seeded, err := svc.List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(seeded))
	for _, r := range seeded {
		ids = append(ids, r.Id)
	}
	assert.Equal(t, report.Added, ids, "records keep manifest order")

	// a user edit survives the next startup
	custom := command.Command{Id: "avancer", Description: "faire avancer le robot", Payload: "motor.left.target = 500", Category: "default"}
	require.True(t, svc.Learn(ctx, custom, dedup).Ok())

	calls := table.Calls()

	report = svc.Bootstrap(ctx, manifest.Default())
	assert.Empty(t, report.Added)
	assert.Len(t, report.Skipped, 5)
	assert.Equal(t, calls, table.Calls(), "existing entries are not re-embedded")

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 5)

	for _, r := range records {
		if r.Id == "avancer" {
			assert.Equal(t, "motor.left.target = 500", r.Payload)
		}
		assert.Equal(t, "default", r.Category)
	}
}

func TestBootstrapReportsBadEntries(t *testing.T) {
	ctx := context.Background()
	svc, table, _ := newService(t)

	m, err := manifest.Parse([]byte(`
avancer:
  description: faire avancer le robot
  code: motor.left.target = 200
vide:
  description: danser
cassé:
  description: inconnu
  payload: x
`))
	require.NoError(t, err)

	report := svc.Bootstrap(ctx, m)
	assert.Equal(t, []string{"avancer"}, report.Added)
	require.Len(t, report.Failed, 2)

	reasons := map[string]command.Reason{}
	for _, f := range report.Failed {
		reasons[f.Id] = f.Reason
	}
	assert.Equal(t, map[string]command.Reason{
		"cassé": command.ReasonEmbeddingFailed,
		"vide":  command.ReasonEmptyPayload,
	}, reasons)

	table.Fail(errors.New("model offline"))

	report = svc.Bootstrap(ctx, m)
	assert.Equal(t, []string{"avancer"}, report.Skipped)
}

func TestResetEmptiesCatalog(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	require.True(t, svc.Learn(ctx, avancer(), dedup).Ok())
	require.NoError(t, svc.Reset(ctx))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}
