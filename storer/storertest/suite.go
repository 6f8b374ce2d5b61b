// Package storertest holds behaviour every storer.Storer must share.
package storertest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/vox/storer"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) storer.Storer

func Run(t *testing.T, newStorer Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s storer.Storer)
	}{
		{"AddThenExists", testAddThenExists},
		{"AddExistingReplaces", testAddExistingReplaces},
		{"UpdateReplaces", testUpdateReplaces},
		{"DeleteReportsPresence", testDeleteReportsPresence},
		{"SearchOrdersAndFilters", testSearchOrdersAndFilters},
		{"SearchTiesKeepInsertionOrder", testSearchTiesKeepInsertionOrder},
		{"BestMatchIsInclusive", testBestMatchIsInclusive},
		{"SelfSimilarity", testSelfSimilarity},
		{"DimensionMismatch", testDimensionMismatch},
		{"RejectsInvalidRecords", testRejectsInvalidRecords},
		{"StatsCountsCategories", testStatsCountsCategories},
		{"Reset", testReset},
		{"ConcurrentAdds", testConcurrentAdds},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStorer(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func rec(id string, vec ...float32) storer.Record {
	return storer.Record{
		Id:          id,
		Description: "description of " + id,
		Payload:     "payload of " + id,
		Category:    "test",
		Embedding:   vec,
	}
}

func testAddThenExists(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	ok, err := s.Exists(ctx, "avancer")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, rec("avancer", 1, 0, 0)))

	ok, err = s.Exists(ctx, "avancer")
	require.NoError(t, err)
	assert.True(t, ok)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "avancer", all[0].Id)
	assert.Equal(t, "description of avancer", all[0].Description)
	assert.Equal(t, "payload of avancer", all[0].Payload)
	assert.Equal(t, "test", all[0].Category)
	assert.Equal(t, []float32{1, 0, 0}, all[0].Embedding)
	assert.False(t, all[0].CreatedAt.IsZero())
}

func testAddExistingReplaces(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, rec("a", 1, 0, 0)))
	require.NoError(t, s.Add(ctx, rec("b", 0, 1, 0)))

	before, err := s.All(ctx)
	require.NoError(t, err)

	replacement := rec("a", 0, 0, 1)
	replacement.Description = "new description"
	replacement.CreatedAt = time.Now().Add(time.Hour)
	require.NoError(t, s.Add(ctx, replacement))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Id)
	assert.Equal(t, "new description", all[0].Description)
	assert.Equal(t, []float32{0, 0, 1}, all[0].Embedding)
	assert.True(t, before[0].CreatedAt.Equal(all[0].CreatedAt), "created_at must not change on replace")
}

func testUpdateReplaces(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, rec("a", 1, 0, 0)))

	updated := rec("a", 0, 1, 0)
	updated.Payload = "motor.left.target = 0"
	require.NoError(t, s.Update(ctx, updated))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "motor.left.target = 0", all[0].Payload)

	matches, err := s.Search(ctx, []float32{0, 1, 0}, 1, 0.99)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].Id)

	// a failed replace leaves the old record in place
	require.Error(t, s.Update(ctx, rec("a", 1, 0)))
	all, err = s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "motor.left.target = 0", all[0].Payload)
}

func testDeleteReportsPresence(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	removed, err := s.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, s.Add(ctx, rec("a", 1, 0, 0)))

	removed, err = s.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, removed)

	ok, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testSearchOrdersAndFilters(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, rec("far", 0, 0, 1)))
	require.NoError(t, s.Add(ctx, rec("near", 1, 0.1, 0)))
	require.NoError(t, s.Add(ctx, rec("mid", 1, 1, 0)))
	require.NoError(t, s.Add(ctx, rec("exact", 1, 0, 0)))

	query := []float32{1, 0, 0}

	matches, err := s.Search(ctx, query, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, []string{"exact", "near", "mid"}, ids(matches))
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
	}
	assert.Equal(t, "payload of exact", matches[0].Payload)

	matches, err = s.Search(ctx, query, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"exact", "near"}, ids(matches))

	matches, err = s.Search(ctx, query, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = s.Search(ctx, []float32{0, -1, 0}, 3, 0.5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func testSearchTiesKeepInsertionOrder(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, s.Add(ctx, rec(id, 0, 1, 0)))
	}

	matches, err := s.Search(ctx, []float32{0, 1, 0}, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ids(matches))
}

func testBestMatchIsInclusive(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, rec("a", 0.6, 0.8, 0)))

	query := []float32{1, 0, 0}

	matches, err := s.Search(ctx, query, 1, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	best, err := storer.BestMatch(ctx, s, query, matches[0].Similarity)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "a", best.Id)

	best, err = storer.BestMatch(ctx, s, query, matches[0].Similarity+0.01)
	require.NoError(t, err)
	assert.Nil(t, best)
}

func testSelfSimilarity(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	vec := []float32{0.12, -0.4, 0.33, 0.81}
	require.NoError(t, s.Add(ctx, rec("self", vec...)))
	require.NoError(t, s.Add(ctx, rec("other", 0.9, 0.1, -0.2, 0)))

	best, err := storer.BestMatch(ctx, s, vec, 0)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "self", best.Id)
	assert.GreaterOrEqual(t, best.Similarity, 0.99)
	assert.LessOrEqual(t, best.Similarity, 1.0+1e-6)
}

func testDimensionMismatch(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, rec("a", 1, 0, 0)))

	err := s.Add(ctx, rec("b", 1, 0))
	require.ErrorIs(t, err, storer.ErrDimensionMismatch)

	_, err = s.Search(ctx, []float32{1, 0}, 1, 0)
	require.ErrorIs(t, err, storer.ErrDimensionMismatch)

	ok, err := s.Exists(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testRejectsInvalidRecords(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	noDescription := rec("a", 1, 0, 0)
	noDescription.Description = "   "
	require.ErrorIs(t, s.Add(ctx, noDescription), storer.ErrInvalidRecord)

	noId := rec("", 1, 0, 0)
	require.ErrorIs(t, s.Add(ctx, noId), storer.ErrInvalidRecord)

	noEmbedding := rec("a")
	require.ErrorIs(t, s.Add(ctx, noEmbedding), storer.ErrInvalidRecord)

	noCategory := rec("c", 1, 0, 0)
	noCategory.Category = ""
	require.NoError(t, s.Add(ctx, noCategory))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, storer.DefaultCategory, all[0].Category)
}

func testStatsCountsCategories(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	a := rec("a", 1, 0, 0)
	a.Category = "default"
	b := rec("b", 0, 1, 0)
	b.Category = "default"
	c := rec("c", 0, 0, 1)
	c.Category = "learned"

	for _, r := range []storer.Record{a, b, c} {
		require.NoError(t, s.Add(ctx, r))
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, map[string]int{"default": 2, "learned": 1}, stats.Categories)
	assert.Equal(t, 3, stats.Dimension)
	assert.NotEmpty(t, stats.Location)
}

func testReset(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, rec("a", 1, 0, 0)))
	require.NoError(t, s.Add(ctx, rec("b", 0, 1, 0)))

	require.NoError(t, s.Reset(ctx))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)

	require.NoError(t, s.Add(ctx, rec("c", 1, 0, 0)))
	ok, err := s.Exists(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func testConcurrentAdds(t *testing.T, s storer.Storer) {
	ctx := context.Background()

	const n = 16

	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vec := make([]float32, n)
			vec[i] = 1
			errs <- s.Add(ctx, rec(fmt.Sprintf("cmd-%02d", i), vec...))
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func ids(matches []storer.Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Id)
	}
	return out
}
