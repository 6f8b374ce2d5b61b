package lexical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/vox/embedder"
	"github.com/w-h-a/vox/storer"
)

func embed(t *testing.T, e embedder.Embedder, text string) []float32 {
	t.Helper()
	vec, err := e.Embed(context.Background(), text)
	require.NoError(t, err)
	return vec
}

func TestLexicalEmbedderIsDeterministic(t *testing.T) {
	e := NewEmbedder()

	a := embed(t, e, "faire avancer le robot")
	b := embed(t, NewEmbedder(), "faire avancer le robot")

	assert.Len(t, a, DefaultDimension)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, storer.CosineSimilarity(a, b), 1e-6)
}

func TestLexicalEmbedderRanksRelatedTextHigher(t *testing.T) {
	e := NewEmbedder()

	query := embed(t, e, "avance")
	forward := embed(t, e, "faire avancer le robot")
	stop := embed(t, e, "arrêter le robot")

	assert.Greater(t, storer.CosineSimilarity(query, forward), storer.CosineSimilarity(query, stop))
}

func TestLexicalEmbedderFoldsCaseAndAccents(t *testing.T) {
	e := NewEmbedder()

	assert.Equal(t, embed(t, e, "Arrête"), embed(t, e, "arrete"))
}

func TestLexicalEmbedderRejectsEmptyInput(t *testing.T) {
	e := NewEmbedder()

	for _, text := range []string{"", "   ", "?!"} {
		_, err := e.Embed(context.Background(), text)
		assert.ErrorIs(t, err, embedder.ErrEmptyInput, text)
	}
}

func TestLexicalEmbedderDimension(t *testing.T) {
	e := NewEmbedder(embedder.WithDimension(32))

	assert.Len(t, embed(t, e, "tourne à gauche"), 32)
}
