// Package lexical embeds text by hashing character trigrams and words into a
// fixed number of buckets. It needs no network and is deterministic, which
// makes it the offline default and the backend used in tests.
package lexical

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/w-h-a/vox/embedder"
	"golang.org/x/text/unicode/norm"
)

const DefaultDimension = 256

// wordWeight favours whole-word overlap over shared fragments.
const wordWeight = 2

type lexicalEmbedder struct {
	options embedder.Options
}

func (e *lexicalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := tokenize(text)
	if len(words) == 0 {
		return nil, embedder.ErrEmptyInput
	}

	vec := make([]float32, e.options.Dimension)

	for _, word := range words {
		vec[bucket("w:"+word, len(vec))] += wordWeight

		padded := []rune(" " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			vec[bucket("t:"+string(padded[i:i+3]), len(vec))]++
		}
	}

	return embedder.Unit(vec), nil
}

// tokenize folds case and strips diacritics so "arrête" and "arrete" agree.
func tokenize(text string) []string {
	decomposed := norm.NFD.String(strings.ToLower(text))

	var b strings.Builder
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Fields(b.String())
}

func bucket(feature string, size int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	return int(h.Sum32() % uint32(size))
}

func NewEmbedder(opts ...embedder.Option) embedder.Embedder {
	options := embedder.NewOptions(opts...)

	if options.Dimension <= 0 {
		options.Dimension = DefaultDimension
	}

	return &lexicalEmbedder{
		options: options,
	}
}
