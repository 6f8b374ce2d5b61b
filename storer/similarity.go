package storer

import (
	"math"
	"sort"
)

func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SimilarityFromDistance converts a cosine distance in [0,2] to a similarity
// where 1 means identical direction.
func SimilarityFromDistance(d float64) float64 {
	return 1 - d
}

// Rank scores records against vector in the given (insertion) order and keeps
// the k best with similarity >= minSimilarity. The sort is stable so equal
// scores keep insertion order.
func Rank(records []Record, vector []float32, k int, minSimilarity float64) []Match {
	if k < 1 {
		return nil
	}

	matches := make([]Match, 0, len(records))

	for _, rec := range records {
		sim := CosineSimilarity(vector, rec.Embedding)
		if math.IsNaN(sim) || sim < minSimilarity {
			continue
		}
		matches = append(matches, rec.Match(sim))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	return matches
}

// CountCategories tallies records per category.
func CountCategories(records []Record) map[string]int {
	counts := map[string]int{}
	for _, rec := range records {
		counts[rec.Category]++
	}
	return counts
}
