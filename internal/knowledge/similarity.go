package knowledge

import (
	"math"
	"sort"

	"github.com/aihub/jobboard-ai/internal/errors"
)

// DefaultTopK bounds how many records reach the generative model.
const DefaultTopK = 5

// Scored pairs a candidate with its similarity to the query.
type Scored[T any] struct {
	Item  T
	Score float64
}

// CosineSimilarity returns dot(a,b)/(|a|*|b|) in [-1, 1].
// A zero-magnitude operand yields 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.NewDimensionMismatchError(len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case math.IsNaN(score):
		return 0, nil
	case score > 1:
		return 1, nil
	case score < -1:
		return -1, nil
	}
	return score, nil
}

// IsDegenerate reports whether v cannot take part in a similarity comparison.
func IsDegenerate(v []float32) bool {
	for _, x := range v {
		if x != 0 && !math.IsNaN(float64(x)) {
			return false
		}
	}
	return true
}

// Rank scores every candidate against query and returns the best k,
// highest first. Equal scores keep their input order.
func Rank[T any](query []float32, candidates []T, vectorOf func(T) []float32, k int) ([]Scored[T], error) {
	if k <= 0 || len(candidates) == 0 {
		return []Scored[T]{}, nil
	}

	scored := make([]Scored[T], 0, len(candidates))
	for _, c := range candidates {
		score, err := CosineSimilarity(query, vectorOf(c))
		if err != nil {
			return nil, err
		}
		scored = append(scored, Scored[T]{Item: c, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}
