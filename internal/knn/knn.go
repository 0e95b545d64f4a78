// Package knn implements exhaustive nearest-neighbor lookup over an
// in-memory embedding dictionary. Linear scan only; fine for the candidate
// set sizes the recommendation paths deal with.
package knn

import (
	"fmt"
	"math"
	"sort"

	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

// Result is one scored candidate.
type Result struct {
	ID       string
	Distance float64
}

// Distance returns the Euclidean distance between two vectors.
func Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: dimension mismatch: %d vs %d", appErr.ErrInvalid, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Nearest returns the candidate closest to query in Euclidean distance,
// scanning candidates in the order given. A later candidate at the same
// distance does not replace an earlier one. The query itself is a valid
// candidate; callers that do not want a self-match must exclude it.
func Nearest(queryID string, candidateIDs []string, embeddings map[string][]float32) (string, float64, error) {
	if len(candidateIDs) == 0 {
		return "", 0, fmt.Errorf("%w: empty candidate set", appErr.ErrInvalid)
	}
	queryVec, ok := embeddings[queryID]
	if !ok {
		return "", 0, fmt.Errorf("%w: no embedding for query %q", appErr.ErrNotFound, queryID)
	}
	bestID := ""
	bestDist := math.Inf(1)
	for _, id := range candidateIDs {
		vec, ok := embeddings[id]
		if !ok {
			return "", 0, fmt.Errorf("%w: no embedding for candidate %q", appErr.ErrNotFound, id)
		}
		dist, err := Distance(queryVec, vec)
		if err != nil {
			return "", 0, err
		}
		if dist < bestDist {
			bestID = id
			bestDist = dist
		}
	}
	return bestID, bestDist, nil
}

// TopK returns up to k candidates ordered by ascending distance to query.
// The sort is stable, so equal distances keep the candidate order.
func TopK(queryID string, candidateIDs []string, embeddings map[string][]float32, k int) ([]Result, error) {
	if len(candidateIDs) == 0 {
		return nil, fmt.Errorf("%w: empty candidate set", appErr.ErrInvalid)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", appErr.ErrInvalid)
	}
	queryVec, ok := embeddings[queryID]
	if !ok {
		return nil, fmt.Errorf("%w: no embedding for query %q", appErr.ErrNotFound, queryID)
	}
	results := make([]Result, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		vec, ok := embeddings[id]
		if !ok {
			return nil, fmt.Errorf("%w: no embedding for candidate %q", appErr.ErrNotFound, id)
		}
		dist, err := Distance(queryVec, vec)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{ID: id, Distance: dist})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}
