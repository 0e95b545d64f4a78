package knn

import (
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

func testEmbeddings() map[string][]float32 {
	return map[string][]float32{
		"A": {0, 0},
		"B": {1, 0},
		"C": {0, 5},
		"D": {3, 4},
	}
}

func TestNearest_PicksClosest(t *testing.T) {
	id, dist, err := Nearest("A", []string{"B", "C"}, testEmbeddings())
	require.NoError(t, err)
	require.Equal(t, "B", id)
	require.Equal(t, 1.0, dist)
}

func TestNearest_SingleCandidate(t *testing.T) {
	id, dist, err := Nearest("A", []string{"D"}, testEmbeddings())
	require.NoError(t, err)
	require.Equal(t, "D", id)
	require.Equal(t, 5.0, dist)
}

func TestNearest_FirstSeenWinsOnTie(t *testing.T) {
	embeddings := map[string][]float32{
		"q":  {0, 0},
		"c1": {1, 0},
		"c2": {0, 1},
	}
	id, dist, err := Nearest("q", []string{"c1", "c2"}, embeddings)
	require.NoError(t, err)
	require.Equal(t, "c1", id)
	require.Equal(t, 1.0, dist)

	// Reversed candidate order flips the winner.
	id, _, err = Nearest("q", []string{"c2", "c1"}, embeddings)
	require.NoError(t, err)
	require.Equal(t, "c2", id)
}

func TestNearest_SelfMatchWhenNotExcluded(t *testing.T) {
	id, dist, err := Nearest("A", []string{"B", "A", "C"}, testEmbeddings())
	require.NoError(t, err)
	require.Equal(t, "A", id)
	require.Equal(t, 0.0, dist)
}

func TestNearest_ResultNoFartherThanAnyCandidate(t *testing.T) {
	embeddings := testEmbeddings()
	candidates := []string{"B", "C", "D"}
	_, best, err := Nearest("A", candidates, embeddings)
	require.NoError(t, err)
	for _, id := range candidates {
		dist, derr := Distance(embeddings["A"], embeddings[id])
		require.NoError(t, derr)
		require.LessOrEqual(t, best, dist)
	}
}

func TestNearest_EmptyCandidates(t *testing.T) {
	_, _, err := Nearest("A", nil, testEmbeddings())
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestNearest_QueryMissing(t *testing.T) {
	_, _, err := Nearest("missing", []string{"B"}, testEmbeddings())
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestNearest_CandidateMissing(t *testing.T) {
	_, _, err := Nearest("A", []string{"B", "missing"}, testEmbeddings())
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDistance_SelfIsZero(t *testing.T) {
	vec := []float32{0.25, -3.5, 17, 0.0001}
	dist, err := Distance(vec, vec)
	require.NoError(t, err)
	require.Equal(t, 0.0, dist)
}

func TestDistance_DimensionMismatch(t *testing.T) {
	_, err := Distance([]float32{1, 2}, []float32{1, 2, 3})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestTopK_OrderedAndCapped(t *testing.T) {
	results, err := TopK("A", []string{"C", "D", "B"}, testEmbeddings(), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "B", results[0].ID)
	require.Equal(t, 1.0, results[0].Distance)
	require.Equal(t, "C", results[1].ID)
	require.Equal(t, 5.0, results[1].Distance)
}

func TestTopK_StableOnEqualDistance(t *testing.T) {
	embeddings := map[string][]float32{
		"q":  {0, 0},
		"c1": {0, 2},
		"c2": {2, 0},
	}
	results, err := TopK("q", []string{"c1", "c2"}, embeddings, 2)
	require.NoError(t, err)
	require.Equal(t, "c1", results[0].ID)
	require.Equal(t, "c2", results[1].ID)
}

func TestTopK_InvalidK(t *testing.T) {
	_, err := TopK("A", []string{"B"}, testEmbeddings(), 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
