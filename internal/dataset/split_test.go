package dataset

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shopmind/recembed/internal/model"
	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

func makePairs(n int) []model.PairSample {
	pairs := make([]model.PairSample, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, model.PairSample{
			UserID:    fmt.Sprintf("u%d", i%10),
			ProductID: fmt.Sprintf("p%d", i),
			Label:     float64(i % 2),
		})
	}
	return pairs
}

func TestSplit_FractionsAndCoverage(t *testing.T) {
	pairs := makePairs(100)
	result, err := Split(pairs, 0.8, 0.1, 13)
	require.NoError(t, err)
	require.Len(t, result.Train, 80)
	require.Len(t, result.Val, 10)
	require.Len(t, result.Test, 10)

	// every sample lands in exactly one channel
	seen := make(map[string]int)
	for _, channel := range [][]model.PairSample{result.Train, result.Val, result.Test} {
		for _, pair := range channel {
			seen[pair.ProductID]++
		}
	}
	require.Len(t, seen, 100)
	for id, count := range seen {
		require.Equal(t, 1, count, "sample %s duplicated across channels", id)
	}
}

func TestSplit_DeterministicForSeed(t *testing.T) {
	pairs := makePairs(50)
	first, err := Split(pairs, 0.7, 0.15, 99)
	require.NoError(t, err)
	second, err := Split(pairs, 0.7, 0.15, 99)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSplit_InputUntouched(t *testing.T) {
	pairs := makePairs(20)
	original := make([]model.PairSample, len(pairs))
	copy(original, pairs)
	_, err := Split(pairs, 0.6, 0.2, 5)
	require.NoError(t, err)
	require.Equal(t, original, pairs)
}

func TestSplit_BadFractions(t *testing.T) {
	pairs := makePairs(10)
	for _, tc := range []struct{ train, val float64 }{
		{0, 0.1},
		{0.9, 0},
		{0.9, 0.2},
		{-0.5, 0.2},
	} {
		_, err := Split(pairs, tc.train, tc.val, 1)
		require.ErrorIs(t, err, appErr.ErrInvalid, "train=%v val=%v", tc.train, tc.val)
	}
}

func TestSplit_TooFewSamples(t *testing.T) {
	_, err := Split(makePairs(2), 0.8, 0.1, 1)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestSplit_Empty(t *testing.T) {
	_, err := Split(nil, 0.8, 0.1, 1)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
