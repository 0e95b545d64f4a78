package dataset

import (
	"fmt"
	"math/rand"

	"github.com/shopmind/recembed/internal/model"
	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

// SplitResult holds the three dataset channels.
type SplitResult struct {
	Train []model.PairSample
	Val   []model.PairSample
	Test  []model.PairSample
}

// Split shuffles the samples with the given seed and cuts them into
// train/validation/test channels. The test fraction is whatever remains
// after train and validation.
func Split(pairs []model.PairSample, trainFrac, valFrac float64, seed int64) (*SplitResult, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: no samples to split", appErr.ErrInvalid)
	}
	if trainFrac <= 0 || valFrac <= 0 || trainFrac+valFrac >= 1 {
		return nil, fmt.Errorf("%w: bad split fractions train=%v val=%v", appErr.ErrInvalid, trainFrac, valFrac)
	}
	shuffled := make([]model.PairSample, len(pairs))
	copy(shuffled, pairs)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	trainEnd := int(float64(len(shuffled)) * trainFrac)
	valEnd := trainEnd + int(float64(len(shuffled))*valFrac)
	if trainEnd == 0 || valEnd == trainEnd || valEnd >= len(shuffled) {
		return nil, fmt.Errorf("%w: split leaves an empty channel for %d samples", appErr.ErrInvalid, len(shuffled))
	}
	return &SplitResult{
		Train: shuffled[:trainEnd],
		Val:   shuffled[trainEnd:valEnd],
		Test:  shuffled[valEnd:],
	}, nil
}
