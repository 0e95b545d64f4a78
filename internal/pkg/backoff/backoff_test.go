package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponential_CappedAtMax(t *testing.T) {
	for attempt := 0; attempt < 20; attempt++ {
		wait := Exponential(time.Second, 30*time.Second, attempt)
		require.Greater(t, wait, time.Duration(0))
		require.LessOrEqual(t, wait, 30*time.Second)
	}
}

func TestExponential_ZeroBase(t *testing.T) {
	require.Equal(t, time.Duration(0), Exponential(0, time.Minute, 3))
}
