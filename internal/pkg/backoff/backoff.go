package backoff

import (
	"math/rand"
	"time"
)

// Exponential returns the wait before the given retry attempt (0-based):
// base doubled per attempt, capped at max, with full jitter so that
// concurrent retries do not align.
func Exponential(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	backoff := base
	for i := 0; i < attempt && backoff < max; i++ {
		backoff *= 2
	}
	if backoff > max {
		backoff = max
	}
	return time.Duration(rand.Int63n(int64(backoff)) + 1)
}
