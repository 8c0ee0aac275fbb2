package backoff

import (
	"math/rand"
	"time"
)

// Delay returns the wait before the next attempt. attempt is zero-based: the
// wait after the first failed attempt is Delay(policy, base, max, 0, rng).
func Delay(policy string, base, max time.Duration, attempt int, rng *rand.Rand) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = base
	}
	switch policy {
	case "fixed":
		return minDur(base, max)
	case "linear":
		n := attempt + 1
		return minDur(base*time.Duration(n), max)
	case "exp_full_jitter":
		if rng == nil {
			rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		d := expDelay(base, max, attempt)
		if d <= 0 {
			return 0
		}
		return time.Duration(rng.Int63n(int64(d) + 1))
	default: // exponential, no jitter
		return expDelay(base, max, attempt)
	}
}

func expDelay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return minDur(d, max)
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
