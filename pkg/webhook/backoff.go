package webhook

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff returns the delay before retry number attempt (starting at 1).
type Backoff func(attempt int) time.Duration

// Exponential doubles initial per attempt up to max, spread by jitter
// (0.1 means ±10%).
func Exponential(initial, max time.Duration, jitter float64) Backoff {
	return func(attempt int) time.Duration {
		if attempt <= 0 {
			return 0
		}
		d := float64(initial) * math.Pow(2, float64(attempt-1))
		if jitter > 0 {
			d *= 1 + (rand.Float64()*2-1)*jitter
		}
		return time.Duration(min(d, float64(max)))
	}
}

// NoDelay retries immediately.
func NoDelay(int) time.Duration { return 0 }
