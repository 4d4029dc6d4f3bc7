package ratelimiter

import (
	"fmt"
	"time"
)

// Rule allows Limit hits per Window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// PerMinute returns a rule of n hits per minute.
func PerMinute(name string, n int) Rule {
	return Rule{Name: name, Limit: n, Window: time.Minute}
}

func (r Rule) validate() error {
	if r.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidRule, r.Limit)
	}
	if r.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %v", ErrInvalidRule, r.Window)
	}
	return nil
}

// Result is the state of a key after a hit.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allowed reports whether the hit was within the limit.
func (r Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter is how long until the window resets, or 0 when allowed.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed() || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}
