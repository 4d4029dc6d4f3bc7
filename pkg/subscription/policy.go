package subscription

import "time"

// DefaultSuspendAfter is how long a payment may stay outstanding before
// access is suspended.
const DefaultSuspendAfter = 14 * 24 * time.Hour

// GracePolicy decides when an outstanding payment suspends access.
type GracePolicy interface {
	SuspensionDue(failureFirstSeen, now time.Time) bool
	SuspendOn(failureFirstSeen time.Time) time.Time
}

// FixedGrace suspends once the given duration has elapsed since the first
// failure, boundary inclusive.
type FixedGrace time.Duration

func (g FixedGrace) SuspensionDue(failureFirstSeen, now time.Time) bool {
	return now.Sub(failureFirstSeen) >= time.Duration(g)
}

func (g FixedGrace) SuspendOn(failureFirstSeen time.Time) time.Time {
	return failureFirstSeen.Add(time.Duration(g))
}
