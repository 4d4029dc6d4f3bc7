package ratelimiter

import (
	"context"
	"time"
)

// Store counts hits per key within a window.
type Store interface {
	// Hit records one hit on key and returns the hit count of the current
	// window and when that window ends.
	Hit(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}
