package ratelimiter

import "context"

// Limiter applies rules against a Store.
type Limiter struct {
	store Store
}

// New creates a Limiter.
func New(store Store) *Limiter {
	if store == nil {
		panic("ratelimiter: store is required")
	}
	return &Limiter{store: store}
}

// Allow records a hit for key under rule.
func (l *Limiter) Allow(ctx context.Context, rule Rule, key string) (Result, error) {
	if err := rule.validate(); err != nil {
		return Result{}, err
	}
	count, resetAt, err := l.store.Hit(ctx, rule.Name+":"+key, rule.Window)
	if err != nil {
		return Result{}, err
	}
	return Result{Limit: rule.Limit, Remaining: rule.Limit - count, ResetAt: resetAt}, nil
}
