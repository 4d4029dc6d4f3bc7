package ratelimiter

import "errors"

var (
	ErrInvalidRule      = errors.New("ratelimiter: invalid rule")
	ErrStoreUnavailable = errors.New("ratelimiter: store unavailable")
	ErrLimitExceeded    = errors.New("ratelimiter: limit exceeded")
)
