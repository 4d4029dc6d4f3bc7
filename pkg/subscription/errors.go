package subscription

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrDuplicateEvent       = errors.New("event already processed")
	ErrVersionConflict      = errors.New("subscription was modified concurrently")
	ErrInvalidEvent         = errors.New("invalid subscription event")
	ErrInvalidTransition    = errors.New("transition not allowed from current state")
	ErrPaymentOutstanding   = errors.New("payment is still outstanding")
	ErrInvariantViolated    = errors.New("subscription invariant violated")
	ErrPersistence          = errors.New("failed to persist subscription change")
)
