package dunning

import "errors"

var (
	ErrInvalidPolicy   = errors.New("invalid dunning policy")
	ErrSweepInProgress = errors.New("dunning sweep already in progress")
)
