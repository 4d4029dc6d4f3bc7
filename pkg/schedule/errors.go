package schedule

import "errors"

var (
	ErrInvalidTimeOfDay = errors.New("schedule: invalid time of day, want HH:MM")
	ErrNilJob           = errors.New("schedule: job is nil")
)
