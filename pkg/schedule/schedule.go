package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule determines when a periodic job runs next.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type interval struct {
	every time.Duration
}

func (s interval) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s interval) String() string {
	return fmt.Sprintf("every %v", s.every)
}

type daily struct {
	hour, minute int
	loc          *time.Location
}

func (s daily) Next(from time.Time) time.Time {
	f := from.In(s.loc)
	next := time.Date(f.Year(), f.Month(), f.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(f) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s daily) String() string {
	return fmt.Sprintf("daily at %02d:%02d %s", s.hour, s.minute, s.loc)
}

// Every runs at a fixed interval.
func Every(d time.Duration) Schedule {
	return interval{every: d}
}

// DailyAt runs once per day at hour:minute UTC.
func DailyAt(hour, minute int) Schedule {
	return daily{hour: hour, minute: minute, loc: time.UTC}
}

// ParseDailyAt parses "HH:MM" into a UTC daily schedule.
func ParseDailyAt(s string) (Schedule, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return DailyAt(h, m), nil
}
