package dunning

import (
	"fmt"
	"time"
)

// Config holds dunning settings.
type Config struct {
	ReminderDays     []int         `env:"DUNNING_REMINDER_DAYS" envSeparator:"," envDefault:"3,7,14"`
	SuspendAfterDays int           `env:"DUNNING_SUSPEND_AFTER_DAYS" envDefault:"14"`
	CancelAfterDays  int           `env:"DUNNING_CANCEL_AFTER_DAYS" envDefault:"30"`
	Concurrency      int           `env:"DUNNING_CONCURRENCY" envDefault:"8"`
	SweepTimeout     time.Duration `env:"DUNNING_SWEEP_TIMEOUT" envDefault:"30m"`
	// LockTTL must cover SweepTimeout so a running sweep keeps its lock.
	LockTTL time.Duration `env:"DUNNING_LOCK_TTL" envDefault:"35m"`
	// DailyAt is the UTC time of day ("HH:MM") of the in-process sweep.
	// Empty disables it; an external cron then calls the HTTP trigger.
	DailyAt string `env:"DUNNING_DAILY_AT"`
}

// DefaultConfig returns the defaults used when no environment is set.
func DefaultConfig() Config {
	return Config{
		ReminderDays:     []int{3, 7, 14},
		SuspendAfterDays: 14,
		CancelAfterDays:  30,
		Concurrency:      8,
		SweepTimeout:     30 * time.Minute,
		LockTTL:          35 * time.Minute,
	}
}

// Validate checks the policy values.
func (c Config) Validate() error {
	if len(c.ReminderDays) != len(stages) {
		return fmt.Errorf("%w: need %d reminder days, got %d", ErrInvalidPolicy, len(stages), len(c.ReminderDays))
	}
	prev := 0
	for _, d := range c.ReminderDays {
		if d <= prev {
			return fmt.Errorf("%w: reminder days must be positive and ascending", ErrInvalidPolicy)
		}
		prev = d
	}
	if c.SuspendAfterDays <= 0 {
		return fmt.Errorf("%w: suspend after must be positive", ErrInvalidPolicy)
	}
	if c.CancelAfterDays != 0 && c.CancelAfterDays <= c.SuspendAfterDays {
		return fmt.Errorf("%w: cancel after must exceed suspend after", ErrInvalidPolicy)
	}
	if c.SweepTimeout <= 0 {
		return fmt.Errorf("%w: sweep timeout must be positive", ErrInvalidPolicy)
	}
	if c.LockTTL < c.SweepTimeout {
		return fmt.Errorf("%w: lock ttl %s is shorter than sweep timeout %s", ErrInvalidPolicy, c.LockTTL, c.SweepTimeout)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalidPolicy)
	}
	return nil
}
