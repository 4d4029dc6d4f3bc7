package dunning_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/dunning"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/notify"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

var t0 = time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)

func days(n int) time.Time { return t0.Add(time.Duration(n) * 24 * time.Hour) }

func TestPolicy_NotificationDue(t *testing.T) {
	t.Parallel()

	p := dunning.DefaultPolicy()
	tests := []struct {
		name string
		now  time.Time
		want notify.Kind
	}{
		{name: "before first failure", now: t0.Add(-time.Hour), want: notify.KindNone},
		{name: "same day", now: t0, want: notify.KindNone},
		{name: "just before day 3", now: days(3).Add(-time.Second), want: notify.KindNone},
		{name: "day 3 boundary", now: days(3), want: notify.KindPaymentReminderDay3},
		{name: "day 6", now: days(6), want: notify.KindPaymentReminderDay3},
		{name: "day 7", now: days(7), want: notify.KindPaymentReminderDay7},
		{name: "day 14", now: days(14), want: notify.KindSuspensionWarning},
		{name: "day 40", now: days(40), want: notify.KindSuspensionWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, p.NotificationDue(t0, tt.now))
		})
	}
}

func TestPolicy_Next(t *testing.T) {
	t.Parallel()

	p := dunning.DefaultPolicy()

	kind, stage := p.Next(t0, days(3), subscription.StageNone)
	assert.Equal(t, notify.KindPaymentReminderDay3, kind)
	assert.Equal(t, subscription.StageDay3, stage)

	kind, _ = p.Next(t0, days(5), subscription.StageDay3)
	assert.Equal(t, notify.KindNone, kind, "checkpoint already sent")

	kind, stage = p.Next(t0, days(10), subscription.StageNone)
	assert.Equal(t, notify.KindPaymentReminderDay7, kind, "catch-up sends only the latest")
	assert.Equal(t, subscription.StageDay7, stage)

	kind, stage = p.Next(t0, days(14), subscription.StageDay7)
	assert.Equal(t, notify.KindSuspensionWarning, kind)
	assert.Equal(t, subscription.StageDay14, stage)

	kind, _ = p.Next(t0, days(20), subscription.StageDay14)
	assert.Equal(t, notify.KindNone, kind)
}

func TestPolicy_SuspensionAndCancellation(t *testing.T) {
	t.Parallel()

	p := dunning.DefaultPolicy()
	assert.False(t, p.SuspensionDue(t0, days(14).Add(-time.Second)))
	assert.True(t, p.SuspensionDue(t0, days(14)))
	assert.Equal(t, days(14), p.SuspendOn(t0))

	assert.False(t, p.CancellationDue(t0, days(29)))
	assert.True(t, p.CancellationDue(t0, days(30)))

	cfg := dunning.DefaultConfig()
	cfg.CancelAfterDays = 0
	noCancel, err := dunning.NewPolicy(cfg)
	require.NoError(t, err)
	assert.False(t, noCancel.CancellationDue(t0, days(365)))
}

func TestPolicy_Configurable(t *testing.T) {
	t.Parallel()

	cfg := dunning.DefaultConfig()
	cfg.ReminderDays = []int{1, 5, 10}
	cfg.SuspendAfterDays = 17
	p, err := dunning.NewPolicy(cfg)
	require.NoError(t, err)

	assert.Equal(t, notify.KindPaymentReminderDay3, p.NotificationDue(t0, days(1)))
	assert.Equal(t, notify.KindSuspensionWarning, p.NotificationDue(t0, days(10)))
	assert.False(t, p.SuspensionDue(t0, days(16)))
	assert.True(t, p.SuspensionDue(t0, days(17)))
	assert.Len(t, p.Checkpoints(), 3)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	mutate := func(fn func(*dunning.Config)) dunning.Config {
		c := dunning.DefaultConfig()
		fn(&c)
		return c
	}
	tests := []struct {
		name string
		cfg  dunning.Config
	}{
		{name: "too few days", cfg: mutate(func(c *dunning.Config) { c.ReminderDays = []int{3, 7} })},
		{name: "not ascending", cfg: mutate(func(c *dunning.Config) { c.ReminderDays = []int{3, 3, 14} })},
		{name: "zero day", cfg: mutate(func(c *dunning.Config) { c.ReminderDays = []int{0, 7, 14} })},
		{name: "no suspension", cfg: mutate(func(c *dunning.Config) { c.SuspendAfterDays = 0 })},
		{name: "cancel before suspend", cfg: mutate(func(c *dunning.Config) { c.CancelAfterDays = 10 })},
		{name: "no sweep timeout", cfg: mutate(func(c *dunning.Config) { c.SweepTimeout = 0 })},
		{name: "lock shorter than sweep", cfg: mutate(func(c *dunning.Config) { c.LockTTL = 10 * time.Minute })},
		{name: "negative concurrency", cfg: mutate(func(c *dunning.Config) { c.Concurrency = -1 })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.cfg.Validate(), dunning.ErrInvalidPolicy)
		})
	}
	assert.NoError(t, dunning.DefaultConfig().Validate())
}

func TestElapsedDays(t *testing.T) {
	t.Parallel()

	assert.Equal(t, -1, dunning.ElapsedDays(t0, t0.Add(-time.Nanosecond)))
	assert.Equal(t, 0, dunning.ElapsedDays(t0, days(1).Add(-time.Nanosecond)))
	assert.Equal(t, 1, dunning.ElapsedDays(t0, days(1)))
}
