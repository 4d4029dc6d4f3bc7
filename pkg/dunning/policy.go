package dunning

import (
	"time"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/notify"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

const day = 24 * time.Hour

// stages are the checkpoint markers in order, paired with their reminder.
var stages = []struct {
	stage subscription.DunningStage
	kind  notify.Kind
}{
	{subscription.StageDay3, notify.KindPaymentReminderDay3},
	{subscription.StageDay7, notify.KindPaymentReminderDay7},
	{subscription.StageDay14, notify.KindSuspensionWarning},
}

// Checkpoint is a reminder sent once a number of days has elapsed.
type Checkpoint struct {
	Day   int
	Stage subscription.DunningStage
	Kind  notify.Kind
}

// Policy is the dunning timeline. It satisfies subscription.GracePolicy.
type Policy struct {
	checkpoints  []Checkpoint
	suspendAfter int
	cancelAfter  int
}

// NewPolicy builds a Policy from cfg.
func NewPolicy(cfg Config) (Policy, error) {
	if err := cfg.Validate(); err != nil {
		return Policy{}, err
	}
	p := Policy{suspendAfter: cfg.SuspendAfterDays, cancelAfter: cfg.CancelAfterDays}
	for i, d := range cfg.ReminderDays {
		p.checkpoints = append(p.checkpoints, Checkpoint{Day: d, Stage: stages[i].stage, Kind: stages[i].kind})
	}
	return p, nil
}

// DefaultPolicy returns the policy for DefaultConfig.
func DefaultPolicy() Policy {
	p, err := NewPolicy(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return p
}

// Checkpoints returns the configured checkpoints in order.
func (p Policy) Checkpoints() []Checkpoint {
	return append([]Checkpoint(nil), p.checkpoints...)
}

// ElapsedDays returns the whole days between firstSeen and now, or -1 when
// now is before firstSeen.
func ElapsedDays(firstSeen, now time.Time) int {
	d := now.Sub(firstSeen)
	if d < 0 {
		return -1
	}
	return int(d / day)
}

// NotificationDue returns the latest checkpoint reached at now, or
// notify.KindNone before the first one.
func (p Policy) NotificationDue(firstSeen, now time.Time) notify.Kind {
	cp, ok := p.reached(firstSeen, now, subscription.StageNone)
	if !ok {
		return notify.KindNone
	}
	return cp.Kind
}

// Next returns the highest checkpoint reached at now that comes after
// lastSent. Missed intermediate checkpoints are skipped so only the latest
// reminder goes out. It returns notify.KindNone when nothing is due.
func (p Policy) Next(firstSeen, now time.Time, lastSent subscription.DunningStage) (notify.Kind, subscription.DunningStage) {
	cp, ok := p.reached(firstSeen, now, lastSent)
	if !ok {
		return notify.KindNone, lastSent
	}
	return cp.Kind, cp.Stage
}

func (p Policy) reached(firstSeen, now time.Time, after subscription.DunningStage) (Checkpoint, bool) {
	elapsed := ElapsedDays(firstSeen, now)
	for i := len(p.checkpoints) - 1; i >= 0; i-- {
		cp := p.checkpoints[i]
		if elapsed >= cp.Day {
			if cp.Stage.After(after) {
				return cp, true
			}
			return Checkpoint{}, false
		}
	}
	return Checkpoint{}, false
}

// SuspensionDue reports whether the grace period has run out.
func (p Policy) SuspensionDue(firstSeen, now time.Time) bool {
	return ElapsedDays(firstSeen, now) >= p.suspendAfter
}

// SuspendOn returns the time access will be suspended.
func (p Policy) SuspendOn(firstSeen time.Time) time.Time {
	return firstSeen.Add(time.Duration(p.suspendAfter) * day)
}

// CancellationDue reports whether the subscription should be canceled.
// Always false when automatic cancellation is disabled.
func (p Policy) CancellationDue(firstSeen, now time.Time) bool {
	return p.cancelAfter > 0 && ElapsedDays(firstSeen, now) >= p.cancelAfter
}
