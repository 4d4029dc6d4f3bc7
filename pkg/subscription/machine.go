package subscription

import (
	"context"
	"time"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/notify"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/statemachine"
)

// change is the working set a transition mutates. Actions only touch sub
// and append effects; nothing leaves the process until the store commits.
type change struct {
	sub   *Subscription
	event *Event
	at    time.Time
	grace GracePolicy

	reason   string
	stage    DunningStage
	kind     notify.Kind
	prevPlan plan.ID

	notices       []notice
	failureStatus FailureStatus
}

// checkAt is the instant invariants are judged at. A late event on an
// already suspended record cannot move the check before the suspension.
func (c *change) checkAt() time.Time {
	if c.sub.SuspendedAt != nil && c.sub.SuspendedAt.After(c.at) {
		return *c.sub.SuspendedAt
	}
	return c.at
}

type notice struct {
	kind notify.Kind
	data notify.Data
}

func (c *change) notify(kind notify.Kind, data notify.Data) {
	c.notices = append(c.notices, notice{kind: kind, data: data})
}

type (
	machine    = statemachine.Table[State, Trigger, *change]
	action     = statemachine.Action[State, Trigger, *change]
	guard      = statemachine.Guard[State, Trigger, *change]
	tableOpt   = statemachine.Option[State, Trigger, *change]
	transition = statemachine.TransitionOption[State, Trigger, *change]
)

func on(from []State, to State, t Trigger, opts ...transition) tableOpt {
	return statemachine.WithTransitionFrom(from, to, t, opts...)
}

func do(a action) transition    { return statemachine.WithAction(a) }
func when(g guard) transition   { return statemachine.WithGuard(g) }
func states(s ...State) []State { return s }

// newMachine builds the payment-state transition table.
func newMachine() *machine {
	return statemachine.MustNew(
		on(states(StateActive, StatePastDue), StatePastDue, TriggerChargeFailed, do(markFailure)),
		on(states(StateSuspended), StateSuspended, TriggerChargeFailed, do(markFailure)),

		on(states(StatePastDue), StateActive, TriggerChargeSucceeded, do(recoverPayment)),
		on(states(StateSuspended), StateActive, TriggerChargeSucceeded, when(notAdminHold), do(recoverPayment)),
		on(states(StateSuspended), StateSuspended, TriggerChargeSucceeded, when(adminHold), do(settleUnderHold)),
		on(states(StateActive), StateActive, TriggerChargeSucceeded, do(markPaid)),

		on(states(StateActive, StatePastDue, StateSuspended), StateCanceled, TriggerCancel, do(cancel)),

		on(states(StatePastDue), StateSuspended, TriggerGraceElapsed, when(graceExhausted), do(suspendForDunning)),

		on(states(StatePastDue), StatePastDue, TriggerDunningNotice, when(stageAdvances), do(advanceStage)),
		on(states(StateSuspended), StateSuspended, TriggerDunningNotice, when(stageAdvances), when(billingPastDue), do(advanceStage)),

		on(states(StateActive, StatePastDue), StateSuspended, TriggerAdminSuspend, do(adminSuspend)),
		on(states(StateSuspended), StateActive, TriggerAdminRestore, when(restorable), when(billingSettled), do(adminRestore)),
		on(states(StateSuspended), StatePastDue, TriggerAdminRestore, when(restorable), when(billingPastDue), do(adminRestore)),

		on(states(StateActive, StatePastDue, StateSuspended, StateCanceled), StateActive, TriggerCheckout, do(activate)),
	)
}

// markFailure anchors the dunning timeline at the earliest failure seen, so a
// retry delivered before the original failure does not shift it.
func markFailure(_ context.Context, _, _ State, _ Trigger, c *change) error {
	if c.sub.FailureFirstSeenAt == nil || c.at.Before(*c.sub.FailureFirstSeenAt) {
		c.sub.FailureFirstSeenAt = timePtr(c.at)
	}
	c.sub.BillingStatus = BillingPastDue
	return nil
}

func recoverPayment(_ context.Context, from, _ State, _ Trigger, c *change) error {
	clearDunning(c.sub)
	c.sub.BillingStatus = BillingActive
	c.sub.LastPaidAt = timePtr(c.at)
	c.failureStatus = FailureResolved
	c.notify(notify.KindServiceRestored, notify.Data{})
	return nil
}

// settleUnderHold records a payment while a manual suspension stays in place.
func settleUnderHold(_ context.Context, _, _ State, _ Trigger, c *change) error {
	c.sub.FailureFirstSeenAt = nil
	c.sub.DunningStage = StageNone
	c.sub.BillingStatus = BillingActive
	c.sub.LastPaidAt = timePtr(c.at)
	c.failureStatus = FailureResolved
	return nil
}

func markPaid(_ context.Context, _, _ State, _ Trigger, c *change) error {
	c.sub.BillingStatus = BillingActive
	c.sub.LastPaidAt = timePtr(c.at)
	return nil
}

func cancel(_ context.Context, _, _ State, _ Trigger, c *change) error {
	periodEnd := cloneTime(c.sub.CurrentPeriodEnd)
	clearDunning(c.sub)
	c.sub.BillingStatus = BillingCanceled
	c.sub.PlanID = plan.Free
	c.sub.CanceledAt = timePtr(c.at)
	c.sub.CancelAt = nil
	c.failureStatus = FailureCanceled

	data := notify.Data{Immediate: true}
	if periodEnd != nil && periodEnd.After(c.at) {
		data.Immediate = false
		data.PeriodEnd = periodEnd
	}
	c.notify(notify.KindCancellationConfirmed, data)
	return nil
}

func suspendForDunning(_ context.Context, _, _ State, _ Trigger, c *change) error {
	c.sub.AppStatus = AppSuspended
	c.sub.SuspendedAt = timePtr(c.at)
	c.sub.SuspendReason = SuspendReasonDunning
	c.failureStatus = FailureSuspended
	c.notify(notify.KindSuspensionConfirmed, notify.Data{FailureFirstSeen: cloneTime(c.sub.FailureFirstSeenAt)})
	return nil
}

func advanceStage(_ context.Context, _, _ State, _ Trigger, c *change) error {
	c.sub.DunningStage = c.stage
	data := notify.Data{FailureFirstSeen: cloneTime(c.sub.FailureFirstSeenAt)}
	if c.sub.FailureFirstSeenAt != nil && c.grace != nil {
		data.SuspendOn = timePtr(c.grace.SuspendOn(*c.sub.FailureFirstSeenAt))
	}
	if c.kind != notify.KindNone {
		c.notify(c.kind, data)
	}
	return nil
}

func adminSuspend(_ context.Context, _, _ State, _ Trigger, c *change) error {
	c.sub.AppStatus = AppSuspended
	c.sub.SuspendedAt = timePtr(c.at)
	c.sub.SuspendReason = AdminReasonPrefix + c.reason
	c.notify(notify.KindSuspensionConfirmed, notify.Data{})
	return nil
}

func adminRestore(_ context.Context, _, _ State, _ Trigger, c *change) error {
	c.sub.AppStatus = AppActive
	c.sub.SuspendedAt = nil
	c.sub.SuspendReason = ""
	c.notify(notify.KindServiceRestored, notify.Data{})
	return nil
}

func activate(_ context.Context, _, _ State, _ Trigger, c *change) error {
	clearDunning(c.sub)
	c.sub.CanceledAt = nil
	c.sub.CancelAt = nil
	c.sub.BillingStatus = BillingActive
	if ev := c.event; ev != nil {
		if ev.Status == BillingTrialing {
			c.sub.BillingStatus = BillingTrialing
		}
		applyProviderFields(c.sub, ev)
	}
	if c.sub.BillingStatus == BillingActive {
		c.sub.LastPaidAt = timePtr(c.at)
	}
	c.failureStatus = FailureResolved
	return nil
}

func clearDunning(s *Subscription) {
	s.FailureFirstSeenAt = nil
	s.DunningStage = StageNone
	s.AppStatus = AppActive
	s.SuspendedAt = nil
	s.SuspendReason = ""
}

func graceExhausted(_ context.Context, _ State, _ Trigger, c *change) bool {
	return c.sub.FailureFirstSeenAt != nil && c.grace.SuspensionDue(*c.sub.FailureFirstSeenAt, c.at)
}

func stageAdvances(_ context.Context, _ State, _ Trigger, c *change) bool {
	return c.stage.After(c.sub.DunningStage)
}

func adminHold(_ context.Context, _ State, _ Trigger, c *change) bool {
	return c.sub.IsAdminSuspension()
}

func notAdminHold(ctx context.Context, s State, t Trigger, c *change) bool {
	return !adminHold(ctx, s, t, c)
}

func billingPastDue(_ context.Context, _ State, _ Trigger, c *change) bool {
	return c.sub.BillingStatus == BillingPastDue
}

func billingSettled(_ context.Context, _ State, _ Trigger, c *change) bool {
	return c.sub.BillingStatus != BillingPastDue
}

// restorable allows lifting manual suspensions only; dunning suspensions
// end with a successful payment.
func restorable(_ context.Context, _ State, _ Trigger, c *change) bool {
	return c.sub.IsAdminSuspension()
}

// applyProviderFields copies processor metadata onto the record.
func applyProviderFields(s *Subscription, ev *Event) {
	if ev.CustomerID != "" {
		s.CustomerID = ev.CustomerID
	}
	if ev.SubscriptionID != "" {
		s.ProviderSubscriptionID = ev.SubscriptionID
	}
	if ev.PriceID != "" {
		s.PriceID = ev.PriceID
		if ev.PlanID != "" {
			s.PlanID = ev.PlanID
		}
		if ev.Interval != "" {
			s.Interval = ev.Interval
		}
	}
	if ev.PeriodStart != nil {
		s.CurrentPeriodStart = cloneTime(ev.PeriodStart)
	}
	if ev.PeriodEnd != nil {
		s.CurrentPeriodEnd = cloneTime(ev.PeriodEnd)
	}
	if ev.Kind == EventSubscriptionUpdated || ev.Kind == EventCheckoutCompleted {
		s.CancelAt = cloneTime(ev.CancelAt)
		s.TrialEnd = cloneTime(ev.TrialEnd)
	}
}
