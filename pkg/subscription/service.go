package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/audit"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/notify"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/statemachine"
)

// Service applies payment-state transitions to subscription records.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	ListPastDue(ctx context.Context) ([]*Subscription, error)

	// HandleEvent applies a processor event exactly once per (provider, id).
	// A returned error means the event was not recorded and may be retried.
	HandleEvent(ctx context.Context, ev Event) (Outcome, error)

	// EnforceGrace suspends a past-due subscription whose grace period has
	// elapsed at now. It is a no-op otherwise.
	EnforceGrace(ctx context.Context, userID uuid.UUID, now time.Time) (Outcome, error)
	// AdvanceDunning persists stage as the last checkpoint sent and then
	// sends kind. Stages at or before the stored one are ignored, so a
	// checkpoint is never sent twice.
	AdvanceDunning(ctx context.Context, userID uuid.UUID, stage DunningStage, kind notify.Kind, now time.Time) (Outcome, error)
	// Cancel marks the subscription canceled after the processor confirmed
	// it. Already canceled records are left alone.
	Cancel(ctx context.Context, userID uuid.UUID, actorID, reason string) (Outcome, error)
	// ApplyPlanChange records a plan switch confirmed by the processor.
	ApplyPlanChange(ctx context.Context, userID uuid.UUID, planID plan.ID, interval plan.Interval, priceID string) (Outcome, error)

	Suspend(ctx context.Context, userID uuid.UUID, actorID, reason string) (Outcome, error)
	Restore(ctx context.Context, userID uuid.UUID, actorID string) (Outcome, error)
}

// Notifier delivers user-facing lifecycle notifications.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind notify.Kind, data notify.Data) notify.DeliveryResult
}

// Alerter posts operator alerts.
type Alerter interface {
	Alert(ctx context.Context, a notify.Alert) error
}

// AuditLogger records applied transitions.
type AuditLogger interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
}

// Recorder receives metrics about processing.
type Recorder interface {
	EventProcessed(kind, result string)
	TransitionApplied(trigger, from, to string)
	NotificationSent(kind string, delivered bool)
}

type nopRecorder struct{}

func (nopRecorder) EventProcessed(string, string)            {}
func (nopRecorder) TransitionApplied(string, string, string) {}
func (nopRecorder) NotificationSent(string, bool)            {}

type service struct {
	store       Store
	machine     *machine
	grace       GracePolicy
	notifier    Notifier
	alerter     Alerter
	audit       AuditLogger
	recorder    Recorder
	registry    *plan.Registry
	logger      *slog.Logger
	now         func() time.Time
	maxAttempts int
}

// NewService creates a Service. Panics if store is nil.
func NewService(store Store, opts ...ServiceOption) Service {
	if store == nil {
		panic("subscription: Store is required")
	}

	s := &service{
		store:       store,
		machine:     newMachine(),
		grace:       FixedGrace(DefaultSuspendAfter),
		recorder:    nopRecorder{},
		registry:    plan.DefaultRegistry(),
		logger:      slog.Default(),
		now:         time.Now,
		maxAttempts: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("subscription"))

	return s
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.store.Get(ctx, userID)
}

func (s *service) ListPastDue(ctx context.Context) ([]*Subscription, error) {
	return s.store.ListPastDue(ctx)
}

func (s *service) HandleEvent(ctx context.Context, ev Event) (Outcome, error) {
	if err := ev.Validate(); err != nil {
		s.recorder.EventProcessed(string(ev.Kind), "invalid")
		return Outcome{EventID: ev.ID}, err
	}

	log := s.logger.With(logger.EventID(ev.ID), logger.EventType(string(ev.Kind)), logger.Provider(ev.Provider))

	out, c, err := s.mutate(ctx, func(tx Tx, out *Outcome) (*change, error) {
		out.EventID = ev.ID
		if err := tx.RecordEvent(ctx, ProcessedEvent{
			Provider:   ev.Provider,
			EventID:    ev.ID,
			Kind:       ev.Kind,
			ReceivedAt: s.now(),
		}); err != nil {
			return nil, err
		}

		if ev.Kind.Informational() {
			out.Ignored = IgnoreInformational
			return nil, nil
		}

		sub, err := s.locate(ctx, tx, ev)
		created := false
		switch {
		case errors.Is(err, ErrSubscriptionNotFound):
			if ev.Kind != EventCheckoutCompleted {
				out.Ignored = IgnoreUnknownCustomer
				return nil, nil
			}
			sub, created = New(ev.UserID, s.now()), true
		case err != nil:
			return nil, err
		}

		c := s.newChange(sub, &ev, ev.OccurredAt)
		if err := s.applyEvent(ctx, c, ev, out); err != nil {
			return nil, err
		}
		if !out.Changed() {
			return c, nil
		}
		if err := s.save(ctx, tx, c, created); err != nil {
			return nil, err
		}
		if err := s.recordFailure(ctx, tx, c, ev, out); err != nil {
			return nil, err
		}
		return c, nil
	})

	switch {
	case errors.Is(err, ErrDuplicateEvent):
		log.DebugContext(ctx, "duplicate event skipped")
		s.recorder.EventProcessed(string(ev.Kind), "duplicate")
		return Outcome{EventID: ev.ID, Duplicate: true}, nil
	case err != nil:
		log.ErrorContext(ctx, "failed to process event", logger.Error(err))
		s.recorder.EventProcessed(string(ev.Kind), "error")
		return Outcome{EventID: ev.ID}, errors.Join(ErrPersistence, err)
	}

	if out.Ignored != "" {
		log.InfoContext(ctx, "event recorded without change",
			slog.String("reason", out.Ignored),
			logger.CustomerID(ev.CustomerID),
			logger.SubscriptionID(ev.SubscriptionID),
		)
		s.recorder.EventProcessed(string(ev.Kind), "ignored")
		return out, nil
	}

	s.recorder.EventProcessed(string(ev.Kind), outcomeResult(out))
	s.afterCommit(ctx, c, &out, ActorSystem)
	return out, nil
}

func (s *service) EnforceGrace(ctx context.Context, userID uuid.UUID, now time.Time) (Outcome, error) {
	return s.command(ctx, userID, TriggerGraceElapsed, ActorSystem, now, false, nil)
}

func (s *service) AdvanceDunning(ctx context.Context, userID uuid.UUID, stage DunningStage, kind notify.Kind, now time.Time) (Outcome, error) {
	return s.command(ctx, userID, TriggerDunningNotice, ActorSystem, now, false, func(c *change) {
		c.stage = stage
		c.kind = kind
	})
}

func (s *service) Cancel(ctx context.Context, userID uuid.UUID, actorID, reason string) (Outcome, error) {
	return s.command(ctx, userID, TriggerCancel, actorID, s.now(), false, func(c *change) {
		c.reason = reason
	})
}

func (s *service) Suspend(ctx context.Context, userID uuid.UUID, actorID, reason string) (Outcome, error) {
	return s.command(ctx, userID, TriggerAdminSuspend, actorID, s.now(), true, func(c *change) {
		c.reason = reason
	})
}

func (s *service) Restore(ctx context.Context, userID uuid.UUID, actorID string) (Outcome, error) {
	out, err := s.command(ctx, userID, TriggerAdminRestore, actorID, s.now(), true, nil)
	if errors.Is(err, ErrInvalidTransition) {
		if sub, gerr := s.store.Get(ctx, userID); gerr == nil && sub.IsSuspended() && !sub.IsAdminSuspension() {
			return out, errors.Join(ErrPaymentOutstanding, err)
		}
	}
	return out, err
}

func (s *service) ApplyPlanChange(ctx context.Context, userID uuid.UUID, planID plan.ID, interval plan.Interval, priceID string) (Outcome, error) {
	out, c, err := s.mutate(ctx, func(tx Tx, out *Outcome) (*change, error) {
		sub, err := tx.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if sub.State() == StateCanceled {
			return nil, fmt.Errorf("%w: subscription is canceled", ErrInvalidTransition)
		}
		c := s.newChange(sub, nil, s.now())
		c.sub.PlanID = planID
		c.sub.Interval = interval
		c.sub.PriceID = priceID
		out.Synced = true
		out.From, out.To = sub.State(), sub.State()
		return c, s.save(ctx, tx, c, false)
	})
	if err != nil {
		return Outcome{}, err
	}
	s.afterCommit(ctx, c, &out, ActorSystem)
	return out, nil
}

// command fires trigger against the stored record of userID. With strict
// unset, a trigger that does not apply in the current state is reported in
// Outcome.Ignored instead of as an error.
func (s *service) command(ctx context.Context, userID uuid.UUID, trigger Trigger, actorID string, at time.Time, strict bool, setup func(*change)) (Outcome, error) {
	out, c, err := s.mutate(ctx, func(tx Tx, out *Outcome) (*change, error) {
		sub, err := tx.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		c := s.newChange(sub, nil, at)
		if setup != nil {
			setup(c)
		}
		if err := s.fire(ctx, c, trigger, out); err != nil {
			if !strict && errors.Is(err, ErrInvalidTransition) {
				out.Ignored = IgnoreNoTransition
				return nil, nil
			}
			return nil, err
		}
		return c, s.save(ctx, tx, c, false)
	})
	if err != nil {
		return Outcome{}, err
	}
	if out.Applied {
		s.afterCommit(ctx, c, &out, actorID)
	}
	return out, nil
}

// mutate runs fn in a store transaction and retries it on version conflicts.
func (s *service) mutate(ctx context.Context, fn func(tx Tx, out *Outcome) (*change, error)) (Outcome, *change, error) {
	var (
		out Outcome
		c   *change
		err error
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		out, c = Outcome{}, nil
		err = s.store.WithinTx(ctx, func(tx Tx) error {
			var ferr error
			c, ferr = fn(tx, &out)
			return ferr
		})
		if !errors.Is(err, ErrVersionConflict) {
			return out, c, err
		}
		s.logger.DebugContext(ctx, "version conflict, retrying", logger.RetryCount(attempt))
	}
	return Outcome{}, nil, err
}

func (s *service) newChange(sub *Subscription, ev *Event, at time.Time) *change {
	return &change{
		sub:      sub.Clone(),
		event:    ev,
		at:       at,
		grace:    s.grace,
		prevPlan: sub.PlanID,
	}
}

func (s *service) locate(ctx context.Context, tx Tx, ev Event) (*Subscription, error) {
	if ev.UserID != uuid.Nil {
		sub, err := tx.Get(ctx, ev.UserID)
		if !errors.Is(err, ErrSubscriptionNotFound) {
			return sub, err
		}
	}
	if ev.SubscriptionID != "" {
		sub, err := tx.FindByProviderSubscription(ctx, ev.SubscriptionID)
		if !errors.Is(err, ErrSubscriptionNotFound) {
			return sub, err
		}
	}
	if ev.CustomerID != "" {
		return tx.FindByCustomer(ctx, ev.CustomerID)
	}
	return nil, ErrSubscriptionNotFound
}

func (s *service) applyEvent(ctx context.Context, c *change, ev Event, out *Outcome) error {
	sub := c.sub
	switch ev.Kind {
	case EventCheckoutCompleted:
		if err := s.fireEvent(ctx, c, TriggerCheckout, out); err != nil {
			return err
		}
		if out.Applied {
			c.sub.ProviderSyncedAt = timePtr(ev.OccurredAt)
		}
		return nil

	case EventSubscriptionUpdated:
		return s.syncSubscription(ctx, c, ev, out)

	case EventSubscriptionCanceled:
		if otherSubscription(sub, ev) {
			out.Ignored = IgnoreOtherSubscription
			return nil
		}
		if ev.CanceledAt != nil {
			c.at = *ev.CanceledAt
		}
		return s.fireEvent(ctx, c, TriggerCancel, out)

	case EventChargeFailed:
		switch {
		case ev.SubscriptionID == "":
			out.Ignored = IgnoreNoSubscription
		case otherSubscription(sub, ev):
			out.Ignored = IgnoreOtherSubscription
		case sub.LastPaidAt != nil && ev.OccurredAt.Before(*sub.LastPaidAt):
			out.Ignored = IgnoreStale
		default:
			return s.fireEvent(ctx, c, TriggerChargeFailed, out)
		}
		return nil

	case EventChargeSucceeded:
		switch {
		case ev.SubscriptionID == "":
			out.Ignored = IgnoreNoSubscription
		case otherSubscription(sub, ev):
			out.Ignored = IgnoreOtherSubscription
		case sub.FailureFirstSeenAt != nil && ev.OccurredAt.Before(*sub.FailureFirstSeenAt):
			out.Ignored = IgnoreStale
		default:
			return s.fireEvent(ctx, c, TriggerChargeSucceeded, out)
		}
		return nil
	}

	out.Ignored = IgnoreInformational
	return nil
}

// syncSubscription copies processor metadata onto the record and fires the
// transition implied by the processor status.
func (s *service) syncSubscription(ctx context.Context, c *change, ev Event, out *Outcome) error {
	sub := c.sub
	if sub.ProviderSyncedAt != nil && ev.OccurredAt.Before(*sub.ProviderSyncedAt) {
		out.Ignored = IgnoreStale
		return nil
	}

	if sub.State() == StateCanceled {
		resubscribed := ev.SubscriptionID != "" && ev.SubscriptionID != sub.ProviderSubscriptionID &&
			(ev.Status == BillingActive || ev.Status == BillingTrialing)
		if !resubscribed {
			out.Ignored = IgnoreTerminal
			return nil
		}
		if err := s.fireEvent(ctx, c, TriggerCheckout, out); err != nil {
			return err
		}
		sub.ProviderSyncedAt = timePtr(ev.OccurredAt)
		return nil
	}
	if otherSubscription(sub, ev) {
		out.Ignored = IgnoreOtherSubscription
		return nil
	}

	applyProviderFields(sub, &ev)
	sub.ProviderSyncedAt = timePtr(ev.OccurredAt)
	out.Synced = true

	switch ev.Status {
	case BillingCanceled:
		if ev.CanceledAt != nil {
			c.at = *ev.CanceledAt
		}
		return s.fireEvent(ctx, c, TriggerCancel, out)
	case BillingPastDue:
		stale := sub.LastPaidAt != nil && ev.OccurredAt.Before(*sub.LastPaidAt)
		if sub.State() == StateActive && !stale {
			return s.fireEvent(ctx, c, TriggerChargeFailed, out)
		}
	case BillingActive, BillingTrialing:
		if sub.State() == StateActive {
			sub.BillingStatus = ev.Status
		}
	}
	return nil
}

// fireEvent fires a processor-driven trigger; triggers that do not apply in
// the current state leave the event recorded but ignored.
func (s *service) fireEvent(ctx context.Context, c *change, t Trigger, out *Outcome) error {
	if c.sub.State() == StateCanceled && t != TriggerCheckout {
		if !out.Synced {
			out.Ignored = IgnoreTerminal
		}
		return nil
	}
	err := s.fire(ctx, c, t, out)
	if errors.Is(err, ErrInvalidTransition) {
		if !out.Synced {
			out.Ignored = IgnoreNoTransition
		}
		return nil
	}
	return err
}

func (s *service) fire(ctx context.Context, c *change, t Trigger, out *Outcome) error {
	from := c.sub.State()
	to, err := s.machine.Fire(ctx, from, t, c)
	if err != nil {
		if statemachine.IsNoTransitionAvailableError(err) || statemachine.IsTransitionRejectedError(err) {
			return errors.Join(ErrInvalidTransition, err)
		}
		return err
	}
	if got := c.sub.State(); got != to {
		return fmt.Errorf("%w: %s from %s produced %s, expected %s", ErrInvariantViolated, t, from, got, to)
	}
	if err := c.sub.CheckInvariants(c.checkAt(), s.grace); err != nil {
		return err
	}
	out.Applied = true
	out.Trigger = t
	out.From = from
	out.To = to
	return nil
}

func (s *service) save(ctx context.Context, tx Tx, c *change, created bool) error {
	c.sub.UpdatedAt = s.now()
	if created {
		if err := tx.Create(ctx, c.sub); err != nil {
			return err
		}
	} else if err := tx.Update(ctx, c.sub); err != nil {
		return err
	}
	if c.failureStatus != "" {
		return tx.MarkPaymentFailures(ctx, c.sub.UserID, c.failureStatus, c.at)
	}
	return nil
}

func (s *service) recordFailure(ctx context.Context, tx Tx, c *change, ev Event, out *Outcome) error {
	if out.Trigger != TriggerChargeFailed || ev.Invoice == nil || ev.Invoice.ID == "" {
		return nil
	}
	status := FailureActive
	if c.sub.IsSuspended() {
		status = FailureSuspended
	}
	return tx.UpsertPaymentFailure(ctx, PaymentFailure{
		InvoiceID:              ev.Invoice.ID,
		UserID:                 c.sub.UserID,
		ProviderSubscriptionID: ev.SubscriptionID,
		AttemptCount:           ev.Invoice.AttemptCount,
		FailureReason:          ev.Invoice.FailureReason,
		AmountDue:              ev.Invoice.AmountDue,
		Currency:               ev.Invoice.Currency,
		Status:                 status,
		FirstFailedAt:          ev.OccurredAt,
		LastFailedAt:           ev.OccurredAt,
	})
}

// afterCommit emits notifications, audit entries, alerts and metrics. None
// of these can fail the already committed change.
func (s *service) afterCommit(ctx context.Context, c *change, out *Outcome, actorID string) {
	if c == nil {
		return
	}
	log := s.logger.With(logger.UserID(c.sub.UserID))

	if out.Applied {
		s.recorder.TransitionApplied(string(out.Trigger), string(out.From), string(out.To))
		log.InfoContext(ctx, "subscription transition applied",
			slog.String("trigger", string(out.Trigger)),
			logger.Transition(string(out.From), string(out.To)),
			logger.ActorID(actorID),
		)
		s.writeAudit(ctx, c, out, actorID)
	}

	for _, n := range c.notices {
		if s.notifier == nil {
			break
		}
		res := s.notifier.Notify(ctx, c.sub.UserID, n.kind, s.fillData(c, n))
		out.Deliveries = append(out.Deliveries, res)
		s.recorder.NotificationSent(string(n.kind), res.Delivered)
		if res.Err != nil {
			log.WarnContext(ctx, "notification not delivered", logger.Notification(string(n.kind)), logger.Error(res.Err))
		}
	}

	if a, ok := s.alertFor(c, out); ok && s.alerter != nil {
		if err := s.alerter.Alert(ctx, a); err != nil {
			log.WarnContext(ctx, "failed to post alert", logger.Error(err))
		}
	}
}

func (s *service) writeAudit(ctx context.Context, c *change, out *Outcome, actorID string) {
	if s.audit == nil {
		return
	}
	opts := []audit.EventOption{
		audit.WithUser(c.sub.UserID.String()),
		audit.WithActor(actorID),
		audit.WithResource("subscription", c.sub.UserID.String()),
		audit.WithMetadata("from", string(out.From)),
		audit.WithMetadata("to", string(out.To)),
	}
	if out.EventID != "" {
		opts = append(opts, audit.WithMetadata("event_id", out.EventID))
	}
	if c.reason != "" {
		opts = append(opts, audit.WithMetadata("reason", c.reason))
	}
	if err := s.audit.Log(ctx, "subscription."+string(out.Trigger), opts...); err != nil {
		s.logger.WarnContext(ctx, "failed to write audit event", logger.Error(err))
	}
}

func (s *service) fillData(c *change, n notice) notify.Data {
	d := n.data
	if d.PlanName == "" {
		id := c.sub.PlanID
		if n.kind == notify.KindCancellationConfirmed {
			id = c.prevPlan
		}
		d.PlanName = s.registry.Resolve(string(id)).Name
	}
	if d.PeriodEnd == nil && n.kind != notify.KindCancellationConfirmed {
		d.PeriodEnd = cloneTime(c.sub.CurrentPeriodEnd)
	}
	return d
}

func (s *service) alertFor(c *change, out *Outcome) (notify.Alert, bool) {
	fields := map[string]string{
		"user_id":         c.sub.UserID.String(),
		"customer_id":     c.sub.CustomerID,
		"subscription_id": c.sub.ProviderSubscriptionID,
	}
	switch {
	case out.Applied && out.Trigger == TriggerChargeFailed && out.From == StateActive:
		return notify.Alert{Level: notify.AlertWarning, Title: "Payment failed", Text: "A subscription entered dunning.", Fields: fields}, true
	case out.Applied && out.To == StateSuspended && out.From != StateSuspended:
		fields["reason"] = c.sub.SuspendReason
		return notify.Alert{Level: notify.AlertError, Title: "Service suspended", Text: "Access was suspended.", Fields: fields}, true
	case out.Applied && out.To == StateCanceled:
		fields["plan"] = string(c.prevPlan)
		return notify.Alert{Level: notify.AlertWarning, Title: "Subscription canceled", Text: "A subscription was canceled.", Fields: fields}, true
	case c.prevPlan != c.sub.PlanID && out.To != StateCanceled:
		fields["from_plan"] = string(c.prevPlan)
		fields["to_plan"] = string(c.sub.PlanID)
		return notify.Alert{Level: notify.AlertInfo, Title: "Plan changed", Text: "A subscription switched plans.", Fields: fields}, true
	}
	return notify.Alert{}, false
}

func otherSubscription(sub *Subscription, ev Event) bool {
	return sub.ProviderSubscriptionID != "" && ev.SubscriptionID != "" && ev.SubscriptionID != sub.ProviderSubscriptionID
}

func outcomeResult(out Outcome) string {
	if out.Applied {
		return "applied"
	}
	return "synced"
}
