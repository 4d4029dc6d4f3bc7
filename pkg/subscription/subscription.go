package subscription

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
)

// Subscription is the per-user billing record. Exactly one exists per user
// and it is never hard-deleted; cancellation is a state.
type Subscription struct {
	UserID   uuid.UUID     `json:"user_id"`
	PlanID   plan.ID       `json:"plan_id"`
	Interval plan.Interval `json:"interval"`

	BillingStatus BillingStatus `json:"billing_status"`
	AppStatus     AppStatus     `json:"app_status"`

	CustomerID             string `json:"customer_id,omitempty"`
	ProviderSubscriptionID string `json:"provider_subscription_id,omitempty"`
	PriceID                string `json:"price_id,omitempty"`

	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAt           *time.Time `json:"cancel_at,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`

	// FailureFirstSeenAt anchors the dunning timeline. It is set by the
	// first failed charge and only cleared by a successful one.
	FailureFirstSeenAt *time.Time `json:"failure_first_seen_at,omitempty"`
	LastPaidAt         *time.Time `json:"last_paid_at,omitempty"`
	// ProviderSyncedAt is the occurrence time of the newest applied
	// subscription event; older ones are discarded.
	ProviderSyncedAt *time.Time `json:"-"`

	DunningStage  DunningStage `json:"dunning_stage"`
	SuspendedAt   *time.Time   `json:"suspended_at,omitempty"`
	SuspendReason string       `json:"suspend_reason,omitempty"`

	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a fresh free-plan record for userID.
func New(userID uuid.UUID, now time.Time) *Subscription {
	return &Subscription{
		UserID:        userID,
		PlanID:        plan.Free,
		Interval:      plan.Monthly,
		BillingStatus: BillingIncomplete,
		AppStatus:     AppActive,
		DunningStage:  StageNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// State derives the payment-state machine state.
func (s *Subscription) State() State {
	switch {
	case s.BillingStatus == BillingCanceled:
		return StateCanceled
	case s.AppStatus == AppSuspended:
		return StateSuspended
	case s.BillingStatus == BillingPastDue:
		return StatePastDue
	default:
		return StateActive
	}
}

// IsSuspended reports whether access is blocked.
func (s *Subscription) IsSuspended() bool {
	return s.AppStatus == AppSuspended
}

// IsAdminSuspension reports whether the suspension was placed manually.
func (s *Subscription) IsAdminSuspension() bool {
	return s.IsSuspended() && strings.HasPrefix(s.SuspendReason, AdminReasonPrefix)
}

// CheckInvariants verifies the state and timestamp rules that every
// transition must preserve.
func (s *Subscription) CheckInvariants(now time.Time, grace GracePolicy) error {
	if s.BillingStatus == BillingPastDue && s.FailureFirstSeenAt == nil {
		return fmt.Errorf("%w: past_due without failure timestamp", ErrInvariantViolated)
	}
	if s.State() == StateActive && s.FailureFirstSeenAt != nil {
		return fmt.Errorf("%w: active with failure timestamp", ErrInvariantViolated)
	}
	if s.BillingStatus == BillingCanceled && s.AppStatus != AppActive {
		return fmt.Errorf("%w: canceled subscription is suspended", ErrInvariantViolated)
	}
	if s.IsSuspended() && !s.IsAdminSuspension() {
		if s.BillingStatus != BillingPastDue || s.FailureFirstSeenAt == nil {
			return fmt.Errorf("%w: suspended without outstanding payment", ErrInvariantViolated)
		}
		if grace != nil && !grace.SuspensionDue(*s.FailureFirstSeenAt, now) {
			return fmt.Errorf("%w: suspended before grace period elapsed", ErrInvariantViolated)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.CurrentPeriodStart = cloneTime(s.CurrentPeriodStart)
	c.CurrentPeriodEnd = cloneTime(s.CurrentPeriodEnd)
	c.CancelAt = cloneTime(s.CancelAt)
	c.CanceledAt = cloneTime(s.CanceledAt)
	c.TrialEnd = cloneTime(s.TrialEnd)
	c.FailureFirstSeenAt = cloneTime(s.FailureFirstSeenAt)
	c.LastPaidAt = cloneTime(s.LastPaidAt)
	c.ProviderSyncedAt = cloneTime(s.ProviderSyncedAt)
	c.SuspendedAt = cloneTime(s.SuspendedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
