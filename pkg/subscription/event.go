package subscription

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/notify"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
)

// Event is a processor notification normalized by a billing provider.
type Event struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	Kind       EventKind `json:"kind"`
	RawType    string    `json:"raw_type,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`

	// UserID is only known for checkout events, from session metadata.
	UserID         uuid.UUID `json:"user_id,omitempty"`
	Email          string    `json:"email,omitempty"`
	CustomerID     string    `json:"customer_id,omitempty"`
	SubscriptionID string    `json:"subscription_id,omitempty"`

	PriceID  string        `json:"price_id,omitempty"`
	PlanID   plan.ID       `json:"plan_id,omitempty"`
	Interval plan.Interval `json:"interval,omitempty"`
	Status   BillingStatus `json:"status,omitempty"`

	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
	CancelAt    *time.Time `json:"cancel_at,omitempty"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`
	TrialEnd    *time.Time `json:"trial_end,omitempty"`

	Invoice *Invoice `json:"invoice,omitempty"`
}

// Invoice carries charge details of charge_failed and charge_succeeded.
type Invoice struct {
	ID            string `json:"id"`
	AttemptCount  int    `json:"attempt_count"`
	FailureReason string `json:"failure_reason,omitempty"`
	AmountDue     int64  `json:"amount_due"`
	Currency      string `json:"currency,omitempty"`
}

// Validate checks the fields every event needs.
func (e Event) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	case e.Provider == "":
		return fmt.Errorf("%w: missing provider", ErrInvalidEvent)
	case !e.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	case e.OccurredAt.IsZero():
		return fmt.Errorf("%w: missing occurrence time", ErrInvalidEvent)
	case e.Kind == EventCheckoutCompleted && e.UserID == uuid.Nil:
		return fmt.Errorf("%w: checkout without user id", ErrInvalidEvent)
	}
	return nil
}

// Outcome describes what processing an event or command did.
type Outcome struct {
	EventID   string `json:"event_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	// Applied is set when a transition fired.
	Applied bool `json:"applied"`
	// Synced is set when processor metadata (plan, period) was updated.
	Synced  bool    `json:"synced,omitempty"`
	Ignored string  `json:"ignored,omitempty"`
	Trigger Trigger `json:"trigger,omitempty"`
	From    State   `json:"from,omitempty"`
	To      State   `json:"to,omitempty"`

	Deliveries []notify.DeliveryResult `json:"-"`
}

// Changed reports whether the record was written.
func (o Outcome) Changed() bool {
	return o.Applied || o.Synced
}
