package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reader loads subscription records.
type Reader interface {
	// Get returns ErrSubscriptionNotFound when the user has no record.
	Get(ctx context.Context, userID uuid.UUID) (*Subscription, error)
}

// Tx is the transactional view used while applying a change.
type Tx interface {
	Reader
	FindByCustomer(ctx context.Context, customerID string) (*Subscription, error)
	FindByProviderSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	Create(ctx context.Context, sub *Subscription) error
	// Update writes sub when the stored version equals sub.Version and
	// increments sub.Version. A mismatch returns ErrVersionConflict.
	Update(ctx context.Context, sub *Subscription) error

	// RecordEvent returns ErrDuplicateEvent when (provider, id) exists.
	RecordEvent(ctx context.Context, ev ProcessedEvent) error

	UpsertPaymentFailure(ctx context.Context, f PaymentFailure) error
	// MarkPaymentFailures moves open failures of userID to status. Resolved
	// and canceled set ResolvedAt.
	MarkPaymentFailures(ctx context.Context, userID uuid.UUID, status FailureStatus, at time.Time) error
}

// Store persists subscriptions.
type Store interface {
	Reader
	// WithinTx runs fn in a transaction; fn's error rolls it back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// ListPastDue returns records with an outstanding payment, suspended ones
	// included.
	ListPastDue(ctx context.Context) ([]*Subscription, error)
}

// ProcessedEvent is the idempotency key of a processor event.
type ProcessedEvent struct {
	Provider   string
	EventID    string
	Kind       EventKind
	ReceivedAt time.Time
}

// FailureStatus is the dunning status of a failed invoice.
type FailureStatus string

const (
	FailureActive    FailureStatus = "active"
	FailureSuspended FailureStatus = "suspended"
	FailureResolved  FailureStatus = "resolved"
	FailureCanceled  FailureStatus = "canceled"
)

// PaymentFailure tracks one failed invoice.
type PaymentFailure struct {
	InvoiceID              string        `json:"invoice_id"`
	UserID                 uuid.UUID     `json:"user_id"`
	ProviderSubscriptionID string        `json:"provider_subscription_id"`
	AttemptCount           int           `json:"attempt_count"`
	FailureReason          string        `json:"failure_reason,omitempty"`
	AmountDue              int64         `json:"amount_due"`
	Currency               string        `json:"currency,omitempty"`
	Status                 FailureStatus `json:"status"`
	FirstFailedAt          time.Time     `json:"first_failed_at"`
	LastFailedAt           time.Time     `json:"last_failed_at"`
	ResolvedAt             *time.Time    `json:"resolved_at,omitempty"`
}
