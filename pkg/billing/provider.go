package billing

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

// Provider is a payment processor.
type Provider interface {
	Name() string

	CreateCheckout(ctx context.Context, req CheckoutRequest) (Session, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (Session, error)
	ChangePlan(ctx context.Context, req ChangePlanRequest) error
	CancelSubscription(ctx context.Context, req CancelRequest) (CancelResult, error)
	// RetryPayment pays invoiceID, or the newest open invoice of customerID
	// when invoiceID is empty.
	RetryPayment(ctx context.Context, customerID, invoiceID string) (PaymentResult, error)

	// ParseWebhook verifies the signature in header and normalizes the
	// payload. Events the service does not handle return ErrUnsupportedEvent.
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (subscription.Event, error)
}

// CheckoutRequest starts a hosted checkout for a subscription price.
type CheckoutRequest struct {
	UserID     uuid.UUID
	Email      string
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	Locale     string
}

// Session is a hosted page the user is redirected to.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ChangePlanRequest switches the subscription's single item to PriceID with
// proration.
type ChangePlanRequest struct {
	SubscriptionID string
	PriceID        string
}

// CancelMode selects when a cancellation takes effect.
type CancelMode string

const (
	CancelEndOfPeriod CancelMode = "end_of_period"
	CancelImmediately CancelMode = "immediate"
)

// Valid reports whether m is a known mode.
func (m CancelMode) Valid() bool {
	return m == CancelEndOfPeriod || m == CancelImmediately
}

// CancelRequest cancels a processor subscription.
type CancelRequest struct {
	SubscriptionID string
	Mode           CancelMode
	Reason         string
	Comment        string
}

// CancelResult reports when access ends.
type CancelResult struct {
	CancelAt *time.Time `json:"cancel_at,omitempty"`
	Canceled bool       `json:"canceled"`
}

// PaymentResult is the outcome of a retried invoice payment.
type PaymentResult struct {
	InvoiceID string `json:"invoice_id"`
	Status    string `json:"status"`
	Paid      bool   `json:"paid"`
}

// Cancellation feedback categories accepted from users.
const (
	ReasonTooExpensive    = "too_expensive"
	ReasonUnused          = "unused"
	ReasonCustomerService = "customer_service"
	ReasonLowQuality      = "low_quality"
	ReasonSwitchedService = "switched_service"
	ReasonMissingFeatures = "missing_features"
	ReasonTooComplex      = "too_complex"
	ReasonOther           = "other"
)

// MaxReasonDetail bounds the free-text cancellation comment.
const MaxReasonDetail = 1000

// IsCancelReason reports whether r is a known feedback category.
func IsCancelReason(r string) bool {
	switch r {
	case ReasonTooExpensive, ReasonUnused, ReasonCustomerService, ReasonLowQuality,
		ReasonSwitchedService, ReasonMissingFeatures, ReasonTooComplex, ReasonOther:
		return true
	}
	return false
}
