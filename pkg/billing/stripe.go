package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

// StripeSignatureHeader carries the Stripe webhook signature.
const StripeSignatureHeader = "Stripe-Signature"

// StripeConfig holds Stripe credentials.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// Validate checks that both secrets are set.
func (c StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("%w: STRIPE_SECRET_KEY", ErrMissingAPIKey)
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("%w: STRIPE_WEBHOOK_SECRET", ErrMissingWebhookSecret)
	}
	return nil
}

// StripeProvider implements Provider on the Stripe API.
type StripeProvider struct {
	api     *client.API
	secret  string
	catalog *plan.Catalog
	logger  *slog.Logger
}

// StripeOption configures a StripeProvider.
type StripeOption func(*stripeOptions)

type stripeOptions struct {
	backends *stripe.Backends
	logger   *slog.Logger
}

// WithStripeBackends overrides the API backends, e.g. to point at a test
// server.
func WithStripeBackends(b *stripe.Backends) StripeOption {
	return func(o *stripeOptions) {
		o.backends = b
	}
}

// WithStripeLogger sets the logger.
func WithStripeLogger(l *slog.Logger) StripeOption {
	return func(o *stripeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewStripeProvider creates a StripeProvider. catalog maps price ids to plans.
func NewStripeProvider(cfg StripeConfig, catalog *plan.Catalog, opts ...StripeOption) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = plan.NewCatalog(plan.CatalogConfig{})
	}
	o := stripeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &StripeProvider{
		api:     client.New(cfg.SecretKey, o.backends),
		secret:  cfg.WebhookSecret,
		catalog: catalog,
		logger:  o.logger.With(logger.Provider("stripe")),
	}, nil
}

// Name returns "stripe".
func (p *StripeProvider) Name() string { return "stripe" }

// CreateCheckout opens a subscription-mode Checkout Session. The user id
// travels as client reference and in session and subscription metadata.
func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (Session, error) {
	if req.PriceID == "" {
		return Session{}, ErrMissingPriceID
	}
	meta := map[string]string{"user_id": req.UserID.String(), "price_id": req.PriceID}
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID.String()),
		Metadata:          meta,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": req.UserID.String()},
		},
	}
	switch {
	case req.CustomerID != "":
		params.Customer = stripe.String(req.CustomerID)
	case req.Email != "":
		params.CustomerEmail = stripe.String(req.Email)
	}
	if req.Locale != "" {
		params.Locale = stripe.String(req.Locale)
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, p.wrap(err)
	}
	if s.URL == "" {
		return Session{}, ErrNoCheckoutURL
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}

// CreatePortalSession opens the Stripe billing portal for customerID.
func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (Session, error) {
	if customerID == "" {
		return Session{}, ErrMissingCustomerID
	}
	s, err := p.api.BillingPortalSessions.New(&stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return Session{}, p.wrap(err)
	}
	if s.URL == "" {
		return Session{}, ErrNoPortalURL
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}

// ChangePlan swaps the subscription's first item to the new price and
// prorates the difference.
func (p *StripeProvider) ChangePlan(ctx context.Context, req ChangePlanRequest) error {
	if req.SubscriptionID == "" {
		return ErrMissingSubscriptionID
	}
	if req.PriceID == "" {
		return ErrMissingPriceID
	}
	sub, err := p.api.Subscriptions.Get(req.SubscriptionID, &stripe.SubscriptionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return p.wrap(err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return fmt.Errorf("%w: subscription %s has no items", ErrProvider, req.SubscriptionID)
	}
	_, err = p.api.Subscriptions.Update(req.SubscriptionID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
		Items: []*stripe.SubscriptionItemsParams{
			{ID: stripe.String(sub.Items.Data[0].ID), Price: stripe.String(req.PriceID)},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	})
	return p.wrap(err)
}

// CancelSubscription cancels now or flags the subscription to end with the
// current period.
func (p *StripeProvider) CancelSubscription(ctx context.Context, req CancelRequest) (CancelResult, error) {
	if req.SubscriptionID == "" {
		return CancelResult{}, ErrMissingSubscriptionID
	}

	var feedback, comment *string
	if IsCancelReason(req.Reason) {
		feedback = stripe.String(req.Reason)
	}
	if req.Comment != "" {
		comment = stripe.String(req.Comment)
	}

	if req.Mode == CancelImmediately {
		_, err := p.api.Subscriptions.Cancel(req.SubscriptionID, &stripe.SubscriptionCancelParams{
			Params:              stripe.Params{Context: ctx},
			CancellationDetails: &stripe.SubscriptionCancelCancellationDetailsParams{Feedback: feedback, Comment: comment},
		})
		if err != nil {
			if p.alreadyCanceled(ctx, req.SubscriptionID, err) {
				return CancelResult{Canceled: true}, errors.Join(ErrAlreadyCanceled, err)
			}
			return CancelResult{}, p.wrap(err)
		}
		return CancelResult{Canceled: true}, nil
	}

	sub, err := p.api.Subscriptions.Update(req.SubscriptionID, &stripe.SubscriptionParams{
		Params:              stripe.Params{Context: ctx},
		CancelAtPeriodEnd:   stripe.Bool(true),
		CancellationDetails: &stripe.SubscriptionCancellationDetailsParams{Feedback: feedback, Comment: comment},
	})
	if err != nil {
		return CancelResult{}, p.wrap(err)
	}
	res := CancelResult{CancelAt: unixTime(sub.CancelAt)}
	if res.CancelAt == nil && sub.Items != nil && len(sub.Items.Data) > 0 {
		res.CancelAt = unixTime(sub.Items.Data[0].CurrentPeriodEnd)
	}
	return res, nil
}

// RetryPayment attempts to pay an open invoice immediately.
func (p *StripeProvider) RetryPayment(ctx context.Context, customerID, invoiceID string) (PaymentResult, error) {
	if invoiceID == "" {
		if customerID == "" {
			return PaymentResult{}, ErrMissingCustomerID
		}
		it := p.api.Invoices.List(&stripe.InvoiceListParams{
			ListParams: stripe.ListParams{Context: ctx, Limit: stripe.Int64(1)},
			Customer:   stripe.String(customerID),
			Status:     stripe.String(string(stripe.InvoiceStatusOpen)),
		})
		if it.Next() {
			invoiceID = it.Invoice().ID
		}
		if err := it.Err(); err != nil {
			return PaymentResult{}, p.wrap(err)
		}
		if invoiceID == "" {
			return PaymentResult{}, ErrNoOpenInvoice
		}
	}

	inv, err := p.api.Invoices.Pay(invoiceID, &stripe.InvoicePayParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return PaymentResult{InvoiceID: invoiceID}, p.wrap(err)
	}
	return PaymentResult{
		InvoiceID: inv.ID,
		Status:    string(inv.Status),
		Paid:      inv.Status == stripe.InvoiceStatusPaid,
	}, nil
}

// wrap classifies Stripe API errors. Card errors become ErrPaymentDeclined.
// alreadyCanceled reports whether a rejected cancel hit a subscription that
// Stripe has already ended.
func (p *StripeProvider) alreadyCanceled(ctx context.Context, id string, err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) || se.Type != stripe.ErrorTypeInvalidRequest {
		return false
	}
	sub, gerr := p.api.Subscriptions.Get(id, &stripe.SubscriptionParams{Params: stripe.Params{Context: ctx}})
	return gerr == nil && sub.Status == stripe.SubscriptionStatusCanceled
}

func (p *StripeProvider) wrap(err error) error {
	if err == nil {
		return nil
	}
	var se *stripe.Error
	if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
		return errors.Join(ErrPaymentDeclined, err)
	}
	return errors.Join(ErrProvider, err)
}

// stripeObject is the union of the event payload fields we read.
type stripeObject struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	Customer          json.RawMessage   `json:"customer"`
	CustomerEmail     string            `json:"customer_email"`
	ClientReferenceID string            `json:"client_reference_id"`
	Mode              string            `json:"mode"`
	PaymentStatus     string            `json:"payment_status"`
	Subscription      json.RawMessage   `json:"subscription"`
	Metadata          map[string]string `json:"metadata"`
	CustomerDetails   *struct {
		Email string `json:"email"`
	} `json:"customer_details"`

	Status     string `json:"status"`
	CancelAt   int64  `json:"cancel_at"`
	CanceledAt int64  `json:"canceled_at"`
	TrialEnd   int64  `json:"trial_end"`
	Items      *struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`

	AttemptCount int64  `json:"attempt_count"`
	AmountDue    int64  `json:"amount_due"`
	Currency     string `json:"currency"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription json.RawMessage `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	LastFinalizationError *struct {
		Message string `json:"message"`
	} `json:"last_finalization_error"`
}

var stripeKinds = map[string]subscription.EventKind{
	"checkout.session.completed":           subscription.EventCheckoutCompleted,
	"customer.subscription.created":        subscription.EventSubscriptionUpdated,
	"customer.subscription.updated":        subscription.EventSubscriptionUpdated,
	"customer.subscription.deleted":        subscription.EventSubscriptionCanceled,
	"customer.subscription.trial_will_end": subscription.EventTrialWillEnd,
	"invoice.paid":                         subscription.EventChargeSucceeded,
	"invoice.payment_failed":               subscription.EventChargeFailed,
	"invoice.finalized":                    subscription.EventInvoiceFinalized,
}

// ParseWebhook verifies the Stripe-Signature header and normalizes the event.
func (p *StripeProvider) ParseWebhook(_ context.Context, payload []byte, header http.Header) (subscription.Event, error) {
	se, err := webhook.ConstructEventWithOptions(payload, header.Get(StripeSignatureHeader), p.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return subscription.Event{}, errors.Join(ErrWebhookVerificationFailed, err)
	}

	ev := subscription.Event{
		ID:         se.ID,
		Provider:   p.Name(),
		RawType:    string(se.Type),
		OccurredAt: time.Unix(se.Created, 0).UTC(),
	}
	kind, ok := stripeKinds[string(se.Type)]
	if !ok {
		return ev, fmt.Errorf("%w: %s", ErrUnsupportedEvent, se.Type)
	}
	ev.Kind = kind

	if se.Data == nil {
		return ev, fmt.Errorf("%w: no data object", ErrMalformedEvent)
	}
	var obj stripeObject
	if err := json.Unmarshal(se.Data.Raw, &obj); err != nil {
		return ev, errors.Join(ErrMalformedEvent, err)
	}
	ev.CustomerID = expandableID(obj.Customer)

	switch kind {
	case subscription.EventCheckoutCompleted:
		err = p.fillCheckout(&ev, obj)
	case subscription.EventSubscriptionUpdated, subscription.EventSubscriptionCanceled, subscription.EventTrialWillEnd:
		p.fillSubscription(&ev, obj)
	default:
		fillInvoice(&ev, obj)
	}
	if err != nil {
		return ev, err
	}
	return ev, nil
}

func (p *StripeProvider) fillCheckout(ev *subscription.Event, obj stripeObject) error {
	if obj.Mode != "" && obj.Mode != string(stripe.CheckoutSessionModeSubscription) {
		return fmt.Errorf("%w: checkout mode %s", ErrUnsupportedEvent, obj.Mode)
	}
	ref := obj.ClientReferenceID
	if ref == "" {
		ref = obj.Metadata["user_id"]
	}
	uid, err := uuid.Parse(ref)
	if err != nil {
		return fmt.Errorf("%w: checkout without user reference", ErrMalformedEvent)
	}
	ev.UserID = uid
	ev.SubscriptionID = expandableID(obj.Subscription)
	ev.Email = obj.CustomerEmail
	if ev.Email == "" && obj.CustomerDetails != nil {
		ev.Email = obj.CustomerDetails.Email
	}
	ev.PriceID = obj.Metadata["price_id"]
	ev.PlanID, ev.Interval = p.catalog.PlanFor(ev.PriceID)
	switch obj.PaymentStatus {
	case "no_payment_required":
		ev.Status = subscription.BillingTrialing
	case "unpaid":
		ev.Status = subscription.BillingIncomplete
	default:
		ev.Status = subscription.BillingActive
	}
	return nil
}

func (p *StripeProvider) fillSubscription(ev *subscription.Event, obj stripeObject) {
	ev.SubscriptionID = obj.ID
	if uid, err := uuid.Parse(obj.Metadata["user_id"]); err == nil {
		ev.UserID = uid
	}
	ev.Status = subscription.NormalizeBillingStatus(obj.Status)
	ev.CancelAt = unixTime(obj.CancelAt)
	ev.CanceledAt = unixTime(obj.CanceledAt)
	ev.TrialEnd = unixTime(obj.TrialEnd)
	if obj.Items != nil && len(obj.Items.Data) > 0 {
		item := obj.Items.Data[0]
		ev.PriceID = item.Price.ID
		ev.PlanID, ev.Interval = p.catalog.PlanFor(item.Price.ID)
		ev.PeriodStart = unixTime(item.CurrentPeriodStart)
		ev.PeriodEnd = unixTime(item.CurrentPeriodEnd)
	}
	if ev.PriceID != "" && ev.PlanID == plan.Free {
		p.logger.Warn("subscription price not in catalog", slog.String("price_id", ev.PriceID), logger.SubscriptionID(ev.SubscriptionID))
	}
}

func fillInvoice(ev *subscription.Event, obj stripeObject) {
	ev.SubscriptionID = expandableID(obj.Subscription)
	if obj.Parent != nil && obj.Parent.SubscriptionDetails != nil {
		if id := expandableID(obj.Parent.SubscriptionDetails.Subscription); id != "" {
			ev.SubscriptionID = id
		}
	}
	inv := &subscription.Invoice{
		ID:           obj.ID,
		AttemptCount: int(obj.AttemptCount),
		AmountDue:    obj.AmountDue,
		Currency:     obj.Currency,
	}
	if obj.LastFinalizationError != nil {
		inv.FailureReason = obj.LastFinalizationError.Message
	}
	ev.Invoice = inv
}

// expandableID reads a Stripe field that is either an id string or an
// expanded object with an id.
func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
