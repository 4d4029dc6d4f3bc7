package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

// PaddleSignatureHeader carries the Paddle webhook signature.
const PaddleSignatureHeader = "Paddle-Signature"

// PaddleConfig holds Paddle credentials.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// Validate checks credentials and the environment name.
func (c PaddleConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: PADDLE_API_KEY", ErrMissingAPIKey)
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("%w: PADDLE_WEBHOOK_SECRET", ErrMissingWebhookSecret)
	}
	switch strings.ToLower(c.Environment) {
	case "", "production", "sandbox":
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidEnvironment, c.Environment)
}

// PaddleProvider implements Provider on Paddle Billing. Plan changes and
// payment retries are managed in the Paddle portal and are not supported.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	catalog  *plan.Catalog
	logger   *slog.Logger
}

// NewPaddleProvider creates a PaddleProvider.
func NewPaddleProvider(cfg PaddleConfig, catalog *plan.Catalog, log *slog.Logger) (*PaddleProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		sdk *paddle.SDK
		err error
	)
	if strings.EqualFold(cfg.Environment, "sandbox") {
		sdk, err = paddle.NewSandbox(cfg.APIKey)
	} else {
		sdk, err = paddle.New(cfg.APIKey)
	}
	if err != nil {
		return nil, errors.Join(ErrProvider, err)
	}
	if catalog == nil {
		catalog = plan.NewCatalog(plan.CatalogConfig{})
	}
	if log == nil {
		log = slog.Default()
	}
	return &PaddleProvider{
		client:   sdk,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
		catalog:  catalog,
		logger:   log.With(logger.Provider("paddle")),
	}, nil
}

// Name returns "paddle".
func (p *PaddleProvider) Name() string { return "paddle" }

// CreateCheckout creates a transaction for the price and returns its
// hosted checkout URL.
func (p *PaddleProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (Session, error) {
	if req.PriceID == "" {
		return Session{}, ErrMissingPriceID
	}
	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})
	txReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"user_id":  req.UserID.String(),
			"price_id": req.PriceID,
		},
	}
	if req.CustomerID != "" {
		txReq.CustomerID = paddle.PtrTo(req.CustomerID)
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(req.SuccessURL)}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return Session{}, errors.Join(ErrProvider, err)
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return Session{}, ErrNoCheckoutURL
	}
	return Session{ID: tx.ID, URL: *tx.Checkout.URL}, nil
}

// CreatePortalSession returns the customer portal overview link. Paddle
// portal links do not take a return URL.
func (p *PaddleProvider) CreatePortalSession(ctx context.Context, customerID, _ string) (Session, error) {
	if customerID == "" {
		return Session{}, ErrMissingCustomerID
	}
	s, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: customerID,
	})
	if err != nil {
		return Session{}, errors.Join(ErrProvider, err)
	}
	if s.URLs.General.Overview == "" {
		return Session{}, ErrNoPortalURL
	}
	return Session{ID: s.ID, URL: s.URLs.General.Overview}, nil
}

// ChangePlan is not supported; users change plans in the Paddle portal.
func (p *PaddleProvider) ChangePlan(context.Context, ChangePlanRequest) error {
	return ErrNotSupported
}

// CancelSubscription cancels now or at the next billing period.
func (p *PaddleProvider) CancelSubscription(ctx context.Context, req CancelRequest) (CancelResult, error) {
	if req.SubscriptionID == "" {
		return CancelResult{}, ErrMissingSubscriptionID
	}
	effective := paddle.EffectiveFromNextBillingPeriod
	if req.Mode == CancelImmediately {
		effective = paddle.EffectiveFromImmediately
	}
	sub, err := p.client.SubscriptionsClient.CancelSubscription(ctx, &paddle.CancelSubscriptionRequest{
		SubscriptionID: req.SubscriptionID,
		EffectiveFrom:  paddle.PtrTo(effective),
	})
	if err != nil {
		if req.Mode == CancelImmediately && p.alreadyCanceled(ctx, req.SubscriptionID) {
			return CancelResult{Canceled: true}, errors.Join(ErrAlreadyCanceled, err)
		}
		return CancelResult{}, errors.Join(ErrProvider, err)
	}
	if req.Mode == CancelImmediately {
		return CancelResult{Canceled: true}, nil
	}
	var res CancelResult
	if sub.ScheduledChange != nil {
		res.CancelAt = parseTime(sub.ScheduledChange.EffectiveAt)
	}
	return res, nil
}

func (p *PaddleProvider) alreadyCanceled(ctx context.Context, id string) bool {
	sub, err := p.client.SubscriptionsClient.GetSubscription(ctx, &paddle.GetSubscriptionRequest{SubscriptionID: id})
	return err == nil && sub.Status == paddle.SubscriptionStatusCanceled
}

// RetryPayment is not supported; Paddle retries on its own schedule.
func (p *PaddleProvider) RetryPayment(context.Context, string, string) (PaymentResult, error) {
	return PaymentResult{}, ErrNotSupported
}

type paddleEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddleItem struct {
	PriceID string `json:"price_id"`
	Price   *struct {
		ID string `json:"id"`
	} `json:"price"`
}

func (i paddleItem) priceID() string {
	if i.Price != nil && i.Price.ID != "" {
		return i.Price.ID
	}
	return i.PriceID
}

type paddleData struct {
	ID             string           `json:"id"`
	Status         string           `json:"status"`
	CustomerID     string           `json:"customer_id"`
	SubscriptionID string           `json:"subscription_id"`
	Origin         string           `json:"origin"`
	CurrencyCode   string           `json:"currency_code"`
	CustomData     map[string]any   `json:"custom_data"`
	Items          []paddleItem     `json:"items"`
	CanceledAt     string           `json:"canceled_at"`
	BillingPeriod  *paddlePeriod    `json:"current_billing_period"`
	Scheduled      *paddleScheduled `json:"scheduled_change"`
	Details        *paddleTxDetails `json:"details"`
	Payments       []paddlePayment  `json:"payments"`
}

type paddlePeriod struct {
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

type paddleScheduled struct {
	Action      string `json:"action"`
	EffectiveAt string `json:"effective_at"`
}

type paddleTxDetails struct {
	Totals struct {
		GrandTotal string `json:"grand_total"`
	} `json:"totals"`
}

type paddlePayment struct {
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
}

func paddleKind(eventType string, d paddleData) (subscription.EventKind, bool) {
	switch eventType {
	case "transaction.completed":
		if d.Origin == "web" && customString(d.CustomData, "user_id") != "" {
			return subscription.EventCheckoutCompleted, true
		}
		return subscription.EventChargeSucceeded, true
	case "transaction.payment_failed":
		return subscription.EventChargeFailed, true
	case "transaction.billed":
		return subscription.EventInvoiceFinalized, true
	case "subscription.created", "subscription.updated", "subscription.activated",
		"subscription.resumed", "subscription.past_due", "subscription.paused":
		return subscription.EventSubscriptionUpdated, true
	case "subscription.canceled":
		return subscription.EventSubscriptionCanceled, true
	}
	return "", false
}

// ParseWebhook verifies the Paddle-Signature header and normalizes the event.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (subscription.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhooks/paddle", bytes.NewReader(payload))
	if err != nil {
		return subscription.Event{}, errors.Join(ErrMalformedEvent, err)
	}
	req.Header.Set(PaddleSignatureHeader, header.Get(PaddleSignatureHeader))
	ok, err := p.verifier.Verify(req)
	if err != nil || !ok {
		return subscription.Event{}, errors.Join(ErrWebhookVerificationFailed, err)
	}

	var env paddleEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return subscription.Event{}, errors.Join(ErrMalformedEvent, err)
	}
	ev := subscription.Event{ID: env.EventID, Provider: p.Name(), RawType: env.EventType}
	if t := parseTime(env.OccurredAt); t != nil {
		ev.OccurredAt = *t
	}

	var d paddleData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return ev, errors.Join(ErrMalformedEvent, err)
	}
	kind, ok := paddleKind(env.EventType, d)
	if !ok {
		return ev, fmt.Errorf("%w: %s", ErrUnsupportedEvent, env.EventType)
	}
	ev.Kind = kind
	ev.CustomerID = d.CustomerID
	if uid, err := uuid.Parse(customString(d.CustomData, "user_id")); err == nil {
		ev.UserID = uid
	}
	if len(d.Items) > 0 {
		ev.PriceID = d.Items[0].priceID()
		ev.PlanID, ev.Interval = p.catalog.PlanFor(ev.PriceID)
	}

	if strings.HasPrefix(env.EventType, "subscription.") {
		ev.SubscriptionID = d.ID
		ev.Status = subscription.NormalizeBillingStatus(d.Status)
		ev.CanceledAt = parseTime(d.CanceledAt)
		if d.BillingPeriod != nil {
			ev.PeriodStart = parseTime(d.BillingPeriod.StartsAt)
			ev.PeriodEnd = parseTime(d.BillingPeriod.EndsAt)
		}
		if d.Scheduled != nil && d.Scheduled.Action == "cancel" {
			ev.CancelAt = parseTime(d.Scheduled.EffectiveAt)
		}
		return ev, nil
	}

	ev.SubscriptionID = d.SubscriptionID
	inv := &subscription.Invoice{ID: d.ID, Currency: d.CurrencyCode, AttemptCount: len(d.Payments)}
	if d.Details != nil {
		inv.AmountDue, _ = strconv.ParseInt(d.Details.Totals.GrandTotal, 10, 64)
	}
	for _, pay := range d.Payments {
		if pay.ErrorCode != "" {
			inv.FailureReason = pay.ErrorCode
			break
		}
	}
	ev.Invoice = inv
	if kind == subscription.EventCheckoutCompleted {
		ev.Status = subscription.BillingActive
		if ev.UserID == uuid.Nil {
			return ev, fmt.Errorf("%w: checkout without user reference", ErrMalformedEvent)
		}
	}
	return ev, nil
}

func customString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
