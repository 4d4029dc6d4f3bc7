package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/internal/api"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/internal/store"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/admin"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/auth"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/billing"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/dunning"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/entitlement"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/ratelimiter"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

const (
	jwtSecret  = "test-signing-secret-0123456789abcdef"
	cronSecret = "cron-secret"
	appURL     = "https://app.example.com"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "stripe" }

func (m *mockProvider) CreateCheckout(ctx context.Context, req billing.CheckoutRequest) (billing.Session, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(billing.Session), args.Error(1)
}

func (m *mockProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (billing.Session, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.Get(0).(billing.Session), args.Error(1)
}

func (m *mockProvider) ChangePlan(ctx context.Context, req billing.ChangePlanRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockProvider) CancelSubscription(ctx context.Context, req billing.CancelRequest) (billing.CancelResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(billing.CancelResult), args.Error(1)
}

func (m *mockProvider) RetryPayment(ctx context.Context, customerID, invoiceID string) (billing.PaymentResult, error) {
	args := m.Called(ctx, customerID, invoiceID)
	return args.Get(0).(billing.PaymentResult), args.Error(1)
}

func (m *mockProvider) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (subscription.Event, error) {
	args := m.Called(ctx, payload, header.Get("Stripe-Signature"))
	return args.Get(0).(subscription.Event), args.Error(1)
}

type fakeFailures struct {
	mu     sync.Mutex
	filter store.FailureFilter
	page   store.FailurePage
}

func (f *fakeFailures) ListPaymentFailures(_ context.Context, filter store.FailureFilter) (store.FailurePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	p := f.page
	p.Page, p.Limit = filter.Page, filter.Limit
	return p, nil
}

type fakeCancellations struct {
	mu    sync.Mutex
	saved []store.CancellationReason
}

func (f *fakeCancellations) SaveCancellationReason(_ context.Context, r store.CancellationReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, r)
	return nil
}

func (f *fakeCancellations) all() []store.CancellationReason {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.CancellationReason(nil), f.saved...)
}

type fakeSweeper struct {
	rep dunning.Report
	err error
}

func (f fakeSweeper) Run(context.Context, time.Time) (dunning.Report, error) {
	return f.rep, f.err
}

// failingStore fails every transaction.
type failingStore struct {
	*subscription.MemoryStore
}

func (failingStore) WithinTx(context.Context, func(subscription.Tx) error) error {
	return errors.New("connection reset")
}

type harness struct {
	store         *subscription.MemoryStore
	svc           subscription.Service
	provider      *mockProvider
	failures      *fakeFailures
	cancellations *fakeCancellations
	adminID       uuid.UUID
	handler       http.Handler
}

type harnessOption func(*api.Deps)

func withSweeper(s api.Sweeper) harnessOption {
	return func(d *api.Deps) { d.Sweeper = s }
}

func withSubscriptionStore(st subscription.Store) harnessOption {
	return func(d *api.Deps) {
		d.Subscriptions = subscription.NewService(st, subscription.WithLogger(logger.Discard()))
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		store:         subscription.NewMemoryStore(),
		provider:      &mockProvider{},
		failures:      &fakeFailures{},
		cancellations: &fakeCancellations{},
		adminID:       uuid.New(),
	}
	h.svc = subscription.NewService(h.store, subscription.WithLogger(logger.Discard()))

	verifier, err := auth.NewVerifier(auth.Config{JWTSecret: jwtSecret, Audience: "authenticated"})
	require.NoError(t, err)

	limiterStore := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	d := api.Deps{
		Subscriptions: h.svc,
		Entitlements:  entitlement.NewService(h.store, entitlement.WithLogger(logger.Discard())),
		Provider:      h.provider,
		Catalog: plan.NewCatalog(plan.CatalogConfig{
			ProMonthly: "price_pro_m", ProYearly: "price_pro_y",
			EnterpriseMonthly: "price_ent_m", EnterpriseYearly: "price_ent_y",
		}),
		Registry:      plan.DefaultRegistry(),
		Policy:        dunning.DefaultPolicy(),
		Sweeper:       fakeSweeper{rep: dunning.Report{Processed: 2, Emails: 1}},
		Failures:      h.failures,
		Cancellations: h.cancellations,
		Admins:        admin.NewResolver(admin.Config{UserIDs: []string{h.adminID.String()}}),
		Verifier:      verifier,
		Limiter:       ratelimiter.New(limiterStore),
		AppURL:        appURL,
		CronSecret:    cronSecret,
		Logger:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	h.handler = api.NewRouter(d)
	return h
}

func token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "user@example.com",
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

type response struct {
	Code int
	Body struct {
		Data  json.RawMessage  `json:"data"`
		Meta  map[string]any   `json:"meta"`
		Error *api.ErrorDetail `json:"error"`
	}
	Header http.Header
}

func (h *harness) do(t *testing.T, method, path string, userID uuid.UUID, body any) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	return h.serve(t, req)
}

func (h *harness) serve(t *testing.T, req *http.Request) response {
	t.Helper()
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	res := response{Code: rec.Code, Header: rec.Header()}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res.Body), rec.Body.String())
	}
	return res
}

func (r response) data(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body.Data, v))
}

func (r response) errorCode() string {
	if r.Body.Error == nil {
		return ""
	}
	return r.Body.Error.Code
}

// put stores a record for a fresh user and returns its id.
func (h *harness) put(mut func(*subscription.Subscription)) uuid.UUID {
	id := uuid.New()
	sub := subscription.New(id, time.Now().UTC())
	if mut != nil {
		mut(sub)
	}
	h.store.Put(sub)
	return id
}

func activePro(sub *subscription.Subscription) {
	sub.PlanID = plan.Pro
	sub.Interval = plan.Monthly
	sub.PriceID = "price_pro_m"
	sub.BillingStatus = subscription.BillingActive
	sub.CustomerID = "cus_" + sub.UserID.String()[:8]
	sub.ProviderSubscriptionID = "sub_" + sub.UserID.String()[:8]
}
