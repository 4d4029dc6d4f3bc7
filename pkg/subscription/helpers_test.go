package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/notify"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

var t0 = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

type sentNotice struct {
	userID uuid.UUID
	kind   notify.Kind
	data   notify.Data
}

// fakeNotifier records every notification and can be told to fail.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, kind notify.Kind, data notify.Data) notify.DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotice{userID: userID, kind: kind, data: data})
	if f.err != nil {
		return notify.DeliveryResult{Kind: kind, Err: f.err}
	}
	return notify.DeliveryResult{Kind: kind, Delivered: true, MessageID: "msg"}
}

func (f *fakeNotifier) count(kind notify.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeNotifier) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (f *fakeAlerter) Alert(_ context.Context, a notify.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeAlerter) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, a := range f.alerts {
		out = append(out, a.Title)
	}
	return out
}

// faultyStore injects errors into Tx.Update, one per call, in order.
type faultyStore struct {
	*subscription.MemoryStore
	updateErrs []error
	updates    int
}

func (f *faultyStore) WithinTx(ctx context.Context, fn func(tx subscription.Tx) error) error {
	return f.MemoryStore.WithinTx(ctx, func(tx subscription.Tx) error {
		return fn(&faultyTx{Tx: tx, store: f})
	})
}

type faultyTx struct {
	subscription.Tx
	store *faultyStore
}

func (t *faultyTx) Update(ctx context.Context, sub *subscription.Subscription) error {
	t.store.updates++
	if len(t.store.updateErrs) > 0 {
		err := t.store.updateErrs[0]
		t.store.updateErrs = t.store.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	return t.Tx.Update(ctx, sub)
}

var errDiskFull = errors.New("disk full")

type harness struct {
	store    *subscription.MemoryStore
	notifier *fakeNotifier
	alerter  *fakeAlerter
	svc      subscription.Service
}

func newHarness(t *testing.T, store subscription.Store, mem *subscription.MemoryStore) *harness {
	t.Helper()
	h := &harness{store: mem, notifier: &fakeNotifier{}, alerter: &fakeAlerter{}}
	h.svc = subscription.NewService(store,
		subscription.WithNotifier(h.notifier),
		subscription.WithAlerter(h.alerter),
		subscription.WithLogger(logger.Discard()),
		subscription.WithClock(func() time.Time { return t0 }),
	)
	return h
}

func newMemHarness(t *testing.T) *harness {
	mem := subscription.NewMemoryStore()
	return newHarness(t, mem, mem)
}

func activeSub() *subscription.Subscription {
	s := subscription.New(uuid.New(), t0.Add(-60*24*time.Hour))
	s.PlanID = plan.Pro
	s.BillingStatus = subscription.BillingActive
	s.CustomerID = "cus_" + s.UserID.String()[:8]
	s.ProviderSubscriptionID = "sub_" + s.UserID.String()[:8]
	s.PriceID = "price_pro_monthly"
	end := t0.Add(20 * 24 * time.Hour)
	s.CurrentPeriodEnd = &end
	return s
}

func pastDueSub(firstSeen time.Time) *subscription.Subscription {
	s := activeSub()
	s.BillingStatus = subscription.BillingPastDue
	s.FailureFirstSeenAt = &firstSeen
	return s
}

func chargeFailed(id string, sub *subscription.Subscription, at time.Time) subscription.Event {
	return subscription.Event{
		ID:             id,
		Provider:       "stripe",
		Kind:           subscription.EventChargeFailed,
		OccurredAt:     at,
		CustomerID:     sub.CustomerID,
		SubscriptionID: sub.ProviderSubscriptionID,
		Invoice:        &subscription.Invoice{ID: "in_" + id, AttemptCount: 1, FailureReason: "card_declined", AmountDue: 2980, Currency: "jpy"},
	}
}

func chargeSucceeded(id string, sub *subscription.Subscription, at time.Time) subscription.Event {
	return subscription.Event{
		ID:             id,
		Provider:       "stripe",
		Kind:           subscription.EventChargeSucceeded,
		OccurredAt:     at,
		CustomerID:     sub.CustomerID,
		SubscriptionID: sub.ProviderSubscriptionID,
		Invoice:        &subscription.Invoice{ID: "in_paid_" + id},
	}
}
