package subscription

import (
	"bytes"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store. Transactions are serialized and their
// writes become visible only when fn returns nil.
type MemoryStore struct {
	mu       sync.Mutex
	subs     map[uuid.UUID]*Subscription
	events   map[string]ProcessedEvent
	failures map[string]PaymentFailure
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:     make(map[uuid.UUID]*Subscription),
		events:   make(map[string]ProcessedEvent),
		failures: make(map[string]PaymentFailure),
	}
}

// Put stores a copy of sub, replacing any existing record.
func (m *MemoryStore) Put(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.UserID] = sub.Clone()
}

func (m *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (m *MemoryStore) ListPastDue(_ context.Context) ([]*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Subscription
	for _, sub := range m.subs {
		if sub.BillingStatus == BillingPastDue {
			out = append(out, sub.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *Subscription) int {
		return bytes.Compare(a.UserID[:], b.UserID[:])
	})
	return out, nil
}

// PaymentFailures returns the failures recorded for userID.
func (m *MemoryStore) PaymentFailures(userID uuid.UUID) []PaymentFailure {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PaymentFailure
	for _, f := range m.failures {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b PaymentFailure) int { return a.FirstFailedAt.Compare(b.FirstFailedAt) })
	return out
}

// EventCount returns the number of recorded events.
func (m *MemoryStore) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		base:     m,
		subs:     make(map[uuid.UUID]*Subscription),
		events:   make(map[string]ProcessedEvent),
		failures: make(map[string]PaymentFailure),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	maps.Copy(m.subs, tx.subs)
	maps.Copy(m.events, tx.events)
	maps.Copy(m.failures, tx.failures)
	return nil
}

// memoryTx stages writes; the owning store's mutex is held while it lives.
type memoryTx struct {
	base     *MemoryStore
	subs     map[uuid.UUID]*Subscription
	events   map[string]ProcessedEvent
	failures map[string]PaymentFailure
}

func (t *memoryTx) current(userID uuid.UUID) (*Subscription, bool) {
	if sub, ok := t.subs[userID]; ok {
		return sub, true
	}
	sub, ok := t.base.subs[userID]
	return sub, ok
}

func (t *memoryTx) all() []*Subscription {
	merged := maps.Clone(t.base.subs)
	maps.Copy(merged, t.subs)
	return slices.Collect(maps.Values(merged))
}

func (t *memoryTx) Get(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, ok := t.current(userID)
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (t *memoryTx) FindByCustomer(_ context.Context, customerID string) (*Subscription, error) {
	for _, sub := range t.all() {
		if sub.CustomerID == customerID {
			return sub.Clone(), nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (t *memoryTx) FindByProviderSubscription(_ context.Context, subscriptionID string) (*Subscription, error) {
	for _, sub := range t.all() {
		if sub.ProviderSubscriptionID == subscriptionID {
			return sub.Clone(), nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (t *memoryTx) Create(_ context.Context, sub *Subscription) error {
	if _, ok := t.current(sub.UserID); ok {
		return ErrVersionConflict
	}
	sub.Version = 1
	t.subs[sub.UserID] = sub.Clone()
	return nil
}

func (t *memoryTx) Update(_ context.Context, sub *Subscription) error {
	cur, ok := t.current(sub.UserID)
	if !ok {
		return ErrSubscriptionNotFound
	}
	if cur.Version != sub.Version {
		return ErrVersionConflict
	}
	sub.Version++
	t.subs[sub.UserID] = sub.Clone()
	return nil
}

func (t *memoryTx) RecordEvent(_ context.Context, ev ProcessedEvent) error {
	key := ev.Provider + "/" + ev.EventID
	if _, ok := t.base.events[key]; ok {
		return ErrDuplicateEvent
	}
	if _, ok := t.events[key]; ok {
		return ErrDuplicateEvent
	}
	t.events[key] = ev
	return nil
}

func (t *memoryTx) failure(invoiceID string) (PaymentFailure, bool) {
	if f, ok := t.failures[invoiceID]; ok {
		return f, true
	}
	f, ok := t.base.failures[invoiceID]
	return f, ok
}

func (t *memoryTx) UpsertPaymentFailure(_ context.Context, f PaymentFailure) error {
	if cur, ok := t.failure(f.InvoiceID); ok {
		cur.AttemptCount = max(cur.AttemptCount, f.AttemptCount)
		cur.FailureReason = f.FailureReason
		cur.LastFailedAt = f.LastFailedAt
		cur.Status = f.Status
		cur.ResolvedAt = nil
		t.failures[f.InvoiceID] = cur
		return nil
	}
	t.failures[f.InvoiceID] = f
	return nil
}

func (t *memoryTx) MarkPaymentFailures(_ context.Context, userID uuid.UUID, status FailureStatus, at time.Time) error {
	merged := maps.Clone(t.base.failures)
	maps.Copy(merged, t.failures)
	for id, f := range merged {
		if f.UserID != userID || f.ResolvedAt != nil {
			continue
		}
		f.Status = status
		if status == FailureResolved || status == FailureCanceled {
			f.ResolvedAt = timePtr(at)
		}
		t.failures[id] = f
	}
	return nil
}
