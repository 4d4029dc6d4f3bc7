package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/internal/store"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/audit"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/pg"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

// testStore connects to PG_TEST_URL and applies migrations. Tests are
// skipped when the variable is unset.
func testStore(t *testing.T) (*store.Store, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("PG_TEST_URL")
	if url == "" {
		t.Skip("PG_TEST_URL not set")
	}
	ctx := context.Background()
	cfg := pg.Config{ConnectionString: url, MaxOpenConns: 4, RetryAttempts: 1, MigrationsTable: "schema_migrations"}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, store.Migrate(ctx, pool, cfg, logger.Discard()))
	return store.New(pool), pool
}

func TestStore_SubscriptionLifecycle(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	userID := uuid.New()
	customer := "cus_" + userID.String()[:8]

	err := s.WithinTx(ctx, func(tx subscription.Tx) error {
		sub := subscription.New(userID, now)
		sub.CustomerID = customer
		sub.PlanID = plan.Pro
		sub.BillingStatus = subscription.BillingActive
		return tx.Create(ctx, sub)
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, plan.Pro, got.PlanID)
	assert.Equal(t, int64(1), got.Version)

	t.Run("version conflict", func(t *testing.T) {
		stale := got.Clone()
		err := s.WithinTx(ctx, func(tx subscription.Tx) error {
			cur, err := tx.FindByCustomer(ctx, customer)
			if err != nil {
				return err
			}
			cur.BillingStatus = subscription.BillingPastDue
			cur.FailureFirstSeenAt = &now
			return tx.Update(ctx, cur)
		})
		require.NoError(t, err)

		err = s.WithinTx(ctx, func(tx subscription.Tx) error {
			return tx.Update(ctx, stale)
		})
		assert.ErrorIs(t, err, subscription.ErrVersionConflict)
	})

	t.Run("past due listing", func(t *testing.T) {
		subs, err := s.ListPastDue(ctx)
		require.NoError(t, err)
		var found bool
		for _, sub := range subs {
			if sub.UserID == userID {
				found = true
				require.NotNil(t, sub.FailureFirstSeenAt)
				assert.True(t, now.Equal(*sub.FailureFirstSeenAt))
			}
		}
		assert.True(t, found)
	})

	t.Run("duplicate event", func(t *testing.T) {
		ev := subscription.ProcessedEvent{Provider: "stripe", EventID: "evt_" + uuid.NewString(), Kind: subscription.EventChargeFailed, ReceivedAt: now}
		require.NoError(t, s.WithinTx(ctx, func(tx subscription.Tx) error { return tx.RecordEvent(ctx, ev) }))
		err := s.WithinTx(ctx, func(tx subscription.Tx) error { return tx.RecordEvent(ctx, ev) })
		assert.ErrorIs(t, err, subscription.ErrDuplicateEvent)
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		other := uuid.New()
		err := s.WithinTx(ctx, func(tx subscription.Tx) error {
			require.NoError(t, tx.Create(ctx, subscription.New(other, now)))
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		_, err = s.Get(ctx, other)
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})
}

func TestStore_PaymentFailures(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	userID := uuid.New()
	invoice := "in_" + uuid.NewString()

	upsert := func(attempt int) {
		require.NoError(t, s.WithinTx(ctx, func(tx subscription.Tx) error {
			return tx.UpsertPaymentFailure(ctx, subscription.PaymentFailure{
				InvoiceID: invoice, UserID: userID, AttemptCount: attempt, FailureReason: "card_declined",
				Status: subscription.FailureActive, FirstFailedAt: now, LastFailedAt: now.Add(time.Duration(attempt) * time.Hour),
			})
		}))
	}
	upsert(1)
	upsert(2)

	page, err := s.ListPaymentFailures(ctx, store.FailureFilter{UserID: userID, Status: "active"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, 2, page.Items[0].AttemptCount)

	require.NoError(t, s.WithinTx(ctx, func(tx subscription.Tx) error {
		return tx.MarkPaymentFailures(ctx, userID, subscription.FailureResolved, now)
	}))
	page, err = s.ListPaymentFailures(ctx, store.FailureFilter{UserID: userID, Status: "resolved", Limit: 500})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.NotNil(t, page.Items[0].ResolvedAt)
	assert.Equal(t, store.MaxFailureLimit, page.Limit)

	_, err = s.ListPaymentFailures(ctx, store.FailureFilter{Status: "bogus"})
	assert.ErrorIs(t, err, store.ErrInvalidFilter)
}

func TestStore_ProfilesAndAudit(t *testing.T) {
	s, pool := testStore(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := s.Recipient(ctx, id)
	assert.ErrorIs(t, err, store.ErrProfileNotFound)
	admin, err := s.IsAdmin(ctx, id)
	require.NoError(t, err)
	assert.False(t, admin)

	_, err = pool.Exec(ctx, `INSERT INTO profiles (id, email, name, is_admin) VALUES ($1, 'a@example.com', 'Ann', TRUE)`, id)
	require.NoError(t, err)

	r, err := s.Recipient(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", r.Email)
	admin, err = s.IsAdmin(ctx, id)
	require.NoError(t, err)
	assert.True(t, admin)

	require.NoError(t, s.SaveCancellationReason(ctx, store.CancellationReason{UserID: id, Category: "too_expensive", PlanAtCancellation: "pro"}))

	events := []audit.Event{
		{ID: uuid.NewString(), UserID: id.String(), Action: "subscription.cancel", Result: audit.ResultSuccess, CreatedAt: time.Now().UTC(), Metadata: map[string]any{"from": "active"}},
		{ID: uuid.NewString(), UserID: id.String(), Action: "subscription.suspend", Result: audit.ResultFailure, Error: "boom", CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, s.StoreBatch(ctx, events))

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_events WHERE user_id = $1`, id.String()).Scan(&n))
	assert.Equal(t, 2, n)
}
