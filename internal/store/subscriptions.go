package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/pg"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

var _ subscription.Store = (*Store)(nil)

const subscriptionColumns = `user_id, plan_id, billing_interval, billing_status, app_status,
	customer_id, provider_subscription_id, price_id,
	current_period_start, current_period_end, cancel_at, canceled_at, trial_end,
	failure_first_seen_at, last_paid_at, provider_synced_at,
	dunning_stage, suspended_at, suspend_reason, version, created_at, updated_at`

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		s                                  subscription.Subscription
		planID, interval, billing, app, st string
	)
	err := row.Scan(
		&s.UserID, &planID, &interval, &billing, &app,
		&s.CustomerID, &s.ProviderSubscriptionID, &s.PriceID,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CancelAt, &s.CanceledAt, &s.TrialEnd,
		&s.FailureFirstSeenAt, &s.LastPaidAt, &s.ProviderSyncedAt,
		&st, &s.SuspendedAt, &s.SuspendReason, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	s.PlanID = plan.ID(planID)
	s.Interval = plan.Interval(interval)
	s.BillingStatus = subscription.BillingStatus(billing)
	s.AppStatus = subscription.AppStatus(app)
	s.DunningStage = subscription.DunningStage(st)
	return &s, nil
}

func getSubscription(ctx context.Context, q querier, where string, arg any) (*subscription.Subscription, error) {
	return scanSubscription(q.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE `+where, arg))
}

// Get implements subscription.Reader.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	return getSubscription(ctx, s.pool, "user_id = $1", userID)
}

// ListPastDue implements subscription.Store.
func (s *Store) ListPastDue(ctx context.Context) ([]*subscription.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE billing_status = $1 ORDER BY user_id`,
		string(subscription.BillingPastDue))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// WithinTx implements subscription.Store. Serialization failures surface as
// subscription.ErrVersionConflict so the caller retries.
func (s *Store) WithinTx(ctx context.Context, fn func(tx subscription.Tx) error) error {
	err := pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&txStore{q: tx})
	})
	if pg.IsSerializationError(err) {
		return errors.Join(subscription.ErrVersionConflict, err)
	}
	return err
}

type txStore struct {
	q querier
}

func (t *txStore) Get(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	return getSubscription(ctx, t.q, "user_id = $1 FOR UPDATE", userID)
}

func (t *txStore) FindByCustomer(ctx context.Context, customerID string) (*subscription.Subscription, error) {
	if customerID == "" {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return getSubscription(ctx, t.q, "customer_id = $1 FOR UPDATE", customerID)
}

func (t *txStore) FindByProviderSubscription(ctx context.Context, subscriptionID string) (*subscription.Subscription, error) {
	if subscriptionID == "" {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return getSubscription(ctx, t.q,
		"provider_subscription_id = $1 ORDER BY updated_at DESC LIMIT 1 FOR UPDATE", subscriptionID)
}

func (t *txStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	_, err := t.q.Exec(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,1,$20,$21)`,
		sub.UserID, string(sub.PlanID), string(sub.Interval), string(sub.BillingStatus), string(sub.AppStatus),
		sub.CustomerID, sub.ProviderSubscriptionID, sub.PriceID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAt, sub.CanceledAt, sub.TrialEnd,
		sub.FailureFirstSeenAt, sub.LastPaidAt, sub.ProviderSyncedAt,
		string(sub.DunningStage), sub.SuspendedAt, sub.SuspendReason, sub.CreatedAt, sub.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(subscription.ErrVersionConflict, err)
	}
	if err != nil {
		return err
	}
	sub.Version = 1
	return nil
}

func (t *txStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	tag, err := t.q.Exec(ctx, `UPDATE subscriptions SET
		plan_id = $3, billing_interval = $4, billing_status = $5, app_status = $6,
		customer_id = $7, provider_subscription_id = $8, price_id = $9,
		current_period_start = $10, current_period_end = $11, cancel_at = $12, canceled_at = $13, trial_end = $14,
		failure_first_seen_at = $15, last_paid_at = $16, provider_synced_at = $17,
		dunning_stage = $18, suspended_at = $19, suspend_reason = $20,
		updated_at = $21, version = version + 1
		WHERE user_id = $1 AND version = $2`,
		sub.UserID, sub.Version,
		string(sub.PlanID), string(sub.Interval), string(sub.BillingStatus), string(sub.AppStatus),
		sub.CustomerID, sub.ProviderSubscriptionID, sub.PriceID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAt, sub.CanceledAt, sub.TrialEnd,
		sub.FailureFirstSeenAt, sub.LastPaidAt, sub.ProviderSyncedAt,
		string(sub.DunningStage), sub.SuspendedAt, sub.SuspendReason, sub.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(subscription.ErrVersionConflict, err)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id = $1)`, sub.UserID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return subscription.ErrSubscriptionNotFound
		}
		return subscription.ErrVersionConflict
	}
	sub.Version++
	return nil
}

func (t *txStore) RecordEvent(ctx context.Context, ev subscription.ProcessedEvent) error {
	tag, err := t.q.Exec(ctx, `INSERT INTO processed_events (provider, event_id, kind, received_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT (provider, event_id) DO NOTHING`,
		ev.Provider, ev.EventID, string(ev.Kind), ev.ReceivedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrDuplicateEvent
	}
	return nil
}
