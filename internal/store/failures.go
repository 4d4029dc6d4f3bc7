package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

const failureColumns = `invoice_id, user_id, provider_subscription_id, attempt_count, failure_reason,
	amount_due, currency, dunning_status, first_failed_at, last_failed_at, resolved_at`

func (t *txStore) UpsertPaymentFailure(ctx context.Context, f subscription.PaymentFailure) error {
	_, err := t.q.Exec(ctx, `INSERT INTO payment_failures (`+failureColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULL)
		ON CONFLICT (invoice_id) DO UPDATE SET
			attempt_count = GREATEST(payment_failures.attempt_count, EXCLUDED.attempt_count),
			failure_reason = EXCLUDED.failure_reason,
			last_failed_at = EXCLUDED.last_failed_at,
			dunning_status = EXCLUDED.dunning_status,
			resolved_at = NULL`,
		f.InvoiceID, f.UserID, f.ProviderSubscriptionID, f.AttemptCount, f.FailureReason,
		f.AmountDue, f.Currency, string(f.Status), f.FirstFailedAt, f.LastFailedAt,
	)
	return err
}

func (t *txStore) MarkPaymentFailures(ctx context.Context, userID uuid.UUID, status subscription.FailureStatus, at time.Time) error {
	closes := status == subscription.FailureResolved || status == subscription.FailureCanceled
	_, err := t.q.Exec(ctx, `UPDATE payment_failures
		SET dunning_status = $2, resolved_at = CASE WHEN $3 THEN $4::timestamptz ELSE resolved_at END
		WHERE user_id = $1 AND resolved_at IS NULL`,
		userID, string(status), closes, at)
	return err
}

// FailureFilter selects payment failures. Status "all" or empty matches
// every status.
type FailureFilter struct {
	UserID uuid.UUID
	Status string
	Page   int
	Limit  int
}

// MaxFailureLimit caps FailureFilter.Limit.
const MaxFailureLimit = 100

func (f FailureFilter) normalize() (FailureFilter, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit <= 0:
		f.Limit = 20
	case f.Limit > MaxFailureLimit:
		f.Limit = MaxFailureLimit
	}
	switch f.Status {
	case "", "all":
		f.Status = ""
	case string(subscription.FailureActive), string(subscription.FailureSuspended),
		string(subscription.FailureResolved), string(subscription.FailureCanceled):
	default:
		return f, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, f.Status)
	}
	return f, nil
}

// FailurePage is one page of payment failures.
type FailurePage struct {
	Items []subscription.PaymentFailure `json:"items"`
	Total int                           `json:"total"`
	Page  int                           `json:"page"`
	Limit int                           `json:"limit"`
}

// ListPaymentFailures returns failures newest first.
func (s *Store) ListPaymentFailures(ctx context.Context, filter FailureFilter) (FailurePage, error) {
	f, err := filter.normalize()
	if err != nil {
		return FailurePage{}, err
	}

	var (
		conds []string
		args  []any
	)
	if f.UserID != uuid.Nil {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("dunning_status = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	page := FailurePage{Page: f.Page, Limit: f.Limit, Items: []subscription.PaymentFailure{}}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payment_failures`+where, args...).Scan(&page.Total); err != nil {
		return FailurePage{}, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM payment_failures%s
		ORDER BY last_failed_at DESC, invoice_id LIMIT $%d OFFSET $%d`,
		failureColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return FailurePage{}, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (subscription.PaymentFailure, error) {
		var (
			pf     subscription.PaymentFailure
			status string
		)
		err := row.Scan(&pf.InvoiceID, &pf.UserID, &pf.ProviderSubscriptionID, &pf.AttemptCount,
			&pf.FailureReason, &pf.AmountDue, &pf.Currency, &status,
			&pf.FirstFailedAt, &pf.LastFailedAt, &pf.ResolvedAt)
		pf.Status = subscription.FailureStatus(status)
		return pf, err
	})
	if err != nil {
		return FailurePage{}, err
	}
	page.Items = append(page.Items, items...)
	return page, nil
}
