package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CancellationReason is the feedback a user left when canceling.
type CancellationReason struct {
	ID                     uuid.UUID `json:"id"`
	UserID                 uuid.UUID `json:"user_id"`
	ProviderSubscriptionID string    `json:"provider_subscription_id"`
	Category               string    `json:"category"`
	Detail                 string    `json:"detail,omitempty"`
	PlanAtCancellation     string    `json:"plan_at_cancellation"`
	CreatedAt              time.Time `json:"created_at"`
}

// SaveCancellationReason stores r, assigning ID and CreatedAt when empty.
func (s *Store) SaveCancellationReason(ctx context.Context, r CancellationReason) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO cancellation_reasons
		(id, user_id, provider_subscription_id, category, detail, plan_at_cancellation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.UserID, r.ProviderSubscriptionID, r.Category, r.Detail, r.PlanAtCancellation, r.CreatedAt)
	return err
}
