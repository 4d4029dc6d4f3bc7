package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/notify"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/pg"
)

// Recipient implements notify.RecipientResolver.
func (s *Store) Recipient(ctx context.Context, userID uuid.UUID) (notify.Recipient, error) {
	var r notify.Recipient
	err := s.pool.QueryRow(ctx, `SELECT email, name FROM profiles WHERE id = $1`, userID).Scan(&r.Email, &r.Name)
	if pg.IsNotFoundError(err) {
		return notify.Recipient{}, ErrProfileNotFound
	}
	return r, err
}

// IsAdmin implements admin.ProfileLookup. A missing profile is not an admin.
func (s *Store) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT is_admin FROM profiles WHERE id = $1`, userID).Scan(&ok)
	if pg.IsNotFoundError(err) {
		return false, nil
	}
	return ok, err
}
