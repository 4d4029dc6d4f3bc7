package auth

import (
	"context"

	"github.com/google/uuid"
)

type claimsKey struct{}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the verified claims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// UserIDFromContext returns the authenticated user id, or uuid.Nil.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return uuid.Nil
	}
	id, err := c.UserID()
	if err != nil {
		return uuid.Nil
	}
	return id
}

// UserIDExtractor adapts UserIDFromContext for loggers and audit writers.
func UserIDExtractor(ctx context.Context) (any, bool) {
	id := UserIDFromContext(ctx)
	if id == uuid.Nil {
		return nil, false
	}
	return id.String(), true
}
