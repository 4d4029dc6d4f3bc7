package admin

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
)

// Source tells where an admin decision came from.
type Source string

const (
	SourceProfile   Source = "profile"
	SourceAllowlist Source = "allowlist"
	SourceNone      Source = "none"
)

// Decision is the outcome of Resolve.
type Decision struct {
	Admin  bool   `json:"admin"`
	Source Source `json:"source"`
}

// ProfileLookup reads the admin flag of a user profile.
type ProfileLookup interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Resolver combines the profile flag and the allowlist.
type Resolver struct {
	profiles  ProfileLookup
	allowlist map[uuid.UUID]struct{}
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithProfiles sets the profile lookup. Without it only the allowlist counts.
func WithProfiles(p ProfileLookup) Option {
	return func(r *Resolver) {
		r.profiles = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config, opts ...Option) *Resolver {
	r := &Resolver{
		allowlist: cfg.allowlist(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.Component("admin"))
	return r
}

// Resolve reports whether userID is an admin. Profile lookup errors are
// logged and fall through to the allowlist, so the error is always nil
// today; it is kept for lookups that must fail closed.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (Decision, error) {
	if userID == uuid.Nil {
		return Decision{Source: SourceNone}, nil
	}
	if r.profiles != nil {
		ok, err := r.profiles.IsAdmin(ctx, userID)
		switch {
		case err != nil:
			r.logger.WarnContext(ctx, "admin profile lookup failed",
				logger.UserID(userID), logger.Error(err))
		case ok:
			return Decision{Admin: true, Source: SourceProfile}, nil
		}
	}
	if _, ok := r.allowlist[userID]; ok {
		return Decision{Admin: true, Source: SourceAllowlist}, nil
	}
	return Decision{Source: SourceNone}, nil
}
