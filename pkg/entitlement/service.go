package entitlement

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

// Service answers entitlement queries for stored subscriptions.
type Service struct {
	reader    subscription.Reader
	evaluator *Evaluator
	registry  *plan.Registry
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRegistry sets the plan registry. Defaults to plan.DefaultRegistry.
func WithRegistry(r *plan.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. Panics if reader is nil.
func NewService(reader subscription.Reader, opts ...Option) *Service {
	if reader == nil {
		panic("entitlement: subscription reader is required")
	}
	s := &Service{
		reader:   reader,
		registry: plan.DefaultRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.evaluator = NewEvaluator(s.registry)
	return s
}

// Check loads the user's record and evaluates it. A missing record counts as
// the free plan. Read failures are returned.
func (s *Service) Check(ctx context.Context, userID uuid.UUID, required plan.ID) (Result, error) {
	sub, err := s.load(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	return s.evaluator.CheckAccess(sub, required), nil
}

// CheckOrDeny is like Check but turns read failures into a denial with
// ReasonNoSubscription.
func (s *Service) CheckOrDeny(ctx context.Context, userID uuid.UUID, required plan.ID) Result {
	res, err := s.Check(ctx, userID, required)
	if err != nil {
		s.logger.ErrorContext(ctx, "entitlement check failed, denying",
			logger.UserID(userID),
			logger.PlanID(required),
			logger.Error(err),
		)
		return s.evaluator.Deny(required, ReasonNoSubscription)
	}
	return res
}

// Limits returns the usage limits of the user's effective plan. Suspended
// users get the free plan limits.
func (s *Service) Limits(ctx context.Context, userID uuid.UUID) (plan.Limits, error) {
	sub, err := s.load(ctx, userID)
	if err != nil {
		return plan.Limits{}, err
	}
	if sub == nil || sub.IsSuspended() {
		return s.registry.Resolve(string(plan.Free)).Limits, nil
	}
	return s.registry.Resolve(string(sub.PlanID)).Limits, nil
}

func (s *Service) load(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := s.reader.Get(ctx, userID)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}
