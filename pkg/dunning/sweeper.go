package dunning

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/billing"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/notify"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/redis"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

const lockKey = "dunning:sweep"

// Locker guards a sweep against concurrent runs. Acquire returns
// redis.ErrLockHeld when another owner holds key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Canceler cancels subscriptions at the processor.
type Canceler interface {
	CancelSubscription(ctx context.Context, req billing.CancelRequest) (billing.CancelResult, error)
}

// Recorder receives sweep metrics.
type Recorder interface {
	SweepFinished(rep Report, took time.Duration)
}

// Report summarizes a sweep.
type Report struct {
	Processed int `json:"processed"`
	Emails    int `json:"emails"`
	Suspended int `json:"suspended"`
	Canceled  int `json:"canceled"`
	Errors    int `json:"errors"`
}

// Sweeper applies the dunning policy to every past-due subscription.
type Sweeper struct {
	svc         subscription.Service
	policy      Policy
	locker      Locker
	lockTTL     time.Duration
	canceler    Canceler
	recorder    Recorder
	concurrency int
	logger      *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithLocker enables cross-instance locking.
func WithLocker(l Locker, ttl time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithCanceler enables automatic cancellation at the processor.
func WithCanceler(c Canceler) SweeperOption {
	return func(s *Sweeper) {
		s.canceler = c
	}
}

// WithConcurrency bounds the number of subscriptions processed at once.
func WithConcurrency(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) SweeperOption {
	return func(s *Sweeper) {
		s.recorder = r
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSweeper creates a Sweeper. Panics if svc is nil.
func NewSweeper(svc subscription.Service, policy Policy, opts ...SweeperOption) *Sweeper {
	if svc == nil {
		panic("dunning: subscription service is required")
	}
	s := &Sweeper{
		svc:         svc,
		policy:      policy,
		lockTTL:     10 * time.Minute,
		concurrency: 8,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("dunning"))
	return s
}

// Run performs one sweep as of now. Per-subscription failures are counted
// in Report.Errors and do not stop the sweep.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (Report, error) {
	start := time.Now()

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, lockKey, s.lockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			return Report{}, ErrSweepInProgress
		}
		if err != nil {
			return Report{}, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "failed to release sweep lock", logger.Error(err))
			}
		}()
	}

	subs, err := s.svc.ListPastDue(ctx)
	if err != nil {
		return Report{}, err
	}

	var (
		mu  sync.Mutex
		rep Report
		g   errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, sub := range subs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r, err := s.process(ctx, sub, now)
			mu.Lock()
			defer mu.Unlock()
			rep.Processed++
			rep.Emails += r.Emails
			rep.Suspended += r.Suspended
			rep.Canceled += r.Canceled
			if err != nil {
				rep.Errors++
				s.logger.ErrorContext(ctx, "dunning failed for subscription",
					logger.UserID(sub.UserID),
					logger.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	took := time.Since(start)
	if s.recorder != nil {
		s.recorder.SweepFinished(rep, took)
	}
	s.logger.InfoContext(ctx, "dunning sweep finished",
		slog.Int("processed", rep.Processed),
		slog.Int("emails", rep.Emails),
		slog.Int("suspended", rep.Suspended),
		slog.Int("canceled", rep.Canceled),
		slog.Int("errors", rep.Errors),
		logger.Duration(took),
	)

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

// process advances one subscription: cancellation first, otherwise the next
// reminder and then suspension.
func (s *Sweeper) process(ctx context.Context, sub *subscription.Subscription, now time.Time) (Report, error) {
	var rep Report
	if sub.FailureFirstSeenAt == nil {
		return rep, nil
	}
	first := *sub.FailureFirstSeenAt

	if s.policy.CancellationDue(first, now) && s.canceler != nil && sub.ProviderSubscriptionID != "" {
		if _, err := s.canceler.CancelSubscription(ctx, billing.CancelRequest{
			SubscriptionID: sub.ProviderSubscriptionID,
			Mode:           billing.CancelImmediately,
			Reason:         subscription.SuspendReasonDunning,
		}); err != nil && !errors.Is(err, billing.ErrAlreadyCanceled) {
			return rep, err
		}
		out, err := s.svc.Cancel(ctx, sub.UserID, subscription.ActorSystem, subscription.SuspendReasonDunning)
		if err != nil {
			return rep, err
		}
		if out.Applied {
			rep.Canceled++
		}
		rep.Emails += delivered(out.Deliveries)
		return rep, nil
	}

	if kind, stage := s.policy.Next(first, now, sub.DunningStage); kind != notify.KindNone {
		out, err := s.svc.AdvanceDunning(ctx, sub.UserID, stage, kind, now)
		if err != nil {
			return rep, err
		}
		rep.Emails += delivered(out.Deliveries)
	}

	if sub.State() == subscription.StatePastDue && s.policy.SuspensionDue(first, now) {
		out, err := s.svc.EnforceGrace(ctx, sub.UserID, now)
		if err != nil {
			return rep, err
		}
		if out.Applied {
			rep.Suspended++
		}
		rep.Emails += delivered(out.Deliveries)
	}
	return rep, nil
}

func delivered(results []notify.DeliveryResult) int {
	n := 0
	for _, r := range results {
		if r.Delivered {
			n++
		}
	}
	return n
}
