package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
)

// Job is invoked with the scheduled run time.
type Job func(ctx context.Context, at time.Time) error

// Runner executes one job on a schedule.
type Runner struct {
	name     string
	schedule Schedule
	job      Job
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds each run. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(name string, s Schedule, job Job, opts ...Option) (*Runner, error) {
	if job == nil {
		return nil, ErrNilJob
	}
	r := &Runner{
		name:     name,
		schedule: s,
		job:      job,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.Component("schedule"), slog.String("job", name))
	return r, nil
}

// Start blocks, running the job at each scheduled time until ctx is done.
// Job errors are logged; runs never overlap.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.InfoContext(ctx, "scheduled job registered", slog.String("schedule", r.schedule.String()))
	for {
		next := r.schedule.Next(r.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		r.runOnce(ctx, next)
	}
}

func (r *Runner) runOnce(ctx context.Context, at time.Time) {
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "scheduled job panicked", slog.Any("panic", p))
		}
	}()
	if err := r.job(runCtx, at); err != nil {
		r.logger.ErrorContext(ctx, "scheduled job failed", logger.Error(err), logger.Duration(time.Since(start)))
		return
	}
	r.logger.InfoContext(ctx, "scheduled job finished", logger.Duration(time.Since(start)))
}
