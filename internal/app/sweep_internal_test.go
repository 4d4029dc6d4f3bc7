package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/dunning"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/metrics"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

type deadlineLocker struct {
	deadline time.Time
	ttl      time.Duration
}

func (l *deadlineLocker) Acquire(ctx context.Context, _ string, ttl time.Duration) (func(context.Context) error, error) {
	l.deadline, _ = ctx.Deadline()
	l.ttl = ttl
	return func(context.Context) error { return nil }, nil
}

func TestSweep_BoundedByLock(t *testing.T) {
	t.Parallel()

	cfg := dunning.DefaultConfig()
	locker := &deadlineLocker{}
	svc := subscription.NewService(subscription.NewMemoryStore(), subscription.WithLogger(logger.Discard()))
	a := &App{
		cfg:     Config{Dunning: cfg},
		log:     logger.Discard(),
		metrics: metrics.New(),
		sweeper: dunning.NewSweeper(svc, dunning.DefaultPolicy(),
			dunning.WithLocker(locker, cfg.LockTTL), dunning.WithLogger(logger.Discard())),
	}

	for name, run := range map[string]func(context.Context) error{
		"command line": func(ctx context.Context) error {
			_, err := a.Sweep(ctx)
			return err
		},
		"http trigger": func(ctx context.Context) error {
			_, err := boundedSweeper{a}.Run(ctx, time.Now())
			return err
		},
	} {
		start := time.Now()
		require.NoError(t, run(context.Background()), name)
		require.False(t, locker.deadline.IsZero(), name)
		assert.WithinDuration(t, start.Add(cfg.SweepTimeout), locker.deadline, time.Minute, name)
		assert.GreaterOrEqual(t, locker.ttl, cfg.SweepTimeout, name)
	}
}
