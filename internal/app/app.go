// Package app assembles the billing service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/internal/api"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/internal/store"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/admin"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/audit"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/auth"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/billing"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/clientip"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/dunning"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/email"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/entitlement"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/httpserver"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/metrics"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/notify"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/pg"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/ratelimiter"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/redis"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/requestid"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/schedule"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/webhook"
)

const (
	lockPrefix      = "billing:lock:"
	rateLimitPrefix = "billing:ratelimit:"
)

// App holds the wired service.
type App struct {
	cfg     Config
	log     *slog.Logger
	pool    *pgxpool.Pool
	redis   *goredis.Client
	metrics *metrics.Collector
	sweeper *dunning.Sweeper
	handler http.Handler
	server  *httpserver.Server
	runner  *schedule.Runner

	closers []func(context.Context) error
}

// NewLogger builds the process logger with request and user ids attached
// to every record that carries them in its context.
func NewLogger(cfg logger.Config) (*slog.Logger, error) {
	return logger.NewFromConfig(cfg, logger.WithContextExtractors(
		requestid.LoggerExtractor(),
		clientip.LoggerExtractor(),
		func(ctx context.Context) (slog.Attr, bool) {
			if id, ok := auth.UserIDExtractor(ctx); ok {
				return logger.UserID(id), true
			}
			return slog.Attr{}, false
		},
	))
}

// Migrate applies the database migrations and exits.
func Migrate(ctx context.Context, cfg Config, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	return store.Migrate(ctx, pool, cfg.DB, log)
}

// New connects the backing services and wires every component. Close must
// be called to release them.
func New(ctx context.Context, cfg Config, log *slog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, log: log, metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.pool, err = pg.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { a.pool.Close(); return nil })
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx, a.pool, cfg.DB, log); err != nil {
			return nil, err
		}
	}
	st := store.New(a.pool)

	health := map[string]httpserver.Check{"postgres": pg.Healthcheck(a.pool)}
	var limiterStore ratelimiter.Store
	if cfg.Redis.Enabled() {
		a.redis, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return a.redis.Close() })
		health["redis"] = redis.Healthcheck(a.redis)
		limiterStore = ratelimiter.NewRedisStore(a.redis, rateLimitPrefix)
	} else {
		log.WarnContext(ctx, "redis disabled, rate limits and sweep lock are process-local")
		mem := ratelimiter.NewMemoryStore()
		a.closers = append(a.closers, func(context.Context) error { mem.Close(); return nil })
		limiterStore = mem
	}

	registry := plan.DefaultRegistry()
	catalog := plan.NewCatalog(cfg.Billing.Prices)
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	for _, name := range catalog.MissingOptional() {
		log.WarnContext(ctx, "optional price not configured", slog.String("env", name))
	}
	provider, err := billing.New(cfg.Billing, catalog, log)
	if err != nil {
		return nil, fmt.Errorf("billing provider: %w", err)
	}

	policy, err := dunning.NewPolicy(cfg.Dunning)
	if err != nil {
		return nil, err
	}

	var sender email.Sender
	if !cfg.Notify.DryRun {
		if sender, err = email.New(cfg.Email); err != nil {
			return nil, fmt.Errorf("email sender: %w", err)
		}
	}
	dispatcher := notify.NewDispatcher(sender, cfg.Notify, notify.WithLogger(log))
	alerts := notify.NewSlackAlerter(cfg.Notify.SlackWebhookURL,
		webhook.NewSender(webhook.WithTimeout(5*time.Second), webhook.WithMaxRetries(2)), log)

	auditWriter, closeAudit := audit.NewAsyncWriter(st, audit.AsyncOptions{
		BatchSize:    50,
		BatchTimeout: time.Second,
	})
	a.closers = append(a.closers, closeAudit)
	auditLog := audit.NewLogger(auditWriter,
		audit.WithRequestIDExtractor(requestid.Extract),
		audit.WithActorIDExtractor(actorFromContext),
	)

	subs := subscription.NewService(st,
		subscription.WithGracePolicy(policy),
		subscription.WithRegistry(registry),
		subscription.WithNotifier(notify.NewUserNotifier(st, dispatcher, log)),
		subscription.WithAlerter(alerts),
		subscription.WithAuditLogger(auditLog),
		subscription.WithRecorder(a.metrics),
		subscription.WithLogger(log),
	)

	sweepOpts := []dunning.SweeperOption{
		dunning.WithCanceler(provider),
		dunning.WithConcurrency(cfg.Dunning.Concurrency),
		dunning.WithRecorder(a.metrics),
		dunning.WithLogger(log),
	}
	if a.redis != nil {
		sweepOpts = append(sweepOpts, dunning.WithLocker(redis.NewLocker(a.redis, lockPrefix), cfg.Dunning.LockTTL))
	}
	a.sweeper = dunning.NewSweeper(subs, policy, sweepOpts...)

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return nil, err
	}

	a.handler = api.NewRouter(api.Deps{
		Subscriptions: subs,
		Entitlements:  entitlement.NewService(st, entitlement.WithRegistry(registry), entitlement.WithLogger(log)),
		Provider:      provider,
		Catalog:       catalog,
		Registry:      registry,
		Policy:        policy,
		Sweeper:       boundedSweeper{a},
		Failures:      st,
		Cancellations: st,
		Admins:        admin.NewResolver(cfg.Admin, admin.WithProfiles(st), admin.WithLogger(log)),
		Verifier:      verifier,
		Limiter:       ratelimiter.New(limiterStore),
		Metrics:       a.metrics,
		Health:        health,
		ClientIP:      clientip.New(cfg.TrustedProxyHeaders...),
		AppURL:        cfg.Notify.AppURL,
		CronSecret:    cfg.CronSecret,
		Logger:        log,
	})
	a.server = httpserver.New(cfg.HTTP, log)

	if cfg.Dunning.DailyAt != "" {
		sched, err := schedule.ParseDailyAt(cfg.Dunning.DailyAt)
		if err != nil {
			return nil, err
		}
		a.runner, err = schedule.NewRunner("dunning", sched, a.sweepJob,
			schedule.WithTimeout(cfg.Dunning.SweepTimeout), schedule.WithLogger(log))
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// actorFromContext attributes audit events to the authenticated caller.
func actorFromContext(ctx context.Context) (string, bool) {
	if id := auth.UserIDFromContext(ctx); id != uuid.Nil {
		return id.String(), true
	}
	return "", false
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Serve runs the HTTP server and, when configured, the daily dunning sweep
// until ctx is done or a shutdown signal arrives.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return a.server.Run(gctx, a.handler)
	})
	if a.runner != nil {
		g.Go(func() error {
			if err := a.runner.Start(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Sweep runs one dunning sweep.
func (a *App) Sweep(ctx context.Context) (dunning.Report, error) {
	rep, err := boundedSweeper{a}.Run(ctx, time.Now())
	if err != nil && !errors.Is(err, dunning.ErrSweepInProgress) {
		a.metrics.SweepFailed()
	}
	return rep, err
}

// boundedSweeper caps every sweep, whatever triggered it, at the configured
// timeout so it never outlives its lock.
type boundedSweeper struct{ a *App }

func (b boundedSweeper) Run(ctx context.Context, now time.Time) (dunning.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, b.a.cfg.Dunning.SweepTimeout)
	defer cancel()
	return b.a.sweeper.Run(ctx, now)
}

func (a *App) sweepJob(ctx context.Context, at time.Time) error {
	rep, err := a.Sweep(ctx)
	if errors.Is(err, dunning.ErrSweepInProgress) {
		a.log.InfoContext(ctx, "dunning sweep skipped, another instance is running")
		return nil
	}
	if err != nil {
		return err
	}
	a.log.InfoContext(ctx, "scheduled dunning sweep done",
		slog.Time("scheduled_at", at),
		slog.Int("processed", rep.Processed),
		slog.Int("suspended", rep.Suspended),
		slog.Int("errors", rep.Errors),
	)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
