// Package api is the HTTP surface of the billing service: processor
// webhooks, the user billing endpoints, admin tools and the cron trigger.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/internal/store"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/admin"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/auth"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/billing"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/clientip"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/dunning"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/entitlement"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/httpserver"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/metrics"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/ratelimiter"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/requestid"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

// Sweeper runs the dunning sweep.
type Sweeper interface {
	Run(ctx context.Context, now time.Time) (dunning.Report, error)
}

// FailureLister pages payment failures.
type FailureLister interface {
	ListPaymentFailures(ctx context.Context, f store.FailureFilter) (store.FailurePage, error)
}

// CancellationRecorder stores cancellation feedback.
type CancellationRecorder interface {
	SaveCancellationReason(ctx context.Context, r store.CancellationReason) error
}

// AdminResolver decides admin access.
type AdminResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (admin.Decision, error)
}

// Deps are the collaborators of the router.
type Deps struct {
	Subscriptions subscription.Service
	Entitlements  *entitlement.Service
	Provider      billing.Provider
	Catalog       *plan.Catalog
	Registry      *plan.Registry
	Policy        dunning.Policy
	Sweeper       Sweeper
	Failures      FailureLister
	Cancellations CancellationRecorder
	Admins        AdminResolver
	Verifier      *auth.Verifier
	Limiter       *ratelimiter.Limiter
	Metrics       *metrics.Collector
	Health        map[string]httpserver.Check
	// ClientIP resolves caller addresses for logs. Defaults to the TCP peer.
	ClientIP *clientip.Resolver

	// AppURL is the origin of the web app, used for processor return URLs.
	AppURL     string
	CronSecret string
	Logger     *slog.Logger
	Now        func() time.Time
}

// Rate limits of the billing mutations, per user.
var (
	LimitCheckout = ratelimiter.PerMinute("checkout", 5)
	LimitPortal   = ratelimiter.PerMinute("portal", 10)
	LimitChange   = ratelimiter.PerMinute("change_plan", 3)
	LimitCancel   = ratelimiter.PerMinute("cancel", 3)
	LimitRetry    = ratelimiter.PerMinute("retry_payment", 3)
)

type server struct {
	Deps
	log *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.ClientIP == nil {
		d.ClientIP = clientip.New()
	}
	if d.Registry == nil {
		d.Registry = plan.DefaultRegistry()
	}
	s := &server{Deps: d, log: d.Logger.With(logger.Component("api"))}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(d.ClientIP.Middleware)
	r.Use(s.recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	r.Use(middleware.CleanPath)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) { s.fail(w, r, errNotFound) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) { s.fail(w, r, errMethodNotAllowed) })

	r.Get("/healthz", httpserver.HealthHandler(s.log, 3*time.Second, d.Health))
	r.Post("/webhooks/{provider}", s.handleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.SharedSecret(d.CronSecret, s.authError))
			r.Get("/cron/dunning-check", s.handleDunningCheck)
			r.Post("/cron/dunning-check", s.handleDunningCheck)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(d.Verifier, s.authError))

			r.Get("/entitlements", s.handleEntitlements)
			r.Get("/subscription", s.handleSubscription)

			r.Route("/billing", func(r chi.Router) {
				r.With(s.limit(LimitCheckout)).Post("/checkout", s.handleCheckout)
				r.With(s.limit(LimitPortal)).Post("/portal", s.handlePortal)
				r.With(s.limit(LimitChange)).Post("/change-plan", s.handleChangePlan)
				r.With(s.limit(LimitCancel)).Post("/cancel", s.handleCancel)
				r.With(s.limit(LimitRetry)).Post("/retry-payment", s.handleRetryPayment)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/billing/suspend", s.handleAdminSuspend)
				r.Get("/billing/payment-failures", s.handlePaymentFailures)
			})
		})
	})

	return r
}

func (s *server) limit(rule ratelimiter.Rule) func(http.Handler) http.Handler {
	if s.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	key := func(r *http.Request) string {
		if id := auth.UserIDFromContext(r.Context()); id != uuid.Nil {
			return id.String()
		}
		return ""
	}
	return ratelimiter.Middleware(s.Limiter, rule, key, func(w http.ResponseWriter, r *http.Request, _ ratelimiter.Result, err error) {
		if err != nil {
			s.log.WarnContext(r.Context(), "rate limiter unavailable", logger.Error(err))
			s.fail(w, r, errRateLimiterDown)
			return
		}
		s.fail(w, r, errTooManyRequests)
	})
}

func (s *server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				s.log.ErrorContext(r.Context(), "panic in handler", slog.Any("panic", p), slog.String("path", r.URL.Path))
				s.fail(w, r, errInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) userID(r *http.Request) uuid.UUID {
	return auth.UserIDFromContext(r.Context())
}
