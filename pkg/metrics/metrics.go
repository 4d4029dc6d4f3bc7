package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/dunning"
)

const namespace = "billing"

// Collector holds the service metrics.
type Collector struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec

	sweeps        *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	sweepItems    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Collector with its own registry. Go runtime and process
// collectors are registered as well.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Processor events handled, by kind and result.",
		}, []string{"kind", "result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Payment-state transitions applied.",
		}, []string{"trigger", "from", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Lifecycle notifications, by kind and result.",
		}, []string{"kind", "result"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dunning",
			Name:      "sweeps_total",
			Help:      "Dunning sweeps run, by result.",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dunning",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of dunning sweeps.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}),
		sweepItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dunning",
			Name:      "sweep_items_total",
			Help:      "Subscriptions touched by dunning sweeps, by action.",
		}, []string{"action"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.events, c.transitions, c.notifications,
		c.sweeps, c.sweepDuration, c.sweepItems,
		c.httpRequests, c.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// EventProcessed implements subscription.Recorder.
func (c *Collector) EventProcessed(kind, result string) {
	c.events.WithLabelValues(kind, result).Inc()
}

// TransitionApplied implements subscription.Recorder.
func (c *Collector) TransitionApplied(trigger, from, to string) {
	c.transitions.WithLabelValues(trigger, from, to).Inc()
}

// NotificationSent implements subscription.Recorder.
func (c *Collector) NotificationSent(kind string, delivered bool) {
	result := "failed"
	if delivered {
		result = "delivered"
	}
	c.notifications.WithLabelValues(kind, result).Inc()
}

// SweepFinished implements dunning.Recorder.
func (c *Collector) SweepFinished(rep dunning.Report, took time.Duration) {
	result := "ok"
	if rep.Errors > 0 {
		result = "partial"
	}
	c.sweeps.WithLabelValues(result).Inc()
	c.sweepDuration.Observe(took.Seconds())
	c.sweepItems.WithLabelValues("processed").Add(float64(rep.Processed))
	c.sweepItems.WithLabelValues("emailed").Add(float64(rep.Emails))
	c.sweepItems.WithLabelValues("suspended").Add(float64(rep.Suspended))
	c.sweepItems.WithLabelValues("canceled").Add(float64(rep.Canceled))
	c.sweepItems.WithLabelValues("failed").Add(float64(rep.Errors))
}

// SweepFailed counts a sweep that did not run to completion.
func (c *Collector) SweepFailed() {
	c.sweeps.WithLabelValues("error").Inc()
}

// Middleware records request counts and latency labeled by the chi route
// pattern, so path parameters do not explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
