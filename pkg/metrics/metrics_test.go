package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/dunning"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/metrics"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

var (
	_ subscription.Recorder = (*metrics.Collector)(nil)
	_ dunning.Recorder      = (*metrics.Collector)(nil)
)

func TestCollector_Recorders(t *testing.T) {
	t.Parallel()

	c := metrics.New()
	c.EventProcessed("charge_failed", "applied")
	c.EventProcessed("charge_failed", "applied")
	c.TransitionApplied("charge_failed", "active", "past_due")
	c.NotificationSent("service_restored", true)
	c.NotificationSent("service_restored", false)
	c.SweepFinished(dunning.Report{Processed: 4, Emails: 2, Suspended: 1, Errors: 1}, 2*time.Second)
	c.SweepFailed()

	expected := `
# HELP billing_webhook_events_total Processor events handled, by kind and result.
# TYPE billing_webhook_events_total counter
billing_webhook_events_total{kind="charge_failed",result="applied"} 2
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "billing_webhook_events_total"))

	expected = `
# HELP billing_dunning_sweeps_total Dunning sweeps run, by result.
# TYPE billing_dunning_sweeps_total counter
billing_dunning_sweeps_total{result="error"} 1
billing_dunning_sweeps_total{result="partial"} 1
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "billing_dunning_sweeps_total"))

	n, err := testutil.GatherAndCount(c.Registry(), "billing_notifications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCollector_MiddlewareAndHandler(t *testing.T) {
	t.Parallel()

	c := metrics.New()
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", c.Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `billing_http_requests_total{method="GET",route="/users/{id}",status="418"} 2`)
}
