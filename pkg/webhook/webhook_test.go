package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/webhook"
)

func TestSender_Send(t *testing.T) {
	t.Parallel()

	t.Run("posts json", func(t *testing.T) {
		t.Parallel()

		var got map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"text": "hi"})
		require.NoError(t, err)
		assert.Equal(t, "hi", got["text"])
	})

	t.Run("retries server errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		s := webhook.NewSender(webhook.WithBackoff(webhook.NoDelay))
		require.NoError(t, s.Send(context.Background(), srv.URL, "x"))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		t.Cleanup(srv.Close)

		s := webhook.NewSender(webhook.WithBackoff(webhook.NoDelay), webhook.WithMaxRetries(2))
		err := s.Send(context.Background(), srv.URL, "x")
		assert.ErrorIs(t, err, webhook.ErrDeliveryFailed)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client error is permanent", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.Error(w, "invalid_token", http.StatusForbidden)
		}))
		t.Cleanup(srv.Close)

		err := webhook.NewSender(webhook.WithBackoff(webhook.NoDelay)).Send(context.Background(), srv.URL, "x")
		assert.ErrorIs(t, err, webhook.ErrPermanentFailure)
		assert.Contains(t, err.Error(), "invalid_token")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()

		s := webhook.NewSender()
		for _, u := range []string{"", "ftp://example.com", "http://"} {
			assert.ErrorIs(t, s.Send(context.Background(), u, "x"), webhook.ErrInvalidURL, u)
		}
	})

	t.Run("unmarshalable payload", func(t *testing.T) {
		t.Parallel()

		err := webhook.NewSender().Send(context.Background(), "https://example.com", make(chan int))
		assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
	})

	t.Run("context canceled between attempts", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		s := webhook.NewSender(webhook.WithBackoff(func(int) time.Duration { return time.Minute }))
		assert.ErrorIs(t, s.Send(ctx, srv.URL, "x"), context.DeadlineExceeded)
	})
}

func TestExponential(t *testing.T) {
	t.Parallel()

	b := webhook.Exponential(time.Second, 5*time.Second, 0)
	assert.Equal(t, time.Duration(0), b(0))
	assert.Equal(t, time.Second, b(1))
	assert.Equal(t, 4*time.Second, b(3))
	assert.Equal(t, 5*time.Second, b(10))

	j := webhook.Exponential(time.Second, time.Minute, 0.1)
	for range 20 {
		d := j(1)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
	}
}
