package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/billing"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
)

const maxWebhookBytes = 1 << 20

type webhookAck struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   string `json:"ignored,omitempty"`
}

// handleWebhook verifies and applies a processor event. Any non-2xx answer
// makes the processor redeliver, so only persistence failures return 500.
func (s *server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.Provider == nil || chi.URLParam(r, "provider") != s.Provider.Name() {
		s.fail(w, r, errNotFound)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		s.fail(w, r, badRequest("invalid_body", "could not read request body"))
		return
	}

	ev, err := s.Provider.ParseWebhook(ctx, payload, r.Header)
	switch {
	case errors.Is(err, billing.ErrUnsupportedEvent):
		s.log.DebugContext(ctx, "unsupported webhook event acknowledged", logger.Provider(s.Provider.Name()))
		s.ok(w, webhookAck{Received: true, Ignored: "unsupported_event"})
		return
	case err != nil:
		s.fail(w, r, err)
		return
	}

	out, err := s.Subscriptions.HandleEvent(ctx, ev)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.log.InfoContext(ctx, "webhook processed",
		logger.EventID(ev.ID),
		logger.EventType(string(ev.Kind)),
		logger.Provider(ev.Provider),
		slog.Bool("duplicate", out.Duplicate),
		slog.Bool("applied", out.Applied),
	)
	s.ok(w, webhookAck{Received: true, Duplicate: out.Duplicate, Ignored: out.Ignored})
}
