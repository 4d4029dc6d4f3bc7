package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/internal/store"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/dunning"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Admins == nil {
			s.fail(w, r, errForbidden)
			return
		}
		d, err := s.Admins.Resolve(r.Context(), s.userID(r))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !d.Admin {
			s.fail(w, r, errForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type suspendRequest struct {
	UserID string `json:"user_id"`
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

func (s *server) handleAdminSuspend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req suspendRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	target, err := uuid.Parse(req.UserID)
	if err != nil {
		s.fail(w, r, badRequest("invalid_user_id", "user_id must be a UUID"))
		return
	}
	actor := s.userID(r).String()

	var out subscription.Outcome
	switch req.Action {
	case "suspend":
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			s.fail(w, r, badRequest("missing_reason", "a reason is required to suspend"))
			return
		}
		out, err = s.Subscriptions.Suspend(ctx, target, actor, reason)
	case "restore", "unsuspend":
		out, err = s.Subscriptions.Restore(ctx, target, actor)
	default:
		s.fail(w, r, badRequest("invalid_action", "action must be suspend or restore"))
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.log.InfoContext(ctx, "admin changed suspension",
		logger.ActorID(actor), logger.UserID(target), logger.Transition(string(out.From), string(out.To)))
	s.ok(w, out)
}

func (s *server) handlePaymentFailures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.FailureFilter{Status: q.Get("status")}
	var err error
	if filter.Page, err = intParam(q.Get("page"), 1); err != nil {
		s.fail(w, r, badRequest("invalid_page", "page must be a positive integer"))
		return
	}
	if filter.Limit, err = intParam(q.Get("limit"), 20); err != nil {
		s.fail(w, r, badRequest("invalid_limit", "limit must be a positive integer"))
		return
	}
	filter.Limit = min(filter.Limit, store.MaxFailureLimit)
	if raw := q.Get("user_id"); raw != "" {
		if filter.UserID, err = uuid.Parse(raw); err != nil {
			s.fail(w, r, badRequest("invalid_user_id", "user_id must be a UUID"))
			return
		}
	}

	page, err := s.Failures.ListPaymentFailures(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Data: page.Items,
		Meta: map[string]any{"page": page.Page, "limit": page.Limit, "total": page.Total},
	})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

func (s *server) handleDunningCheck(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	rep, err := s.Sweeper.Run(ctx, s.Now())
	if err != nil {
		if s.Metrics != nil && !errors.Is(err, dunning.ErrSweepInProgress) {
			s.Metrics.SweepFailed()
		}
		s.fail(w, r, err)
		return
	}
	s.ok(w, rep)
}
