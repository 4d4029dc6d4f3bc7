package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/internal/store"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/auth"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/billing"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/dunning"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// httpError is an error with a fixed status and code.
type httpError struct {
	Status  int
	Code    string
	Message string
}

func (e httpError) Error() string { return e.Code + ": " + e.Message }

func badRequest(code, msg string) httpError {
	return httpError{Status: http.StatusBadRequest, Code: code, Message: msg}
}

var (
	errNotFound         = httpError{http.StatusNotFound, "not_found", "resource not found"}
	errMethodNotAllowed = httpError{http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed"}
	errUnauthorized     = httpError{http.StatusUnauthorized, "unauthorized", "authentication required"}
	errForbidden        = httpError{http.StatusForbidden, "forbidden", "admin access required"}
	errTooManyRequests  = httpError{http.StatusTooManyRequests, "rate_limited", "too many requests, try again later"}
	errRateLimiterDown  = httpError{http.StatusServiceUnavailable, "service_unavailable", "please retry shortly"}
	errInternal         = httpError{http.StatusInternalServerError, "internal_error", "internal server error"}
	errNoCustomer       = badRequest("no_customer", "no billing account exists for this user")
	errNoSubscription   = badRequest("no_active_subscription", "no active paid subscription")
)

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *server) ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{Data: data})
}

// fail maps err onto a status and error code. Server-side errors are logged
// and their message is not exposed.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	he := classify(err)
	level := slog.LevelDebug
	switch {
	case he.Status >= http.StatusInternalServerError:
		level = slog.LevelError
	case he.Status == http.StatusUnauthorized || he.Status == http.StatusForbidden:
		level = slog.LevelInfo
	case he.Status >= http.StatusBadRequest:
		level = slog.LevelWarn
	}
	s.log.Log(r.Context(), level, "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", he.Status),
		slog.String("code", he.Code),
		logger.Error(err),
	)
	writeJSON(w, he.Status, Envelope{Error: &ErrorDetail{Code: he.Code, Message: he.Message}})
}

func (s *server) authError(w http.ResponseWriter, r *http.Request, err error) {
	s.fail(w, r, errors.Join(errUnauthorized, err))
}

func classify(err error) httpError {
	var he httpError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken), errors.Is(err, auth.ErrInvalidSubject):
		return errUnauthorized
	case errors.Is(err, billing.ErrWebhookVerificationFailed):
		return badRequest("invalid_signature", "webhook signature verification failed")
	case errors.Is(err, billing.ErrMalformedEvent), errors.Is(err, subscription.ErrInvalidEvent):
		return badRequest("invalid_event", "webhook payload could not be parsed")
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		return httpError{http.StatusNotFound, "subscription_not_found", "subscription not found"}
	case errors.Is(err, subscription.ErrPaymentOutstanding):
		return httpError{http.StatusConflict, "payment_outstanding", "an outstanding payment blocks this action"}
	case errors.Is(err, subscription.ErrInvalidTransition):
		return httpError{http.StatusConflict, "invalid_transition", "action not allowed in the current subscription state"}
	case errors.Is(err, dunning.ErrSweepInProgress):
		return httpError{http.StatusConflict, "sweep_in_progress", "a dunning sweep is already running"}
	case errors.Is(err, plan.ErrPriceNotConfigured):
		return httpError{http.StatusServiceUnavailable, "price_not_configured", "this plan is not available for purchase"}
	case errors.Is(err, plan.ErrFreePlanHasNoPrice), errors.Is(err, plan.ErrInvalidInterval), errors.Is(err, plan.ErrUnknownPlan):
		return badRequest("invalid_plan", "choose a paid plan and a monthly or yearly interval")
	case errors.Is(err, store.ErrInvalidFilter):
		return badRequest("invalid_filter", err.Error())
	case errors.Is(err, billing.ErrPaymentDeclined):
		return httpError{http.StatusPaymentRequired, "payment_declined", "the payment was declined, update your payment method"}
	case errors.Is(err, billing.ErrNoOpenInvoice):
		return httpError{http.StatusNotFound, "no_open_invoice", "there is no open invoice to pay"}
	case errors.Is(err, billing.ErrNotSupported):
		return httpError{http.StatusNotImplemented, "not_supported", "not supported by the payment processor"}
	case errors.Is(err, billing.ErrMissingCustomerID):
		return errNoCustomer
	case errors.Is(err, billing.ErrProvider), errors.Is(err, billing.ErrNoCheckoutURL), errors.Is(err, billing.ErrNoPortalURL):
		return httpError{http.StatusBadGateway, "provider_error", "the payment processor is unavailable, try again"}
	}
	return errInternal
}
