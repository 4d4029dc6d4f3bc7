package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/internal/store"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/auth"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/billing"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

const (
	checkoutSuccessPath = "/dashboard/settings?tab=plan"
	checkoutCancelPath  = "/pricing"
	portalReturnPath    = "/account/billing"
)

func (s *server) appLink(path string) string {
	return strings.TrimRight(s.AppURL, "/") + path
}

// sameOrigin reports whether raw points into the web app.
func (s *server) sameOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	app, err := url.Parse(s.AppURL)
	if err != nil {
		return false
	}
	return u.Scheme == app.Scheme && u.Host == app.Host
}

type checkoutRequest struct {
	Plan      string `json:"plan"`
	Interval  string `json:"interval"`
	ReturnURL string `json:"return_url,omitempty"`
}

type urlResponse struct {
	URL string `json:"url"`
}

func (s *server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req checkoutRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	interval := plan.Interval(req.Interval)
	if interval == "" {
		interval = plan.Monthly
	}
	priceID, err := s.Catalog.PriceID(plan.ID(req.Plan), interval)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sub, err := s.current(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sub != nil && sub.State() != subscription.StateCanceled && s.Registry.IsPaid(string(sub.PlanID)) {
		s.fail(w, r, httpError{http.StatusConflict, "already_subscribed", "use change-plan to switch an existing subscription"})
		return
	}

	success := s.appLink(checkoutSuccessPath)
	if req.ReturnURL != "" {
		if !s.sameOrigin(req.ReturnURL) {
			s.fail(w, r, badRequest("invalid_return_url", "return_url must point to the application"))
			return
		}
		success = req.ReturnURL
	}

	creq := billing.CheckoutRequest{
		UserID:     s.userID(r),
		PriceID:    priceID,
		SuccessURL: success,
		CancelURL:  s.appLink(checkoutCancelPath),
	}
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		creq.Email = claims.Email
	}
	if sub != nil {
		creq.CustomerID = sub.CustomerID
	}

	sess, err := s.Provider.CreateCheckout(ctx, creq)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, urlResponse{URL: sess.URL})
}

func (s *server) handlePortal(w http.ResponseWriter, r *http.Request) {
	sub, err := s.current(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sub == nil || sub.CustomerID == "" {
		s.fail(w, r, errNoCustomer)
		return
	}
	sess, err := s.Provider.CreatePortalSession(r.Context(), sub.CustomerID, s.appLink(portalReturnPath))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, urlResponse{URL: sess.URL})
}

type changePlanRequest struct {
	Plan     string `json:"plan"`
	Interval string `json:"interval"`
}

type changePlanResponse struct {
	RedirectToCheckout bool          `json:"redirect_to_checkout,omitempty"`
	Plan               plan.ID       `json:"plan,omitempty"`
	Interval           plan.Interval `json:"interval,omitempty"`
}

func (s *server) handleChangePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req changePlanRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	target, interval := plan.ID(req.Plan), plan.Interval(req.Interval)
	if interval == "" {
		interval = plan.Monthly
	}
	priceID, err := s.Catalog.PriceID(target, interval)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sub, err := s.current(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sub == nil || sub.State() == subscription.StateCanceled ||
		sub.ProviderSubscriptionID == "" || !s.Registry.IsPaid(string(sub.PlanID)) {
		s.ok(w, changePlanResponse{RedirectToCheckout: true})
		return
	}
	if sub.IsSuspended() || sub.State() == subscription.StatePastDue {
		s.fail(w, r, subscription.ErrPaymentOutstanding)
		return
	}
	if sub.PlanID == target && sub.Interval == interval {
		s.fail(w, r, badRequest("same_plan", "already on this plan"))
		return
	}

	if err := s.Provider.ChangePlan(ctx, billing.ChangePlanRequest{
		SubscriptionID: sub.ProviderSubscriptionID,
		PriceID:        priceID,
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.Subscriptions.ApplyPlanChange(ctx, sub.UserID, target, interval, priceID); err != nil {
		// The processor already switched; its subscription_updated webhook
		// will bring the record in line.
		s.log.WarnContext(ctx, "plan change not recorded locally",
			logger.UserID(sub.UserID), logger.PlanID(target), logger.Error(err))
	}
	s.ok(w, changePlanResponse{Plan: target, Interval: interval})
}

type cancelRequest struct {
	ReasonCategory string `json:"reason_category"`
	ReasonDetail   string `json:"reason_detail,omitempty"`
	CancelType     string `json:"cancel_type,omitempty"`
}

func (s *server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req cancelRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	if !billing.IsCancelReason(req.ReasonCategory) {
		s.fail(w, r, badRequest("invalid_reason", "unknown cancellation reason"))
		return
	}
	if utf8.RuneCountInString(req.ReasonDetail) > billing.MaxReasonDetail {
		s.fail(w, r, badRequest("reason_too_long", "reason detail is limited to 1000 characters"))
		return
	}
	mode := billing.CancelEndOfPeriod
	if req.CancelType != "" {
		mode = billing.CancelMode(req.CancelType)
	}
	if !mode.Valid() {
		s.fail(w, r, badRequest("invalid_cancel_type", "cancel_type must be end_of_period or immediate"))
		return
	}

	sub, err := s.current(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sub == nil || sub.ProviderSubscriptionID == "" || sub.State() == subscription.StateCanceled {
		s.fail(w, r, errNoSubscription)
		return
	}

	res, err := s.Provider.CancelSubscription(ctx, billing.CancelRequest{
		SubscriptionID: sub.ProviderSubscriptionID,
		Mode:           mode,
		Reason:         req.ReasonCategory,
		Comment:        req.ReasonDetail,
	})
	if err != nil && !errors.Is(err, billing.ErrAlreadyCanceled) {
		s.fail(w, r, err)
		return
	}

	if s.Cancellations != nil {
		if err := s.Cancellations.SaveCancellationReason(ctx, store.CancellationReason{
			UserID:                 sub.UserID,
			ProviderSubscriptionID: sub.ProviderSubscriptionID,
			Category:               req.ReasonCategory,
			Detail:                 req.ReasonDetail,
			PlanAtCancellation:     string(sub.PlanID),
		}); err != nil {
			s.log.WarnContext(ctx, "failed to store cancellation reason", logger.UserID(sub.UserID), logger.Error(err))
		}
	}

	if res.Canceled {
		if _, err := s.Subscriptions.Cancel(ctx, sub.UserID, sub.UserID.String(), req.ReasonCategory); err != nil {
			s.log.WarnContext(ctx, "immediate cancellation not recorded locally",
				logger.UserID(sub.UserID), logger.Error(err))
		}
	}
	s.ok(w, res)
}

type retryRequest struct {
	InvoiceID string `json:"invoice_id,omitempty"`
}

func (s *server) handleRetryPayment(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	sub, err := s.current(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sub == nil || sub.CustomerID == "" {
		s.fail(w, r, errNoCustomer)
		return
	}
	res, err := s.Provider.RetryPayment(r.Context(), sub.CustomerID, req.InvoiceID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, res)
}
