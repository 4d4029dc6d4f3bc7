package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/dunning"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

func (s *server) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	required := r.URL.Query().Get("required")
	if required == "" {
		required = string(plan.Free)
	}
	if _, ok := s.Registry.Lookup(required); !ok {
		s.fail(w, r, badRequest("unknown_plan", "unknown required plan"))
		return
	}

	res, err := s.Entitlements.Check(r.Context(), s.userID(r), plan.ID(required))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, res)
}

// Summary is the subscription as shown on the account page.
type Summary struct {
	Plan          plan.Plan                  `json:"plan"`
	Interval      plan.Interval              `json:"interval,omitempty"`
	State         subscription.State         `json:"state"`
	BillingStatus subscription.BillingStatus `json:"billing_status"`
	AppStatus     subscription.AppStatus     `json:"app_status"`
	HasCustomer   bool                       `json:"has_customer"`

	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	CancelAt         *time.Time `json:"cancel_at,omitempty"`
	CanceledAt       *time.Time `json:"canceled_at,omitempty"`
	TrialEnd         *time.Time `json:"trial_end,omitempty"`

	Dunning *DunningInfo `json:"dunning,omitempty"`
}

// DunningInfo describes an outstanding payment.
type DunningInfo struct {
	FailureFirstSeenAt time.Time                 `json:"failure_first_seen_at"`
	DaysPastDue        int                       `json:"days_past_due"`
	Stage              subscription.DunningStage `json:"stage"`
	SuspendAt          time.Time                 `json:"suspend_at"`
	SuspendedAt        *time.Time                `json:"suspended_at,omitempty"`
}

func (s *server) summarize(sub *subscription.Subscription) Summary {
	if sub == nil {
		return Summary{
			Plan:          s.Registry.Resolve(string(plan.Free)),
			State:         subscription.StateActive,
			BillingStatus: subscription.BillingIncomplete,
			AppStatus:     subscription.AppActive,
		}
	}
	sum := Summary{
		Plan:             s.Registry.Resolve(string(sub.PlanID)),
		Interval:         sub.Interval,
		State:            sub.State(),
		BillingStatus:    sub.BillingStatus,
		AppStatus:        sub.AppStatus,
		HasCustomer:      sub.CustomerID != "",
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
		CancelAt:         sub.CancelAt,
		CanceledAt:       sub.CanceledAt,
		TrialEnd:         sub.TrialEnd,
	}
	if sub.FailureFirstSeenAt != nil {
		first := *sub.FailureFirstSeenAt
		sum.Dunning = &DunningInfo{
			FailureFirstSeenAt: first,
			DaysPastDue:        dunning.ElapsedDays(first, s.Now()),
			Stage:              sub.DunningStage,
			SuspendAt:          s.Policy.SuspendOn(first),
			SuspendedAt:        sub.SuspendedAt,
		}
	}
	return sum
}

func (s *server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.Subscriptions.Get(r.Context(), s.userID(r))
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		sub = nil
	case err != nil:
		s.fail(w, r, err)
		return
	}
	s.ok(w, s.summarize(sub))
}

// current loads the caller's record; a missing record yields nil.
func (s *server) current(r *http.Request) (*subscription.Subscription, error) {
	sub, err := s.Subscriptions.Get(r.Context(), s.userID(r))
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return nil, nil
	}
	return sub, err
}
