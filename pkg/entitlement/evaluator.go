package entitlement

import (
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

// Evaluator compares a subscription record against a required plan.
type Evaluator struct {
	registry *plan.Registry
}

// NewEvaluator creates an Evaluator. A nil registry uses plan.DefaultRegistry.
func NewEvaluator(registry *plan.Registry) *Evaluator {
	if registry == nil {
		registry = plan.DefaultRegistry()
	}
	return &Evaluator{registry: registry}
}

// CheckAccess evaluates sub, which may be nil, against required. An unknown
// required plan is denied.
func (e *Evaluator) CheckAccess(sub *subscription.Subscription, required plan.ID) Result {
	res := Result{
		Plan:      plan.Free,
		Required:  required,
		AppStatus: subscription.AppActive,
	}
	if _, ok := e.registry.Lookup(string(required)); !ok {
		res.Reason = ReasonInsufficientPlan
		if sub != nil {
			res.Plan = e.registry.Resolve(string(sub.PlanID)).ID
			res.AppStatus = sub.AppStatus
		}
		return res
	}
	need := e.registry.Level(string(required))

	if sub == nil {
		res.Allowed = need == 0
		if !res.Allowed {
			res.Reason = ReasonInsufficientPlan
		}
		return res
	}

	res.Plan = e.registry.Resolve(string(sub.PlanID)).ID
	res.AppStatus = sub.AppStatus
	if sub.IsSuspended() {
		res.Reason = ReasonSuspended
		return res
	}

	res.Allowed = e.registry.Level(string(sub.PlanID)) >= need
	if !res.Allowed {
		res.Reason = ReasonInsufficientPlan
	}
	return res
}

// Deny builds a denial for a record that could not be read.
func (e *Evaluator) Deny(required plan.ID, reason Reason) Result {
	return Result{
		Plan:      plan.Free,
		Required:  required,
		AppStatus: subscription.AppActive,
		Reason:    reason,
	}
}
