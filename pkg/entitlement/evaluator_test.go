package entitlement_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/entitlement"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

func record(id plan.ID, app subscription.AppStatus) *subscription.Subscription {
	return &subscription.Subscription{
		UserID:        uuid.New(),
		PlanID:        id,
		BillingStatus: subscription.BillingActive,
		AppStatus:     app,
	}
}

func TestEvaluator_CheckAccess(t *testing.T) {
	t.Parallel()

	e := entitlement.NewEvaluator(nil)

	tests := []struct {
		name     string
		sub      *subscription.Subscription
		required plan.ID
		allowed  bool
		plan     plan.ID
		reason   entitlement.Reason
	}{
		{name: "absent record, free action", sub: nil, required: plan.Free, allowed: true, plan: plan.Free},
		{name: "absent record, pro action", sub: nil, required: plan.Pro, plan: plan.Free, reason: entitlement.ReasonInsufficientPlan},
		{name: "pro below enterprise", sub: record(plan.Pro, subscription.AppActive), required: plan.Enterprise, plan: plan.Pro, reason: entitlement.ReasonInsufficientPlan},
		{name: "suspended enterprise denied free action", sub: record(plan.Enterprise, subscription.AppSuspended), required: plan.Free, plan: plan.Enterprise, reason: entitlement.ReasonSuspended},
		{name: "pro meets pro", sub: record(plan.Pro, subscription.AppActive), required: plan.Pro, allowed: true, plan: plan.Pro},
		{name: "enterprise meets pro", sub: record(plan.Enterprise, subscription.AppActive), required: plan.Pro, allowed: true, plan: plan.Enterprise},
		{name: "unknown stored plan ranks as free", sub: record("platinum", subscription.AppActive), required: plan.Pro, plan: plan.Free, reason: entitlement.ReasonInsufficientPlan},
		{name: "unknown stored plan still gets free actions", sub: record("", subscription.AppActive), required: plan.Free, allowed: true, plan: plan.Free},
		{name: "unknown required plan is denied", sub: record(plan.Enterprise, subscription.AppActive), required: "ultra", plan: plan.Enterprise, reason: entitlement.ReasonInsufficientPlan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := e.CheckAccess(tt.sub, tt.required)
			assert.Equal(t, tt.allowed, res.Allowed)
			assert.Equal(t, tt.plan, res.Plan)
			assert.Equal(t, tt.reason, res.Reason)
			if tt.allowed {
				assert.NoError(t, res.Err())
			} else {
				assert.ErrorIs(t, res.Err(), entitlement.ErrAccessDenied)
			}
		})
	}
}

func TestEvaluator_Monotonicity(t *testing.T) {
	t.Parallel()

	e := entitlement.NewEvaluator(nil)
	reg := plan.DefaultRegistry()
	all := reg.All()

	for _, a := range all {
		for _, b := range all {
			if a.Level < b.Level {
				continue
			}
			for _, req := range all {
				underB := e.CheckAccess(record(b.ID, subscription.AppActive), req.ID)
				underA := e.CheckAccess(record(a.ID, subscription.AppActive), req.ID)
				if underB.Allowed {
					assert.True(t, underA.Allowed, "%s allowed %s under %s but not under %s", req.ID, req.ID, b.ID, a.ID)
				}
			}
		}
	}
}

func TestEvaluator_SuspensionPrecedence(t *testing.T) {
	t.Parallel()

	e := entitlement.NewEvaluator(nil)
	for _, p := range plan.DefaultRegistry().All() {
		for _, req := range plan.DefaultRegistry().All() {
			res := e.CheckAccess(record(p.ID, subscription.AppSuspended), req.ID)
			assert.False(t, res.Allowed)
			assert.Equal(t, entitlement.ReasonSuspended, res.Reason)
			assert.Equal(t, subscription.AppSuspended, res.AppStatus)
		}
	}
}
