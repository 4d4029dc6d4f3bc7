package entitlement

import (
	"context"
	"fmt"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/subscription"
)

// Reason explains a denial.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonInsufficientPlan Reason = "insufficient_plan"
	ReasonSuspended        Reason = "suspended"
	ReasonNoSubscription   Reason = "no_subscription"
)

// Result is the outcome of an entitlement check. It is never persisted.
type Result struct {
	Allowed   bool                   `json:"allowed"`
	Plan      plan.ID                `json:"plan"`
	Required  plan.ID                `json:"required"`
	AppStatus subscription.AppStatus `json:"app_status"`
	Reason    Reason                 `json:"reason,omitempty"`
}

// Err returns nil when allowed and an ErrAccessDenied wrap otherwise.
func (r Result) Err() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAccessDenied, r.Reason)
}

type resultCtxKey struct{}

// WithResult stores r in ctx for downstream handlers.
func WithResult(ctx context.Context, r Result) context.Context {
	return context.WithValue(ctx, resultCtxKey{}, r)
}

// ResultFromContext returns the Result stored by WithResult.
func ResultFromContext(ctx context.Context) (Result, bool) {
	r, ok := ctx.Value(resultCtxKey{}).(Result)
	return r, ok
}
