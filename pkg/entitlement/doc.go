// Package entitlement decides whether a user may perform a plan-gated
// action.
//
// Evaluator.CheckAccess is pure: a missing record evaluates as the free plan,
// a suspended record is denied regardless of plan, and otherwise plan levels
// are compared (free < pro < enterprise). Unknown stored plans rank as free.
//
// Service loads the record and applies the evaluator:
//
//	res, err := svc.Check(ctx, userID, plan.Pro)
//	if err != nil {
//		return err // storage failure
//	}
//	if !res.Allowed {
//		// res.Reason is insufficient_plan, suspended or no_subscription
//	}
package entitlement
