// Package statemachine implements a stateless finite-state-machine transition
// table.
//
// A Table is built once with functional options and is safe for concurrent
// use. It does not hold a current state: the caller passes the state it
// loaded from storage, Fire evaluates guards, runs actions against the
// caller's data and returns the target state. Persisting the result is left
// to the caller, which keeps the table usable for many records at once.
//
// When several transitions share the same (from, event) pair, the first one
// whose guards all pass wins, so declaration order expresses priority.
//
//	table := statemachine.MustNew(
//		statemachine.WithTransition[State, Trigger, *Change](Active, PastDue, ChargeFailed,
//			statemachine.WithAction(markFailure)),
//		statemachine.WithTransition[State, Trigger, *Change](PastDue, Suspended, GraceElapsed,
//			statemachine.WithGuard(graceExhausted)),
//	)
//
//	next, err := table.Fire(ctx, sub.State(), ChargeFailed, change)
//
// Errors distinguish an undefined transition (IsNoTransitionAvailableError)
// from one blocked by guards (IsTransitionRejectedError).
package statemachine
