package statemachine

import "context"

// Action executes side effects during a transition. Returning an error aborts it.
type Action[S, E comparable, D any] func(ctx context.Context, from, to S, event E, data D) error

// Guard decides whether a transition may proceed.
type Guard[S, E comparable, D any] func(ctx context.Context, from S, event E, data D) bool

// Transition defines a state change triggered by an event.
type Transition[S, E comparable, D any] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E, D]  // all must pass
	Actions []Action[S, E, D] // run in order before the target state is returned
}

type key[S, E comparable] struct {
	from  S
	event E
}

// Table is an immutable set of transitions.
type Table[S, E comparable, D any] struct {
	transitions map[key[S, E]][]Transition[S, E, D]
}

// Fire finds the first transition from `from` on event whose guards pass,
// runs its actions and returns the target state.
func (t *Table[S, E, D]) Fire(ctx context.Context, from S, event E, data D) (S, error) {
	tr, err := t.find(ctx, from, event, data)
	if err != nil {
		return from, err
	}

	for _, action := range tr.Actions {
		if err := action(ctx, from, tr.To, event, data); err != nil {
			return from, &ActionError{From: name(from), Event: name(event), Err: err}
		}
	}

	return tr.To, nil
}

// Next returns the state Fire would move to without running actions.
func (t *Table[S, E, D]) Next(ctx context.Context, from S, event E, data D) (S, error) {
	tr, err := t.find(ctx, from, event, data)
	if err != nil {
		return from, err
	}
	return tr.To, nil
}

// CanFire reports whether event has an allowed transition from `from`.
func (t *Table[S, E, D]) CanFire(ctx context.Context, from S, event E, data D) bool {
	_, err := t.find(ctx, from, event, data)
	return err == nil
}

// Events lists the events that have at least one transition defined from `from`.
func (t *Table[S, E, D]) Events(from S) []E {
	var events []E
	for k := range t.transitions {
		if k.from == from {
			events = append(events, k.event)
		}
	}
	return events
}

func (t *Table[S, E, D]) find(ctx context.Context, from S, event E, data D) (*Transition[S, E, D], error) {
	candidates := t.transitions[key[S, E]{from: from, event: event}]
	if len(candidates) == 0 {
		return nil, NewErrNoTransitionAvailable(name(from), name(event))
	}

	for i := range candidates {
		if passes(ctx, candidates[i].Guards, from, event, data) {
			return &candidates[i], nil
		}
	}

	return nil, NewErrTransitionRejected(name(from), name(event))
}

func passes[S, E comparable, D any](ctx context.Context, guards []Guard[S, E, D], from S, event E, data D) bool {
	for _, g := range guards {
		if !g(ctx, from, event, data) {
			return false
		}
	}
	return true
}
