package statemachine

import "fmt"

// Option configures a Table during construction.
type Option[S, E comparable, D any] func(*Table[S, E, D]) error

// TransitionOption configures guards and actions of a single transition.
type TransitionOption[S, E comparable, D any] func(*Transition[S, E, D])

// New builds a Table from options.
func New[S, E comparable, D any](opts ...Option[S, E, D]) (*Table[S, E, D], error) {
	t := &Table[S, E, D]{transitions: make(map[key[S, E]][]Transition[S, E, D])}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	if len(t.transitions) == 0 {
		return nil, ErrEmptyTable
	}
	return t, nil
}

// MustNew is like New but panics on error.
func MustNew[S, E comparable, D any](opts ...Option[S, E, D]) *Table[S, E, D] {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return t
}

// WithTransition adds a transition from -> to on event.
func WithTransition[S, E comparable, D any](from, to S, event E, opts ...TransitionOption[S, E, D]) Option[S, E, D] {
	return func(t *Table[S, E, D]) error {
		tr := Transition[S, E, D]{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&tr)
		}
		k := key[S, E]{from: from, event: event}
		t.transitions[k] = append(t.transitions[k], tr)
		return nil
	}
}

// WithTransitionFrom adds the same transition for several source states.
func WithTransitionFrom[S, E comparable, D any](from []S, to S, event E, opts ...TransitionOption[S, E, D]) Option[S, E, D] {
	return func(t *Table[S, E, D]) error {
		if len(from) == 0 {
			return fmt.Errorf("%w: no source states for event %s", ErrInvalidTransition, name(event))
		}
		for _, f := range from {
			if err := WithTransition(f, to, event, opts...)(t); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithGuard adds a guard. Nil guards are ignored.
func WithGuard[S, E comparable, D any](guard Guard[S, E, D]) TransitionOption[S, E, D] {
	return func(tr *Transition[S, E, D]) {
		if guard != nil {
			tr.Guards = append(tr.Guards, guard)
		}
	}
}

// WithAction adds an action. Nil actions are ignored.
func WithAction[S, E comparable, D any](action Action[S, E, D]) TransitionOption[S, E, D] {
	return func(tr *Transition[S, E, D]) {
		if action != nil {
			tr.Actions = append(tr.Actions, action)
		}
	}
}

func name(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
