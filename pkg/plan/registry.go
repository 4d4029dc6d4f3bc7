package plan

import (
	"fmt"
	"slices"
)

// Registry resolves plan identifiers to plans.
type Registry struct {
	plans map[ID]Plan
	order []ID
}

// NewRegistry validates plans and builds a Registry. A free plan with level 0
// is required because it is the fallback for unknown identifiers.
func NewRegistry(plans ...Plan) (*Registry, error) {
	r := &Registry{plans: make(map[ID]Plan, len(plans))}

	for _, p := range plans {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: empty plan id", ErrInvalidPlanConfiguration)
		}
		if _, dup := r.plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrInvalidPlanConfiguration, p.ID)
		}
		if p.Level < 0 {
			return nil, fmt.Errorf("%w: negative level for %q", ErrInvalidPlanConfiguration, p.ID)
		}
		p.Features = slices.Clone(p.Features)
		r.plans[p.ID] = p
		r.order = append(r.order, p.ID)
	}

	free, ok := r.plans[Free]
	if !ok {
		return nil, fmt.Errorf("%w: free plan is missing", ErrInvalidPlanConfiguration)
	}
	if free.Level != 0 {
		return nil, fmt.Errorf("%w: free plan must have level 0", ErrInvalidPlanConfiguration)
	}

	slices.SortStableFunc(r.order, func(a, b ID) int {
		return r.plans[a].Level - r.plans[b].Level
	})

	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on invalid plans.
func MustNewRegistry(plans ...Plan) *Registry {
	r, err := NewRegistry(plans...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns a Registry with the product plans.
func DefaultRegistry() *Registry {
	return MustNewRegistry(Defaults()...)
}

// Resolve returns the plan for id, or the Free plan when id is unknown or empty.
func (r *Registry) Resolve(id string) Plan {
	if p, ok := r.plans[ID(id)]; ok {
		return p
	}
	return r.plans[Free]
}

// Lookup returns the plan for id and whether it exists.
func (r *Registry) Lookup(id string) (Plan, bool) {
	p, ok := r.plans[ID(id)]
	return p, ok
}

// Level returns the plan level, 0 for unknown ids.
func (r *Registry) Level(id string) int {
	if p, ok := r.plans[ID(id)]; ok {
		return p.Level
	}
	return 0
}

// Covers reports whether the held plan satisfies the required plan.
func (r *Registry) Covers(held, required string) bool {
	return r.Level(held) >= r.Level(required)
}

// All returns the plans ordered by level.
func (r *Registry) All() []Plan {
	out := make([]Plan, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plans[id])
	}
	return out
}

// IsPaid reports whether id names a known paid plan.
func (r *Registry) IsPaid(id string) bool {
	p, ok := r.plans[ID(id)]
	return ok && p.IsPaid()
}
