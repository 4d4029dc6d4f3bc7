package plan

import "fmt"

// ID identifies a plan.
type ID string

const (
	Free       ID = "free"
	Pro        ID = "pro"
	Enterprise ID = "enterprise"
)

func (id ID) String() string { return string(id) }

// Interval is the billing frequency of a paid plan.
type Interval string

const (
	Monthly Interval = "monthly"
	Yearly  Interval = "yearly"
)

// ParseInterval validates a billing interval.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case Monthly, Yearly:
		return Interval(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidInterval, s)
}

// Unlimited marks a limit without an upper bound.
const Unlimited = -1

// Limits are the consulting-session entitlements of a plan.
type Limits struct {
	MaxSessions        int `json:"max_sessions"`
	MaxTurnsPerSession int `json:"max_turns_per_session"`
	MaxTotalTurns      int `json:"max_total_turns"`
}

// IsUnlimited reports whether every limit is unbounded.
func (l Limits) IsUnlimited() bool {
	return l.MaxSessions == Unlimited && l.MaxTurnsPerSession == Unlimited && l.MaxTotalTurns == Unlimited
}

// AllowsSessions reports whether another session may be opened after used ones.
func (l Limits) AllowsSessions(used int) bool {
	return l.MaxSessions == Unlimited || used < l.MaxSessions
}

// AllowsTurns reports whether another turn fits in the session and total budgets.
func (l Limits) AllowsTurns(inSession, total int) bool {
	if l.MaxTurnsPerSession != Unlimited && inSession >= l.MaxTurnsPerSession {
		return false
	}
	return l.MaxTotalTurns == Unlimited || total < l.MaxTotalTurns
}

// Plan describes a subscription plan.
type Plan struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	PriceLabel  string   `json:"price_label"`
	Description string   `json:"description"`
	Level       int      `json:"level"`
	Limits      Limits   `json:"limits"`
	Features    []string `json:"features"`
}

// IsPaid reports whether the plan requires a payment method.
func (p Plan) IsPaid() bool {
	return p.Level > 0
}

// SessionsLabel renders the session allowance for plan cards.
func (p Plan) SessionsLabel() string {
	if p.Limits.IsUnlimited() {
		return "Unlimited sessions"
	}
	return fmt.Sprintf("%d sessions per month (%d turns each)", p.Limits.MaxSessions, p.Limits.MaxTurnsPerSession)
}

// Defaults returns the plans offered by the product.
func Defaults() []Plan {
	return []Plan{
		{
			ID:          Free,
			Name:        "Free",
			PriceLabel:  "¥0",
			Description: "Try AI consulting at no cost",
			Level:       0,
			Limits:      Limits{MaxSessions: 3, MaxTurnsPerSession: 15, MaxTotalTurns: 3 * 15},
			Features: []string{
				"Diagnosis in every category",
				"Summary only, no final report",
				"No card required",
			},
		},
		{
			ID:          Pro,
			Name:        "Pro",
			PriceLabel:  "¥35,000/month (¥30,000/month billed yearly)",
			Description: "Make AI consulting part of everyday work",
			Level:       1,
			Limits:      Limits{MaxSessions: 30, MaxTurnsPerSession: 30, MaxTotalTurns: 30 * 30},
			Features: []string{
				"Final report export",
				"Action plan drafting",
				"Consultation history and analytics",
				"Early access to new features",
			},
		},
		{
			ID:          Enterprise,
			Name:        "Enterprise",
			PriceLabel:  "From ¥120,000/month",
			Description: "Roll AI consulting out across the organisation",
			Level:       2,
			Limits:      Limits{MaxSessions: Unlimited, MaxTurnsPerSession: Unlimited, MaxTotalTurns: Unlimited},
			Features: []string{
				"Execution support with progress tracking",
				"Introductions to human consultants",
				"Custom diagnosis templates",
				"Dedicated onboarding and support",
				"Invoice payment",
			},
		},
	}
}
