package subscription

import "slices"

// State is the payment-state machine state derived from a record.
type State string

const (
	StateActive    State = "active"
	StatePastDue   State = "past_due"
	StateSuspended State = "suspended"
	StateCanceled  State = "canceled"
)

func (s State) String() string { return string(s) }

// Trigger drives a transition.
type Trigger string

const (
	TriggerChargeFailed    Trigger = "charge_failed"
	TriggerChargeSucceeded Trigger = "charge_succeeded"
	TriggerCancel          Trigger = "cancel"
	TriggerGraceElapsed    Trigger = "grace_elapsed"
	TriggerDunningNotice   Trigger = "dunning_notice"
	TriggerAdminSuspend    Trigger = "admin_suspend"
	TriggerAdminRestore    Trigger = "admin_restore"
	TriggerCheckout        Trigger = "checkout_completed"
)

func (t Trigger) String() string { return string(t) }

// BillingStatus is the processor-side status, normalized.
type BillingStatus string

const (
	BillingActive     BillingStatus = "active"
	BillingTrialing   BillingStatus = "trialing"
	BillingPastDue    BillingStatus = "past_due"
	BillingCanceled   BillingStatus = "canceled"
	BillingIncomplete BillingStatus = "incomplete"
)

// NormalizeBillingStatus maps raw processor statuses onto BillingStatus.
// Unknown values map to incomplete.
func NormalizeBillingStatus(raw string) BillingStatus {
	switch raw {
	case "active":
		return BillingActive
	case "trialing":
		return BillingTrialing
	case "past_due", "unpaid":
		return BillingPastDue
	case "canceled", "cancelled", "incomplete_expired":
		return BillingCanceled
	default:
		return BillingIncomplete
	}
}

// AppStatus gates access inside the application.
type AppStatus string

const (
	AppActive    AppStatus = "active"
	AppSuspended AppStatus = "suspended"
)

// DunningStage is the last dunning checkpoint whose notification was sent.
type DunningStage string

const (
	StageNone  DunningStage = "none"
	StageDay3  DunningStage = "day3"
	StageDay7  DunningStage = "day7"
	StageDay14 DunningStage = "day14"
)

var stageOrder = []DunningStage{StageNone, StageDay3, StageDay7, StageDay14}

// Rank orders stages; unknown and empty stages rank as none.
func (s DunningStage) Rank() int {
	if i := slices.Index(stageOrder, s); i > 0 {
		return i
	}
	return 0
}

// After reports whether s is a later checkpoint than other.
func (s DunningStage) After(other DunningStage) bool {
	return s.Rank() > other.Rank()
}

// EventKind is the normalized type of a processor event.
type EventKind string

const (
	EventCheckoutCompleted    EventKind = "checkout_completed"
	EventSubscriptionUpdated  EventKind = "subscription_updated"
	EventSubscriptionCanceled EventKind = "subscription_canceled"
	EventChargeFailed         EventKind = "charge_failed"
	EventChargeSucceeded      EventKind = "charge_succeeded"
	EventInvoiceFinalized     EventKind = "invoice_finalized"
	EventTrialWillEnd         EventKind = "trial_will_end"
)

// Informational reports whether the kind is recorded without a state change.
func (k EventKind) Informational() bool {
	return k == EventInvoiceFinalized || k == EventTrialWillEnd
}

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventCheckoutCompleted, EventSubscriptionUpdated, EventSubscriptionCanceled,
		EventChargeFailed, EventChargeSucceeded, EventInvoiceFinalized, EventTrialWillEnd:
		return true
	}
	return false
}

// Reasons an event is recorded but leaves the record untouched.
const (
	IgnoreUnknownCustomer   = "unknown_customer"
	IgnoreStale             = "stale_event"
	IgnoreTerminal          = "subscription_canceled"
	IgnoreNoSubscription    = "not_a_subscription_invoice"
	IgnoreInformational     = "informational"
	IgnoreNoTransition      = "no_transition"
	IgnoreOtherSubscription = "other_subscription"
)

// Suspension reasons.
const (
	SuspendReasonDunning = "dunning"
	AdminReasonPrefix    = "admin:"
)

// ActorSystem marks changes made by webhooks and the scheduler.
const ActorSystem = "system"
