package notify

import (
	"time"
)

// Kind identifies a lifecycle notification and selects its template.
type Kind string

const (
	KindNone                  Kind = ""
	KindPaymentReminderDay3   Kind = "payment_reminder_day3"
	KindPaymentReminderDay7   Kind = "payment_reminder_day7"
	KindSuspensionWarning     Kind = "suspension_warning_day14"
	KindSuspensionConfirmed   Kind = "suspension_confirmed"
	KindServiceRestored       Kind = "service_restored"
	KindCancellationConfirmed Kind = "cancellation_confirmed"
)

// Kinds lists every kind that has a template.
func Kinds() []Kind {
	return []Kind{
		KindPaymentReminderDay3,
		KindPaymentReminderDay7,
		KindSuspensionWarning,
		KindSuspensionConfirmed,
		KindServiceRestored,
		KindCancellationConfirmed,
	}
}

// Valid reports whether k has a template.
func (k Kind) Valid() bool {
	for _, v := range Kinds() {
		if k == v {
			return true
		}
	}
	return false
}

// Recipient is the addressee of a notification.
type Recipient struct {
	Email string
	Name  string
}

// Data carries the per-event values rendered into a template. URLs the
// dispatcher knows (billing, dashboard, pricing) are filled in when empty.
type Data struct {
	PlanName         string
	PeriodEnd        *time.Time
	FailureFirstSeen *time.Time
	// SuspendOn is the date access stops if payment is not fixed.
	SuspendOn *time.Time
	// Immediate marks a cancellation that took effect at once rather than
	// at the end of the paid period.
	Immediate bool

	UpdatePaymentURL string
	DashboardURL     string
	PricingURL       string
}

// DeliveryResult reports what happened to a single send.
type DeliveryResult struct {
	Kind      Kind
	Delivered bool
	MessageID string
	Err       error
}

// DryRunMessageID is returned as MessageID when sending is disabled.
const DryRunMessageID = "dry-run"
