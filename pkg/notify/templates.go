package notify

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"
)

const dateLayout = "January 2, 2006"

// cancellationRetention is how long account data is kept after an
// immediate cancellation.
const cancellationRetention = 30

type message struct {
	subject string
	body    templ.Component
}

// block is one piece of an email body.
type block interface {
	write(w io.Writer) error
}

type paragraph string

func (p paragraph) write(w io.Writer) error {
	_, err := fmt.Fprintf(w, `<p style="margin:0 0 16px;font-size:15px;line-height:1.6;color:#1f2937">%s</p>`, templ.EscapeString(string(p)))
	return err
}

type warning string

func (p warning) write(w io.Writer) error {
	_, err := fmt.Fprintf(w, `<p style="margin:0 0 16px;padding:12px;border-radius:6px;background:#fef2f2;font-size:15px;color:#991b1b">%s</p>`, templ.EscapeString(string(p)))
	return err
}

type button struct {
	label string
	href  string
}

func (b button) write(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		`<p style="margin:24px 0"><a href="%s" style="display:inline-block;padding:12px 20px;border-radius:6px;background:#2563eb;color:#ffffff;text-decoration:none;font-weight:600">%s</a></p>`,
		templ.EscapeString(string(templ.URL(b.href))), templ.EscapeString(b.label))
	return err
}

// layout wraps blocks in the shared email frame.
func layout(title string, blocks ...block) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			`<!DOCTYPE html><html><head><meta charset="utf-8"><title>%s</title></head><body style="margin:0;padding:24px;background:#f3f4f6;font-family:Helvetica,Arial,sans-serif"><div style="max-width:560px;margin:0 auto;padding:32px;background:#ffffff;border-radius:8px"><h1 style="margin:0 0 24px;font-size:20px;color:#111827">%s</h1>`,
			templ.EscapeString(title), templ.EscapeString(title)); err != nil {
			return err
		}
		for _, b := range blocks {
			if b == nil {
				continue
			}
			if err := b.write(w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div></body></html>`)
		return err
	})
}

func greeting(r Recipient) paragraph {
	if r.Name == "" {
		return "Hello,"
	}
	return paragraph(fmt.Sprintf("Hello %s,", r.Name))
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func planName(d Data) string {
	if d.PlanName == "" {
		return "your plan"
	}
	return "the " + d.PlanName + " plan"
}

// compose builds the subject and body for kind.
func compose(kind Kind, r Recipient, d Data) (message, error) {
	switch kind {
	case KindPaymentReminderDay3:
		const subject = "Your payment did not go through"
		return message{subject, layout(subject,
			greeting(r),
			paragraph(fmt.Sprintf("We could not charge your card for %s. Please update your payment method to keep your subscription active.", planName(d))),
			suspendNotice(d),
			button{"Update payment method", d.UpdatePaymentURL},
		)}, nil

	case KindPaymentReminderDay7:
		const subject = "Reminder: please update your payment method"
		return message{subject, layout(subject,
			greeting(r),
			paragraph(fmt.Sprintf("Your payment for %s is still outstanding. We will keep retrying, but the quickest fix is to update your card.", planName(d))),
			suspendNotice(d),
			button{"Update payment method", d.UpdatePaymentURL},
		)}, nil

	case KindSuspensionWarning:
		const subject = "Final notice: your account will be suspended"
		return message{subject, layout(subject,
			greeting(r),
			warning(fmt.Sprintf("Payment for %s has been failing for two weeks. Access to paid features will be suspended unless the payment succeeds.", planName(d))),
			suspendNotice(d),
			button{"Update payment method", d.UpdatePaymentURL},
		)}, nil

	case KindSuspensionConfirmed:
		const subject = "Your account has been suspended"
		return message{subject, layout(subject,
			greeting(r),
			warning("We could not collect payment, so access to your account has been suspended."),
			paragraph("Your data is safe. Access is restored automatically as soon as the outstanding payment succeeds."),
			button{"Update payment method", d.UpdatePaymentURL},
		)}, nil

	case KindServiceRestored:
		const subject = "Your account is active again"
		return message{subject, layout(subject,
			greeting(r),
			paragraph(fmt.Sprintf("Thanks, your payment went through and %s is fully available again.", planName(d))),
			button{"Go to dashboard", d.DashboardURL},
		)}, nil

	case KindCancellationConfirmed:
		const subject = "Your subscription has been canceled"
		var when block
		if d.Immediate || d.PeriodEnd == nil {
			when = paragraph(fmt.Sprintf("Your subscription ended today and your account is now on the free plan. Your data is kept for %d days.", cancellationRetention))
		} else {
			when = paragraph(fmt.Sprintf("You keep access to %s until %s. After that your account moves to the free plan.", planName(d), date(d.PeriodEnd)))
		}
		return message{subject, layout(subject,
			greeting(r),
			when,
			paragraph("Changed your mind? You can subscribe again at any time."),
			button{"See plans", d.PricingURL},
		)}, nil
	}
	return message{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func suspendNotice(d Data) block {
	if d.SuspendOn == nil {
		return nil
	}
	return paragraph(fmt.Sprintf("If the payment is not resolved, access will be suspended on %s.", date(d.SuspendOn)))
}
