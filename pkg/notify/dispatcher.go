package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/email"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/email/templates"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
)

// Dispatcher renders lifecycle emails and hands them to an email.Sender.
type Dispatcher struct {
	sender email.Sender
	cfg    Config
	logger *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a Dispatcher. sender may be nil only in dry-run mode.
func NewDispatcher(sender email.Sender, cfg Config, opts ...DispatcherOption) *Dispatcher {
	if sender == nil && !cfg.DryRun {
		panic("notify: email sender is required unless dry-run is enabled")
	}
	d := &Dispatcher{sender: sender, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(logger.Component("notify"))
	return d
}

// Send renders kind for to and delivers it. Failures are logged and
// reported in the result, never returned.
func (d *Dispatcher) Send(ctx context.Context, kind Kind, to Recipient, data Data) DeliveryResult {
	res := DeliveryResult{Kind: kind}
	log := d.logger.With(logger.Notification(string(kind)))

	if to.Email == "" {
		res.Err = ErrNoRecipient
		log.WarnContext(ctx, "notification skipped", logger.Error(res.Err))
		return res
	}

	msg, err := compose(kind, to, d.withLinks(data))
	if err != nil {
		res.Err = err
		log.ErrorContext(ctx, "notification not composed", logger.Error(err))
		return res
	}
	html, err := templates.Render(ctx, msg.body)
	if err != nil {
		res.Err = errors.Join(ErrRenderFailed, err)
		log.ErrorContext(ctx, "notification not rendered", logger.Error(err))
		return res
	}

	if d.cfg.DryRun {
		log.InfoContext(ctx, "dry-run notification",
			slog.String("to", to.Email),
			slog.String("subject", msg.subject),
			slog.Int("html_bytes", len(html)),
		)
		res.Delivered = true
		res.MessageID = DryRunMessageID
		return res
	}

	id, err := d.sender.Send(ctx, email.Message{
		To:       to.Email,
		Subject:  msg.subject,
		HTML:     html,
		Tag:      string(kind),
		Metadata: map[string]string{"kind": string(kind)},
	})
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		log.ErrorContext(ctx, "notification delivery failed", logger.Error(err))
		return res
	}

	res.Delivered = true
	res.MessageID = id
	log.InfoContext(ctx, "notification sent", logger.MessageID(id))
	return res
}

func (d *Dispatcher) withLinks(data Data) Data {
	if data.UpdatePaymentURL == "" {
		data.UpdatePaymentURL = d.cfg.UpdatePaymentURL()
	}
	if data.DashboardURL == "" {
		data.DashboardURL = d.cfg.DashboardURL()
	}
	if data.PricingURL == "" {
		data.PricingURL = d.cfg.PricingURL()
	}
	return data
}
