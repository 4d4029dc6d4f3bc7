package notify

import (
	"fmt"
	"net/url"
	"strings"
)

// Config holds the links rendered into emails and the alert destination.
type Config struct {
	AppURL          string `env:"APP_URL,required"`
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	// DryRun logs messages instead of sending them.
	DryRun bool `env:"NOTIFY_DRY_RUN" envDefault:"false"`
}

// Validate checks that AppURL is an absolute http(s) URL.
func (c Config) Validate() error {
	u, err := url.Parse(c.AppURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: APP_URL must be an absolute http(s) URL", ErrInvalidConfig)
	}
	return nil
}

func (c Config) link(path string) string {
	return strings.TrimRight(c.AppURL, "/") + path
}

// UpdatePaymentURL is where users fix a failed payment.
func (c Config) UpdatePaymentURL() string { return c.link("/account/billing/update-payment") }

// DashboardURL is the signed-in landing page.
func (c Config) DashboardURL() string { return c.link("/dashboard") }

// PricingURL lists the plans.
func (c Config) PricingURL() string { return c.link("/pricing") }

// BillingURL is the account billing page.
func (c Config) BillingURL() string { return c.link("/account/billing") }
