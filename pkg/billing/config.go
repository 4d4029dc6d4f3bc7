package billing

import (
	"fmt"
	"log/slog"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
)

// Provider names.
const (
	ProviderStripe = "stripe"
	ProviderPaddle = "paddle"
)

// Config selects and configures the payment processor.
type Config struct {
	Provider string `env:"BILLING_PROVIDER" envDefault:"stripe"`
	Stripe   StripeConfig
	Paddle   PaddleConfig
	Prices   plan.CatalogConfig
}

// Validate checks the settings of the selected provider.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderStripe:
		return c.Stripe.Validate()
	case ProviderPaddle:
		return c.Paddle.Validate()
	}
	return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
}

// New builds the configured Provider.
func New(cfg Config, catalog *plan.Catalog, log *slog.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = plan.NewCatalog(cfg.Prices)
	}
	if cfg.Provider == ProviderPaddle {
		return NewPaddleProvider(cfg.Paddle, catalog, log)
	}
	return NewStripeProvider(cfg.Stripe, catalog, WithStripeLogger(log))
}
