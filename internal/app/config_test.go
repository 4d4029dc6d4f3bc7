package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/internal/app"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/admin"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/auth"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/billing"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/dunning"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/email"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/notify"
)

func validConfig() app.Config {
	return app.Config{
		Email: email.Config{
			Driver:              email.DriverPostmark,
			PostmarkServerToken: "server-token",
			SenderEmail:         "billing@example.com",
			SupportEmail:        "support@example.com",
		},
		Billing: billing.Config{
			Provider: billing.ProviderStripe,
			Stripe:   billing.StripeConfig{SecretKey: "sk_test_1", WebhookSecret: "whsec_1"},
		},
		Dunning: dunning.DefaultConfig(),
		Notify:  notify.Config{AppURL: "https://app.example.com"},
		Auth:    auth.Config{JWTSecret: "secret"},
		Admin:   admin.Config{},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, validConfig().Validate())
	})

	t.Run("reports every broken section", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Billing.Stripe.SecretKey = ""
		cfg.Auth.JWTSecret = ""
		cfg.Notify.AppURL = "app.example.com"

		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, billing.ErrMissingAPIKey)
		assert.ErrorIs(t, err, auth.ErrMissingSecret)
		assert.ErrorIs(t, err, notify.ErrInvalidConfig)
	})

	t.Run("dry run skips email", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Email = email.Config{}
		assert.Error(t, cfg.Validate())

		cfg.Notify.DryRun = true
		assert.NoError(t, cfg.Validate())
	})

	t.Run("admin ids must be uuids", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Admin.UserIDs = []string{"root"}
		assert.ErrorIs(t, cfg.Validate(), admin.ErrInvalidUserID)
	})
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	log, err := app.NewLogger(logger.Config{Env: logger.EnvProduction, Service: "billing"})
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = app.NewLogger(logger.Config{Level: "loud"})
	assert.Error(t, err)
}
