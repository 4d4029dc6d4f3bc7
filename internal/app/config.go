package app

import (
	"errors"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/admin"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/auth"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/billing"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/dunning"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/email"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/httpserver"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/notify"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/pg"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/redis"
)

// Config is the full service configuration, read from the environment.
type Config struct {
	Log     logger.Config
	DB      pg.Config
	Redis   redis.Config
	HTTP    httpserver.Config
	Email   email.Config
	Billing billing.Config
	Dunning dunning.Config
	Notify  notify.Config
	Auth    auth.Config
	Admin   admin.Config

	// CronSecret authorizes the HTTP dunning trigger.
	CronSecret  string `env:"CRON_SECRET"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	// TrustedProxyHeaders name the headers carrying the caller address,
	// in priority order. Leave empty when not behind a proxy.
	TrustedProxyHeaders []string `env:"TRUSTED_PROXY_HEADERS" envSeparator:","`
}

// Validate checks every section. The email section is skipped in dry-run
// mode since nothing is sent.
func (c Config) Validate() error {
	errs := []error{
		c.Billing.Validate(),
		c.Dunning.Validate(),
		c.Notify.Validate(),
		c.Auth.Validate(),
		c.Admin.Validate(),
	}
	if !c.Notify.DryRun {
		errs = append(errs, c.Email.Validate())
	}
	return errors.Join(errs...)
}
