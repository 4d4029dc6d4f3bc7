package email

import "fmt"

// Driver names.
const (
	DriverPostmark = "postmark"
	DriverDev      = "dev"
)

// Config holds email delivery settings. The Postmark tokens are only
// required by the postmark driver; the dev driver writes messages to DevDir.
type Config struct {
	Driver               string `env:"EMAIL_DRIVER" envDefault:"postmark"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

// Validate checks the settings for the selected driver.
func (c Config) Validate() error {
	if c.SenderEmail == "" {
		return fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(c.SenderEmail) {
		return fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if c.SupportEmail != "" && !emailRegex.MatchString(c.SupportEmail) {
		return fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}
	switch c.Driver {
	case DriverPostmark:
		if c.PostmarkServerToken == "" {
			return fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
		}
	case DriverDev:
		if c.DevDir == "" {
			return fmt.Errorf("%w: DevDir is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, c.Driver)
	}
	return nil
}

// New returns the Sender selected by cfg.Driver.
func New(cfg Config) (Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Driver == DriverDev {
		return NewDevSender(cfg.DevDir), nil
	}
	return NewPostmarkSender(cfg)
}
