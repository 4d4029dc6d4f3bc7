package auth

// Config holds token verification settings.
type Config struct {
	JWTSecret string `env:"AUTH_JWT_SECRET,required"`
	// Audience is matched against the aud claim when set.
	Audience string `env:"AUTH_JWT_AUDIENCE" envDefault:"authenticated"`
	Issuer   string `env:"AUTH_JWT_ISSUER"`
}

// Validate fails when no secret is configured.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingSecret
	}
	return nil
}
