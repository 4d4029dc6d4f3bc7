package admin

import (
	"strings"

	"github.com/google/uuid"
)

// Config holds the static admin allowlist.
type Config struct {
	UserIDs []string `env:"ADMIN_USER_IDS" envSeparator:","`
}

func (c Config) allowlist() map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{}, len(c.UserIDs))
	for _, raw := range c.UserIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}

// Validate rejects malformed allowlist entries.
func (c Config) Validate() error {
	for _, raw := range c.UserIDs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, err := uuid.Parse(raw); err != nil {
			return ErrInvalidUserID
		}
	}
	return nil
}
