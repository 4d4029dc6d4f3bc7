package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Sender delivers a rendered message and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Message is a single transactional email.
type Message struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	HTML     string            `json:"-"`
	Tag      string            `json:"tag,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks required fields and the recipient address.
func (m Message) Validate() error {
	to := strings.TrimSpace(m.To)
	switch {
	case to == "":
		return fmt.Errorf("%w: To is required", ErrInvalidParams)
	case !emailRegex.MatchString(to):
		return fmt.Errorf("%w: To must be a valid email address", ErrInvalidParams)
	case strings.TrimSpace(m.Subject) == "":
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	case strings.TrimSpace(m.HTML) == "":
		return fmt.Errorf("%w: HTML is required", ErrInvalidParams)
	}
	return nil
}
