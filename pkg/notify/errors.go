package notify

import "errors"

var (
	ErrUnknownKind     = errors.New("notify: unknown notification kind")
	ErrNoRecipient     = errors.New("notify: recipient has no email address")
	ErrRenderFailed    = errors.New("notify: failed to render template")
	ErrDeliveryFailed  = errors.New("notify: delivery failed")
	ErrRecipientLookup = errors.New("notify: failed to resolve recipient")
	ErrInvalidConfig   = errors.New("notify: invalid config")
)
