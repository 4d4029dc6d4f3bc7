package billing

import "errors"

var (
	ErrMissingAPIKey             = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret      = errors.New("billing provider webhook secret is required")
	ErrUnknownProvider           = errors.New("unknown billing provider")
	ErrInvalidEnvironment        = errors.New("invalid billing provider environment")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrUnsupportedEvent          = errors.New("unsupported webhook event")
	ErrMalformedEvent            = errors.New("malformed webhook event")
	ErrNotSupported              = errors.New("operation not supported by billing provider")
	ErrNoCheckoutURL             = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL               = errors.New("no portal URL returned from provider")
	ErrMissingCustomerID         = errors.New("provider customer ID not available")
	ErrMissingSubscriptionID     = errors.New("provider subscription ID is required")
	ErrMissingPriceID            = errors.New("price ID is required")
	ErrNoOpenInvoice             = errors.New("no open invoice to retry")
	ErrPaymentDeclined           = errors.New("payment was declined")
	ErrProvider                  = errors.New("billing provider error")
	ErrAlreadyCanceled           = errors.New("subscription already canceled at provider")
)
