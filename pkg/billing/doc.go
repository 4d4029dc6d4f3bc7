// Package billing talks to the payment processor: hosted checkout and
// portal sessions, plan changes, cancellation, payment retries and webhook
// verification. Stripe and Paddle implement Provider; webhook payloads are
// normalized into subscription.Event values.
package billing
