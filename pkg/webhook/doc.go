// Package webhook posts JSON payloads to outgoing HTTP endpoints, such as
// Slack incoming webhooks, retrying temporary failures with exponential
// backoff. Client errors other than 408, 425 and 429 are not retried.
package webhook
