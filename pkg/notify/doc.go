// Package notify renders and delivers subscription lifecycle emails and
// posts operator alerts to Slack.
//
// Delivery is best effort: Dispatcher.Send never returns an error, it
// reports the outcome in a DeliveryResult so callers can log and count it
// without failing the state change that triggered the notification.
package notify
