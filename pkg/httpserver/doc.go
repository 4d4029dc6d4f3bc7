// Package httpserver runs an http.Handler with configured timeouts and a
// graceful shutdown on context cancellation or SIGINT/SIGTERM.
//
// HealthHandler serves liveness and readiness as JSON from a set of named
// dependency checks.
package httpserver
