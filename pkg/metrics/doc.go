// Package metrics exposes Prometheus collectors for webhook processing,
// state transitions, notifications, dunning sweeps and HTTP requests.
//
// A Collector owns its registry; mount Handler on /metrics.
package metrics
