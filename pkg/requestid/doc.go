// Package requestid propagates a per-request correlation id.
//
// Middleware accepts a well-formed X-Request-ID from the caller (such as a
// load balancer) or generates one, echoes it in the response and stores it
// in the request context, where the logger and audit extractors read it.
package requestid
