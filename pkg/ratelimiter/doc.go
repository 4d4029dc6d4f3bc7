// Package ratelimiter enforces per-key request limits over fixed windows,
// such as "5 checkout sessions per user per minute".
//
// Counters live in a Store: MemoryStore for a single instance, RedisStore
// when several instances share limits. Middleware applies a Rule to HTTP
// requests and sets the X-RateLimit-* headers.
package ratelimiter
