// Package plan defines the subscription plans and their entitlement limits.
//
// The Registry is the fail-safe lookup used by every plan-gated feature:
// Resolve never returns an error and falls back to the Free plan for unknown
// or empty identifiers, so a corrupted record can only reduce access. Plan
// levels form the total order free(0) < pro(1) < enterprise(2).
//
// Catalog maps (plan, interval) pairs to payment processor price ids and
// back. It is loaded from STRIPE_PRICE_* environment variables and validated
// at startup.
package plan
