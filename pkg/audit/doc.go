// Package audit records who changed a subscription, when, and with what
// result.
//
// A Logger builds Event values from the request context (user, actor and
// request id extractors) plus per-call options and hands them to a Writer.
// Writers are usually backed by Postgres; wrap a BatchWriter with
// NewAsyncWriter to buffer events and write them in batches off the request
// path:
//
//	w, closeFn := audit.NewAsyncWriter(store, audit.AsyncOptions{})
//	defer closeFn(ctx)
//	log := audit.NewLogger(w, audit.WithActorIDExtractor(auth.ActorFromContext))
//	_ = log.Log(ctx, "subscription.suspend", audit.WithResource("subscription", id))
package audit
