// Package subscription owns the per-user subscription record and the
// payment-state machine that moves it between active, past_due, suspended
// and canceled.
//
// Every mutation goes through Service. Processor webhooks arrive as Event
// values (see package billing) and are applied by HandleEvent, which records
// the event id and updates the record in a single store transaction:
//
//	out, err := svc.HandleEvent(ctx, ev)
//	switch {
//	case err != nil:
//		// not recorded, the processor may retry
//	case out.Duplicate:
//		// already processed, nothing changed
//	}
//
// Time-based suspension (EnforceGrace), dunning checkpoint markers
// (AdvanceDunning) and manual admin actions (Suspend, Restore) use the same
// transition table. Notifications, audit entries and ops alerts are emitted
// after the transaction commits and never undo a transition.
//
// Records are updated with optimistic concurrency: Store.Update fails with
// ErrVersionConflict when the stored version moved, and the service retries
// the whole transaction.
package subscription
