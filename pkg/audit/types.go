package audit

import (
	"context"
	"fmt"
	"time"
)

// Result represents the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Event is a single audit log entry.
type Event struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Result     Result         `json:"result"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate checks if the event has all required fields.
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	if e.Result != ResultSuccess && e.Result != ResultFailure {
		return fmt.Errorf("%w: unknown result %q", ErrEventValidation, e.Result)
	}
	return nil
}

// EventOption applies configuration to an Event during creation.
type EventOption func(*Event)

// Writer persists audit events.
type Writer interface {
	Store(ctx context.Context, event Event) error
}

// BatchWriter persists several events at once. Implementations must be
// atomic: either every event is stored or none is.
type BatchWriter interface {
	StoreBatch(ctx context.Context, events []Event) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(ctx context.Context, event Event) error

func (f WriterFunc) Store(ctx context.Context, event Event) error {
	return f(ctx, event)
}
