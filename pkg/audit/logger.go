package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextExtractor extracts string values from context.
// It returns (value, found) where found indicates if extraction succeeded.
type contextExtractor func(context.Context) (string, bool)

// Logger builds audit events and hands them to a Writer.
type Logger struct {
	writer             Writer
	userIDExtractor    contextExtractor
	actorIDExtractor   contextExtractor
	requestIDExtractor contextExtractor
	now                func() time.Time
}

// Option configures Logger behavior during initialization.
type Option func(*Logger)

func WithUserIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) {
		l.userIDExtractor = fn
	}
}

func WithActorIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) {
		l.actorIDExtractor = fn
	}
}

func WithRequestIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) {
		l.requestIDExtractor = fn
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates a new audit logger.
func NewLogger(w Writer, opts ...Option) *Logger {
	if w == nil {
		panic("audit: writer cannot be nil")
	}

	l := &Logger{writer: w, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records a successful action.
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event := l.eventFromContext(ctx, action, ResultSuccess)
	for _, opt := range opts {
		opt(&event)
	}
	if err := event.Validate(); err != nil {
		return err
	}
	return l.writer.Store(ctx, event)
}

// LogError records a failed action.
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	event := l.eventFromContext(ctx, action, ResultFailure)
	if err != nil {
		event.Error = err.Error()
	}
	for _, opt := range opts {
		opt(&event)
	}
	if err := event.Validate(); err != nil {
		return err
	}
	return l.writer.Store(ctx, event)
}

func (l *Logger) eventFromContext(ctx context.Context, action string, result Result) Event {
	event := Event{
		ID:        uuid.New().String(),
		Action:    action,
		Result:    result,
		CreatedAt: l.now().UTC(),
	}
	if l.userIDExtractor != nil {
		if v, ok := l.userIDExtractor(ctx); ok {
			event.UserID = v
		}
	}
	if l.actorIDExtractor != nil {
		if v, ok := l.actorIDExtractor(ctx); ok {
			event.ActorID = v
		}
	}
	if l.requestIDExtractor != nil {
		if v, ok := l.requestIDExtractor(ctx); ok {
			event.RequestID = v
		}
	}
	return event
}
