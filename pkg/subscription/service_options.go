package subscription

import (
	"log/slog"
	"time"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithGracePolicy sets when an outstanding payment suspends access.
// Defaults to FixedGrace(DefaultSuspendAfter).
func WithGracePolicy(p GracePolicy) ServiceOption {
	return func(s *service) {
		if p != nil {
			s.grace = p
		}
	}
}

// WithNotifier sets the user notification sink.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *service) {
		s.notifier = n
	}
}

// WithAlerter sets the ops alert sink.
func WithAlerter(a Alerter) ServiceOption {
	return func(s *service) {
		s.alerter = a
	}
}

// WithAuditLogger sets where applied transitions are audited.
func WithAuditLogger(a AuditLogger) ServiceOption {
	return func(s *service) {
		s.audit = a
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithRegistry sets the plan registry used for display names.
func WithRegistry(r *plan.Registry) ServiceOption {
	return func(s *service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxAttempts sets how often a transaction is retried after a version
// conflict. Defaults to 3.
func WithMaxAttempts(n int) ServiceOption {
	return func(s *service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}
