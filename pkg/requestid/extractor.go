package requestid

import (
	"context"
	"log/slog"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
)

// LoggerExtractor adds request_id to log records.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := FromContext(ctx); id != "" {
			return logger.RequestID(id), true
		}
		return slog.Attr{}, false
	}
}

// Extract suits audit.WithRequestIDExtractor.
func Extract(ctx context.Context) (string, bool) {
	id := FromContext(ctx)
	return id, id != ""
}
