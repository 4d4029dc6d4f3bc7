// Package logger builds the structured slog.Logger shared by the billing
// service and provides attribute helpers that keep field names consistent
// across packages.
//
// New returns a *slog.Logger whose handler is wrapped by LogHandlerDecorator.
// The decorator runs registered ContextExtractor callbacks on every record so
// request-scoped values (request id, user id) show up without threading them
// through every call site.
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "billing"),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "payment failed",
//		logger.UserID(sub.UserID),
//		logger.EventID(ev.ID),
//		logger.Error(err),
//	)
//
// NewFromConfig builds the same logger from Config, which is populated from
// LOG_LEVEL, LOG_FORMAT and APP_ENV.
package logger
