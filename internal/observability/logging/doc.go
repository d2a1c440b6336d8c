// Package logging builds the slog loggers of the dispatcher, registrar and
// migrate commands and carries them through contexts.
//
// Services log JSON to stdout at LOG_LEVEL (debug, info, warn, error). Unless
// the level is error, records carry their source location. A logger derived with
// WithRequestID tags every record of one HTTP request, SQS batch or cron tick
// with request_id, so a dispatch run can be followed across its claims:
//
//	logger := logging.WithRequestID(ctx, slog.Default()).With(slog.String("run_id", runID))
//	logger.Warn("commit lost its claim", slog.String("dispatch_key", key))
package logging
