package workflow

import (
	"log/slog"

	"quill/internal/logging"
)

// cronLogger routes cron's own logging into slog. Routine scheduling chatter
// goes to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{logging.Error(err), logging.String(logging.FieldEventType, "cron_error")}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
