package logging

import (
	"log/slog"
	"time"
)

// Structured keys shared by every quill log line.
const (
	FieldComponent     = "component"
	FieldWorkflowID    = "workflow_id"
	FieldState         = "state"
	FieldWorker        = "worker"
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering, e.g. "stage_failed".
	FieldEventType = "event_type"
	// FieldErrorHint is the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact says what the user loses when a warning fires.
	FieldImpact = "impact"
	FieldAlert  = "alert"
)

// Attr is re-exported so callers need not import log/slog for attributes.
type Attr = slog.Attr

func String(key, value string) Attr { return slog.String(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

// Alert marks a line that should stand out when scanning logs.
func Alert(kind string) Attr { return slog.String(FieldAlert, kind) }

// Error attaches err under the "error" key. A nil error is still recorded so
// the line shape stays stable.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func toArgs(attrs []Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}
