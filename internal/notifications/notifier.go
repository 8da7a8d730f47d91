package notifications

import (
	"context"
	"log/slog"

	"quill/internal/content"
	"quill/internal/logging"
)

// Notifier receives the workflow after every persisted mutation.
type Notifier interface {
	NotifyUpdated(ctx context.Context, wf *content.Workflow) error
}

// Multi fans a notification out to several notifiers. Errors from individual
// notifiers are logged but don't stop the others.
type Multi struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewMulti creates a notifier that fans out to the non-nil notifiers given.
func NewMulti(logger *slog.Logger, notifiers ...Notifier) *Multi {
	if logger == nil {
		logger = logging.NewNop()
	}
	kept := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			kept = append(kept, n)
		}
	}
	return &Multi{notifiers: kept, logger: logger}
}

// NotifyUpdated implements Notifier. It returns the last error seen, if any.
func (m *Multi) NotifyUpdated(ctx context.Context, wf *content.Workflow) error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.NotifyUpdated(ctx, wf); err != nil {
			lastErr = err
			m.logger.Warn("notifier failed",
				logging.Error(err),
				logging.String(logging.FieldWorkflowID, wf.ID),
				logging.String(logging.FieldState, string(wf.State)),
				logging.String(logging.FieldEventType, "notifier_failed"),
			)
		}
	}
	return lastErr
}

// Nop discards all notifications.
type Nop struct{}

// NotifyUpdated implements Notifier.
func (Nop) NotifyUpdated(context.Context, *content.Workflow) error { return nil }
