package workflow

import (
	"context"
	"errors"
	"fmt"

	"quill/internal/logging"
)

// Recover enqueues every resumable workflow and returns how many were
// accepted. It stops early when the queue is full.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	if m.resumer == nil {
		return 0, nil
	}
	ids, err := m.resumer.ResumableIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list resumable workflows: %w", err)
	}
	queued := 0
	for _, id := range ids {
		if err := m.Enqueue(ctx, id); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

func (m *Manager) sweep(ctx context.Context, trigger string) {
	queued, err := m.Recover(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrQueueFull):
		logging.WarnWithContext(m.logger, "recovery sweep stopped early", "recovery_queue_full",
			logging.String("trigger", trigger),
			logging.Int("queued", queued),
			logging.String(logging.FieldErrorHint, "raise workflow.queue_capacity or workflow.workers"),
			logging.String(logging.FieldImpact, "remaining workflows are picked up by the next sweep"),
		)
		return
	case ctx.Err() != nil, errors.Is(err, ErrSchedulerStopped):
		return
	default:
		m.setLastError(err)
		logging.WarnWithContext(m.logger, "recovery sweep failed", "recovery_failed",
			logging.String("trigger", trigger),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
			logging.String(logging.FieldImpact, "interrupted workflows are not resumed until the next sweep"),
		)
		return
	}
	if queued > 0 {
		m.logger.Info("recovery sweep queued workflows",
			logging.String(logging.FieldEventType, "recovery_sweep"),
			logging.String("trigger", trigger),
			logging.Int("queued", queued),
		)
	}
}
