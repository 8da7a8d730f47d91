package workflow

import (
	"context"
	"strings"

	"quill/internal/config"
)

// Enqueue schedules a step loop for id. Enqueuing an id that is already
// queued is a no-op; enqueuing an id that is running requests one more pass
// after the current one. Under the reject policy a full queue returns
// ErrQueueFull; under the block policy Enqueue waits for room, ctx, or Stop.
func (m *Manager) Enqueue(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrSchedulerStopped
	}
	if _, ok := m.pending[id]; ok {
		m.mu.Unlock()
		return nil
	}
	if _, ok := m.active[id]; ok {
		m.active[id] = true
		m.mu.Unlock()
		return nil
	}
	m.pending[id] = struct{}{}
	queue, done := m.queue, m.done
	m.mu.Unlock()

	select {
	case queue <- id:
		return nil
	default:
	}
	if m.settings.Backpressure != config.BackpressureBlock {
		m.dropPending(id)
		return ErrQueueFull
	}
	select {
	case queue <- id:
		return nil
	case <-ctx.Done():
		m.dropPending(id)
		return ctx.Err()
	case <-done:
		m.dropPending(id)
		return ErrSchedulerStopped
	}
}

func (m *Manager) dropPending(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}
