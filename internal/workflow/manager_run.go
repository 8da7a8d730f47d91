package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"quill/internal/logging"
	"quill/internal/services"
)

// Start launches the workers and, when a Resumer is configured, the startup
// and scheduled recovery sweeps.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow scheduler already running")
	}
	if m.factory == nil {
		return errors.New("workflow runner factory not configured")
	}

	workCtx, workCancel := context.WithCancel(ctx)
	runCtx, cancel := context.WithCancel(workCtx)

	var scheduler *cron.Cron
	if m.resumer != nil && m.settings.RecoverySchedule != "" {
		cl := cronLogger{logger: m.logger}
		scheduler = cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		)
		if _, err := scheduler.AddFunc(m.settings.RecoverySchedule, func() {
			m.sweep(runCtx, "scheduled")
		}); err != nil {
			cancel()
			workCancel()
			return fmt.Errorf("recovery schedule %q: %w", m.settings.RecoverySchedule, err)
		}
	}

	m.queue = make(chan string, m.settings.QueueCapacity)
	m.done = make(chan struct{})
	m.pending = make(map[string]struct{})
	m.active = make(map[string]bool)
	m.cancel = cancel
	m.workCancel = workCancel
	m.cron = scheduler
	m.running = true

	m.wg.Add(m.settings.Workers)
	for i := 1; i <= m.settings.Workers; i++ {
		go m.runWorker(runCtx, workCtx, m.queue, i)
	}
	if m.resumer != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.sweep(runCtx, "startup")
		}()
	}
	if scheduler != nil {
		scheduler.Start()
	}

	m.logger.Info("workflow scheduler started",
		logging.String(logging.FieldEventType, "scheduler_started"),
		logging.Int("workers", m.settings.Workers),
		logging.Int("queue_capacity", m.settings.QueueCapacity),
		logging.String("backpressure", m.settings.Backpressure),
		logging.String("recovery_schedule", m.settings.RecoverySchedule),
	)
	return nil
}

// Stop stops dequeuing, then waits for in-flight step loops until ctx is
// done. Loops still running at that point are cancelled, which abandons them
// at their current iteration without recording a failure.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.done)
	cancel, workCancel, scheduler := m.cancel, m.workCancel, m.cron
	m.cancel, m.workCancel, m.cron = nil, nil, nil
	m.mu.Unlock()

	cancel()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout reached; abandoning in-flight workflows",
			logging.String(logging.FieldEventType, "scheduler_shutdown_timeout"),
			logging.String(logging.FieldErrorHint, "abandoned workflows resume on next start"),
		)
		workCancel()
		<-finished
	}
	workCancel()

	m.mu.Lock()
	m.pending = make(map[string]struct{})
	m.active = make(map[string]bool)
	m.mu.Unlock()
	m.logger.Info("workflow scheduler stopped", logging.String(logging.FieldEventType, "scheduler_stopped"))
}

// runWorker dequeues until runCtx is done. Step loops run under workCtx so a
// stop request lets them finish.
func (m *Manager) runWorker(runCtx, workCtx context.Context, queue <-chan string, n int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int(logging.FieldWorker, n))
	for {
		select {
		case <-runCtx.Done():
			return
		case id := <-queue:
			if runCtx.Err() != nil {
				return
			}
			m.process(runCtx, workCtx, logger, id)
		}
	}
}

// process runs the step loop for id, repeating while Enqueue asked for
// another pass during the previous one.
func (m *Manager) process(runCtx, workCtx context.Context, logger *slog.Logger, id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.active[id] = false
	m.mu.Unlock()

	for {
		m.runOnce(workCtx, logger, id)

		m.mu.Lock()
		again := m.active[id] && runCtx.Err() == nil
		if !again {
			delete(m.active, id)
			m.mu.Unlock()
			return
		}
		m.active[id] = false
		m.mu.Unlock()
	}
}

func (m *Manager) runOnce(ctx context.Context, logger *slog.Logger, id string) {
	ctx = services.WithWorkflowID(ctx, id)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger = logging.WithContext(ctx, logger)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("step loop panic: %v", r)
			m.recordResult(id, err, false)
			logging.ErrorWithContext(logger, "workflow step loop panicked", "step_loop_panic",
				logging.Error(err),
				logging.Alert("panic"),
			)
		}
	}()

	runner, err := m.factory(ctx)
	if err != nil {
		m.recordResult(id, err, false)
		logging.ErrorWithContext(logger, "failed to build workflow runner", "runner_build_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.FailureHint(err)),
		)
		return
	}

	logger.Debug("step loop started", logging.String(logging.FieldEventType, "step_loop_start"))
	outcome, err := runner.Run(ctx, id, m.settings.MaxIterations)
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("step loop interrupted by shutdown", logging.Error(err))
			return
		}
		m.recordResult(id, err, false)
		logging.ErrorWithContext(logger, "workflow step loop failed", "step_loop_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the recovery sweep will retry resumable workflows"),
		)
		return
	}
	m.recordResult(id, nil, outcome.Failed)
	logger.Info("step loop finished",
		logging.String(logging.FieldEventType, "step_loop_complete"),
		logging.String(logging.FieldState, string(outcome.State)),
		logging.Int("iterations", outcome.Iterations),
		logging.Bool("failed", outcome.Failed),
		logging.Duration("duration", time.Since(start)),
	)
}

func (m *Manager) recordResult(id string, err error, phaseFailed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID = id
	if err != nil {
		m.failed++
		m.lastErr = err
		return
	}
	m.processed++
	if phaseFailed {
		m.failed++
	}
}
