package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"quill/internal/config"
	"quill/internal/content"
	"quill/internal/engine"
	"quill/internal/logging"
	"quill/internal/notifications"
	"quill/internal/preflight"
	"quill/internal/store"
	"quill/internal/workflow"
)

// Daemon owns the scheduler and API server and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	engine    *engine.Engine
	scheduler *workflow.Manager
	events    *notifications.EventBus
	api       *apiServer
	closers   []io.Closer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Scheduler    workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	StateCounts  map[content.State]int
	Checks       []preflight.Result
}

// New constructs a daemon with initialized dependencies. events may be nil,
// in which case the event stream endpoint reports 503.
func New(cfg *config.Config, st *store.Store, eng *engine.Engine, scheduler *workflow.Manager, events *notifications.EventBus, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || eng == nil || scheduler == nil {
		return nil, errors.New("daemon requires config, store, engine, and scheduler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		engine:    eng,
		scheduler: scheduler,
		events:    events,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, then launches the scheduler and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another quill daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.scheduler.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.scheduler.Stop(context.Background())
		d.abortStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("quill daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop closes the API, lets in-flight step loops finish until ctx expires,
// and releases the daemon lock.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.CompareAndSwap(true, false) {
		return
	}

	d.api.stop(ctx)
	d.scheduler.Stop(ctx)
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.ctx = nil
	d.logger.Info("quill daemon stopped")
}

// Close stops the daemon using the configured shutdown timeout and releases
// the event bus and store.
func (d *Daemon) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout())
	defer cancel()
	d.Stop(ctx)

	var errs []error
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.events != nil {
		if err := d.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CloseWith registers c to be closed by Close after the scheduler and API
// server stop and before the event bus and store are released.
func (d *Daemon) CloseWith(c io.Closer) {
	if c != nil {
		d.closers = append(d.closers, c)
	}
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddress returns the address the API server is listening on, or "" before Start.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	counts, err := d.store.Stats(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "workflow stats unavailable", "status_stats_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status omits per-state counts"),
		)
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Scheduler:    d.scheduler.Status(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		StateCounts:  counts,
		Checks:       preflight.RunLocal(d.cfg),
	}
}
