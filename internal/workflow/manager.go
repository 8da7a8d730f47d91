package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"quill/internal/engine"
	"quill/internal/logging"
)

var (
	// ErrQueueFull is returned by Enqueue under the reject policy when the queue is at capacity.
	ErrQueueFull = errors.New("workflow queue is full")
	// ErrSchedulerStopped is returned by Enqueue when the manager is not running.
	ErrSchedulerStopped = errors.New("workflow scheduler is not running")
)

// Runner runs the step loop for one workflow.
type Runner interface {
	Run(ctx context.Context, id string, budget int) (engine.Outcome, error)
}

// RunnerFactory builds the Runner for one dequeued workflow id.
type RunnerFactory func(ctx context.Context) (Runner, error)

// Resumer lists workflows the step loop can advance without a human action.
type Resumer interface {
	ResumableIDs(ctx context.Context) ([]string, error)
}

// Manager schedules step loops onto a bounded worker pool.
type Manager struct {
	settings Settings
	factory  RunnerFactory
	resumer  Resumer
	logger   *slog.Logger

	mu         sync.RWMutex
	running    bool
	queue      chan string
	done       chan struct{}
	cancel     context.CancelFunc
	workCancel context.CancelFunc
	cron       *cron.Cron
	wg         sync.WaitGroup

	pending map[string]struct{}
	// active maps ids being processed to whether another pass was requested.
	active map[string]bool

	processed int64
	failed    int64
	lastErr   error
	lastID    string
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithResumer enables the recovery sweep.
func WithResumer(resumer Resumer) ManagerOption {
	return func(m *Manager) {
		m.resumer = resumer
	}
}

// NewManager constructs a scheduler. It does nothing until Start.
func NewManager(settings Settings, factory RunnerFactory, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		settings: settings.normalized(),
		factory:  factory,
		logger:   logging.NewComponentLogger(logger, "workflow-scheduler"),
		pending:  make(map[string]struct{}),
		active:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
