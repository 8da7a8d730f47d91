package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"quill/internal/content"
	"quill/internal/logging"
	"quill/internal/services"
)

// DefaultMaxIterations bounds a single step loop run.
const DefaultMaxIterations = 10

const tracerInstrumentor = "quill/internal/engine"

var (
	// ErrNotFound is returned when an operation references an unknown workflow.
	ErrNotFound = services.ErrNotFound
	// ErrFeedbackRequired is returned by RejectOutline for blank feedback.
	ErrFeedbackRequired = fmt.Errorf("%w: feedback is required", services.ErrValidation)
	// ErrInstructionsRequired is returned by ReviseDraft for blank instructions.
	ErrInstructionsRequired = fmt.Errorf("%w: revision instructions are required", services.ErrValidation)
	// ErrMessageRequired is returned by ProcessChatMessage for a blank message.
	ErrMessageRequired = fmt.Errorf("%w: message is required", services.ErrValidation)
)

// Engine runs the step loop and the human-triggered workflow operations.
type Engine struct {
	repo          Repository
	gen           Generator
	notifier      Notifier
	scheduler     Scheduler
	locks         *Locks
	logger        *slog.Logger
	tracer        trace.Tracer
	maxIterations int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithNotifier sets the notifier told about every persisted change.
func WithNotifier(notifier Notifier) Option {
	return func(e *Engine) {
		if notifier != nil {
			e.notifier = notifier
		}
	}
}

// WithScheduler sets where operations hand workflows for background processing.
func WithScheduler(scheduler Scheduler) Option {
	return func(e *Engine) {
		e.scheduler = scheduler
	}
}

// WithLocks shares a lock set between engines working on the same store.
func WithLocks(locks *Locks) Option {
	return func(e *Engine) {
		if locks != nil {
			e.locks = locks
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxIterations sets the default step loop budget.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithTracer overrides the tracer used for step and operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// New constructs an engine over repo and gen.
func New(repo Repository, gen Generator, opts ...Option) (*Engine, error) {
	if repo == nil {
		return nil, errors.New("engine: repository is nil")
	}
	if gen == nil {
		return nil, errors.New("engine: generator is nil")
	}
	e := &Engine{
		repo:          repo,
		gen:           gen,
		locks:         NewLocks(),
		logger:        logging.NewNop(),
		tracer:        otel.Tracer(tracerInstrumentor),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "engine")
	return e, nil
}

// GetWorkflow returns the stored workflow or ErrNotFound.
func (e *Engine) GetWorkflow(ctx context.Context, id string) (*content.Workflow, error) {
	return e.load(ctx, id)
}

func (e *Engine) load(ctx context.Context, id string) (*content.Workflow, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: workflow id is empty", ErrNotFound)
	}
	wf, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", id, err)
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow %s", ErrNotFound, id)
	}
	return wf, nil
}

// persist saves wf and then notifies. Notification failures are logged only.
func (e *Engine) persist(ctx context.Context, wf *content.Workflow) error {
	if err := e.repo.Save(ctx, wf); err != nil {
		return fmt.Errorf("save workflow %s: %w", wf.ID, err)
	}
	e.notify(ctx, wf)
	return nil
}

func (e *Engine) notify(ctx context.Context, wf *content.Workflow) {
	if e.notifier == nil || wf == nil {
		return
	}
	if err := e.notifier.NotifyUpdated(ctx, wf.Clone()); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "workflow notification failed", "notification_failed",
			logging.String(logging.FieldWorkflowID, wf.ID),
			logging.String(logging.FieldState, string(wf.State)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ntfy topic and event subscribers"),
			logging.String(logging.FieldImpact, "workflow progress was saved but not announced"),
		)
	}
}

// schedule hands id to the scheduler. It is called without holding the
// workflow lock so a blocking queue cannot stall other operations on id.
func (e *Engine) schedule(ctx context.Context, id string) error {
	if e.scheduler == nil {
		return nil
	}
	return e.scheduler.Enqueue(ctx, id)
}

func (e *Engine) startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("quill.workflow_id", id)))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
