package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"quill/internal/content"
	"quill/internal/logging"
	"quill/internal/services"
)

// Outcome summarizes one step loop run.
type Outcome struct {
	Iterations int
	State      content.State
	Failed     bool
}

// stepResult reports what a state handler did. A handler that changed
// nothing is not saved or notified.
type stepResult struct {
	changed bool
	advance bool
}

type stepFunc func(ctx context.Context, wf *content.Workflow) (stepResult, error)

// handlers maps every state to its step. A state without an entry is a
// programming error and is reported as a phase failure.
func (e *Engine) handlers() map[content.State]stepFunc {
	return map[content.State]stepFunc{
		content.StateIdle:            e.stepIdle,
		content.StateResearching:     e.stepResearching,
		content.StateOutlining:       e.stepOutlining,
		content.StateWaitingApproval: stepPause,
		content.StateDrafting:        e.stepDrafting,
		content.StateEditing:         e.stepEditing,
		content.StateOptimizing:      e.stepOptimizing,
		content.StateFinal:           stepPause,
		content.StateFailed:          stepPause,
	}
}

// Run advances the workflow until it pauses, reaches a terminal state, or
// budget iterations have run. budget <= 0 uses the configured default.
//
// Phase failures are recorded on the workflow and reported through
// Outcome.Failed. The returned error is non-nil only for unknown ids,
// persistence failures, and cancellation of ctx.
func (e *Engine) Run(ctx context.Context, id string, budget int) (Outcome, error) {
	if budget <= 0 {
		budget = e.maxIterations
	}
	ctx = services.WithWorkflowID(ctx, id)
	ctx, span := e.startSpan(ctx, "engine.run", id)
	defer span.End()

	var outcome Outcome
	for outcome.Iterations < budget {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		state, advance, failed, err := e.step(ctx, id)
		if state != "" {
			outcome.State = state
		}
		if err != nil {
			recordError(span, err)
			return outcome, err
		}
		outcome.Iterations++
		if failed {
			outcome.Failed = true
			break
		}
		if !advance {
			break
		}
	}
	span.SetAttributes(
		attribute.Int("quill.iterations", outcome.Iterations),
		attribute.String("quill.state", string(outcome.State)),
		attribute.Bool("quill.failed", outcome.Failed),
	)
	return outcome, nil
}

// step runs one iteration under the workflow lock. advance is true when the
// loop should continue with the next state.
func (e *Engine) step(ctx context.Context, id string) (content.State, bool, bool, error) {
	unlock, err := e.locks.Lock(ctx, id)
	if err != nil {
		return "", false, false, err
	}
	defer unlock()

	wf, err := e.load(ctx, id)
	if err != nil {
		return "", false, false, err
	}
	current := wf.State
	ctx = services.WithState(ctx, string(current))
	logger := logging.WithContext(ctx, e.logger)

	ctx, span := e.startSpan(ctx, "engine.step", id)
	span.SetAttributes(attribute.String("quill.state", string(current)))
	defer span.End()

	handler, ok := e.handlers()[current]
	if !ok {
		handler = func(context.Context, *content.Workflow) (stepResult, error) {
			return stepResult{}, services.Wrap(services.ErrValidation, string(current), "dispatch", "no handler for state", nil)
		}
	}

	started := time.Now()
	result, stepErr := handler(ctx, wf)
	if stepErr != nil {
		if ctx.Err() != nil {
			logger.Debug("step interrupted by shutdown", logging.Error(stepErr))
			return current, false, false, ctx.Err()
		}
		recordError(span, stepErr)
		if err := e.fail(ctx, wf, stepErr); err != nil {
			recordError(span, err)
			return current, false, false, err
		}
		return wf.State, false, true, nil
	}
	if !result.changed {
		return current, false, false, nil
	}
	if err := e.persist(ctx, wf); err != nil {
		recordError(span, err)
		logging.ErrorWithContext(logger, "failed to persist step result", "step_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access; the recovery sweep will retry"),
		)
		return current, false, false, err
	}
	logger.Info("workflow step completed",
		logging.String(logging.FieldEventType, "step_complete"),
		logging.String("next_state", string(wf.State)),
		logging.Duration("step_duration", time.Since(started)),
	)
	return wf.State, result.advance && wf.State != current, false, nil
}

// fail moves wf to Failed with a system chat entry. It reloads the stored copy
// first so partial in-memory edits from the failed step are discarded. A
// non-nil return means the failure could not be saved and the stored state is
// unchanged.
func (e *Engine) fail(ctx context.Context, wf *content.Workflow, cause error) error {
	logger := logging.WithContext(ctx, e.logger)
	logging.ErrorWithContext(logger, "workflow step failed", "step_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, services.FailureHint(cause)),
		logging.Alert("phase_failure"),
	)

	if stored, err := e.repo.Get(ctx, wf.ID); err == nil && stored != nil {
		*wf = *stored
	}
	if wf.State.CanTransitionTo(content.StateFailed) {
		wf.TransitionTo(content.StateFailed)
	}
	wf.AddChatMessage(content.RoleSystem, failureMessage(cause))
	if err := e.persist(ctx, wf); err != nil {
		logging.ErrorWithContext(logger, "failed to persist workflow failure", "failure_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access; the recovery sweep will retry the phase"),
		)
		return fmt.Errorf("persist failure of workflow %s: %w", wf.ID, err)
	}
	return nil
}

func failureMessage(err error) string {
	return fmt.Sprintf("Workflow failed: %s", strings.TrimSpace(err.Error()))
}

func missing(state content.State, field string) error {
	return services.Wrap(services.ErrValidation, string(state), "precondition", field+" missing", nil)
}

func stepPause(context.Context, *content.Workflow) (stepResult, error) {
	return stepResult{}, nil
}

func (e *Engine) stepIdle(_ context.Context, wf *content.Workflow) (stepResult, error) {
	wf.TransitionTo(content.StateResearching)
	return stepResult{changed: true, advance: true}, nil
}

func (e *Engine) stepResearching(ctx context.Context, wf *content.Workflow) (stepResult, error) {
	research, err := e.gen.Research(ctx, wf.Brief())
	if err != nil {
		return stepResult{}, err
	}
	wf.UpdateResearch(research)
	wf.TransitionTo(content.StateOutlining)
	return stepResult{changed: true, advance: true}, nil
}

func (e *Engine) stepOutlining(ctx context.Context, wf *content.Workflow) (stepResult, error) {
	if strings.TrimSpace(wf.ResearchData) == "" {
		return stepResult{}, missing(wf.State, "research data")
	}
	outline, err := e.gen.Outline(ctx, wf.Brief(), wf.ResearchData)
	if err != nil {
		return stepResult{}, err
	}
	wf.SetOutline(outline)
	wf.TransitionTo(content.StateWaitingApproval)
	return stepResult{changed: true}, nil
}

func (e *Engine) stepDrafting(ctx context.Context, wf *content.Workflow) (stepResult, error) {
	if strings.TrimSpace(wf.Outline) == "" {
		return stepResult{}, missing(wf.State, "outline")
	}
	draft, err := e.gen.Draft(ctx, wf.Brief(), wf.Outline)
	if err != nil {
		return stepResult{}, err
	}
	wf.SetDraft(draft)
	wf.ClearSEOData()
	wf.TransitionTo(content.StateEditing)
	return stepResult{changed: true, advance: true}, nil
}

func (e *Engine) stepEditing(ctx context.Context, wf *content.Workflow) (stepResult, error) {
	if strings.TrimSpace(wf.DraftContent) == "" {
		return stepResult{}, missing(wf.State, "draft content")
	}
	edited, changes, err := e.gen.Edit(ctx, wf.DraftContent)
	if err != nil {
		return stepResult{}, err
	}
	if strings.TrimSpace(edited) == "" {
		return stepResult{}, services.Wrap(services.ErrValidation, string(wf.State), "edit", "edited content is empty", nil)
	}
	wf.SetEditedDraft(edited, changes)
	wf.SetDraftContent(edited)
	wf.TransitionTo(content.StateOptimizing)
	return stepResult{changed: true, advance: true}, nil
}

// stepOptimizing stores the SEO analysis and stays in Optimizing. Moving on to
// Final needs ApplySEOSuggestions or FinalizeWorkflow. A workflow that
// already has SEO data is left alone.
func (e *Engine) stepOptimizing(ctx context.Context, wf *content.Workflow) (stepResult, error) {
	if wf.SEO != nil {
		return stepResult{}, nil
	}
	if strings.TrimSpace(wf.DraftContent) == "" {
		return stepResult{}, missing(wf.State, "draft content")
	}
	seo, err := e.gen.AnalyzeSEO(ctx, wf.DraftContent, wf.Topic)
	if err != nil {
		return stepResult{}, err
	}
	wf.SetSEOData(seo)
	return stepResult{changed: true}, nil
}
