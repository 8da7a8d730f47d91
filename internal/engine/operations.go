package engine

import (
	"context"
	"fmt"
	"strings"

	"quill/internal/content"
	"quill/internal/logging"
	"quill/internal/services"
)

// FallbackReply is recorded when the chat reply cannot be generated.
const FallbackReply = "I couldn't generate a reply right now. Please try again."

// StartWorkflow creates an Idle workflow and schedules it. The workflow is
// durable before it is scheduled, so a scheduling error still returns it.
func (e *Engine) StartWorkflow(ctx context.Context, topic, tone string) (*content.Workflow, error) {
	wf, err := content.New(topic, tone)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	ctx = services.WithWorkflowID(ctx, wf.ID)
	ctx, span := e.startSpan(ctx, "engine.start_workflow", wf.ID)
	defer span.End()

	if err := e.repo.Create(ctx, wf); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	e.notify(ctx, wf)
	logging.WithContext(ctx, e.logger).Info("workflow created",
		logging.String(logging.FieldEventType, "workflow_created"),
		logging.String("topic", wf.Topic),
	)
	if err := e.schedule(ctx, wf.ID); err != nil {
		recordError(span, err)
		return wf, fmt.Errorf("schedule workflow %s: %w", wf.ID, err)
	}
	return wf, nil
}

// ApproveOutline moves a WaitingApproval workflow to Drafting. It returns
// false without changes from any other state.
func (e *Engine) ApproveOutline(ctx context.Context, id, notes string) (*content.Workflow, bool, error) {
	notes = strings.TrimSpace(notes)
	return e.transition(ctx, "approve_outline", id, func(wf *content.Workflow) bool {
		if wf.State != content.StateWaitingApproval {
			return false
		}
		if notes != "" {
			wf.AddChatMessage(content.RoleUser, "Outline approved with notes: "+notes)
		}
		wf.TransitionTo(content.StateDrafting)
		return true
	})
}

// RejectOutline sends a WaitingApproval workflow back to Outlining with the
// reviewer's feedback. Blank feedback is rejected before the workflow is read.
func (e *Engine) RejectOutline(ctx context.Context, id, feedback string) (*content.Workflow, bool, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, false, ErrFeedbackRequired
	}
	return e.transition(ctx, "reject_outline", id, func(wf *content.Workflow) bool {
		if wf.State != content.StateWaitingApproval {
			return false
		}
		wf.SetFeedback(feedback)
		wf.AddChatMessage(content.RoleUser, "Outline rejected: "+feedback)
		wf.TransitionTo(content.StateOutlining)
		return true
	})
}

// ReviseDraft records revision instructions and, from Editing, Optimizing or
// Final, reopens drafting. It reports true for every known id; callers check
// the returned state to see whether drafting was reopened.
func (e *Engine) ReviseDraft(ctx context.Context, id, instructions string) (*content.Workflow, bool, error) {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return nil, false, ErrInstructionsRequired
	}
	return e.transition(ctx, "revise_draft", id, func(wf *content.Workflow) bool {
		wf.SetFeedback(instructions)
		wf.AddChatMessage(content.RoleUser, "Revision requested: "+instructions)
		if wf.State.Revisable() {
			wf.TransitionTo(content.StateDrafting)
		}
		return true
	})
}

// FinalizeWorkflow moves an Optimizing workflow to Final without touching
// its content.
func (e *Engine) FinalizeWorkflow(ctx context.Context, id string) (*content.Workflow, bool, error) {
	return e.edit(ctx, "finalize_workflow", id, func(_ context.Context, wf *content.Workflow) (bool, error) {
		if wf.State != content.StateOptimizing {
			return false, nil
		}
		wf.AddChatMessage(content.RoleSystem, "Workflow finalized")
		wf.TransitionTo(content.StateFinal)
		return true, nil
	})
}

// ApplySEOSuggestions rewrites the draft with the stored SEO suggestions and
// finalizes it. It needs Optimizing with SEO data present. A rewrite failure
// is returned and the workflow stays in Optimizing.
func (e *Engine) ApplySEOSuggestions(ctx context.Context, id string) (*content.Workflow, bool, error) {
	return e.edit(ctx, "apply_seo_suggestions", id, func(ctx context.Context, wf *content.Workflow) (bool, error) {
		if wf.State != content.StateOptimizing || wf.SEO == nil {
			return false, nil
		}
		rewritten, err := e.gen.OptimizeContent(ctx, wf.DraftContent, wf.SEO.Clone())
		if err != nil {
			return false, fmt.Errorf("apply seo suggestions: %w", err)
		}
		if strings.TrimSpace(rewritten) == "" {
			return false, services.Wrap(services.ErrValidation, string(wf.State), "optimize", "rewritten content is empty", nil)
		}
		wf.SetDraftContent(rewritten)
		wf.AddChatMessage(content.RoleSystem, "SEO suggestions applied")
		wf.TransitionTo(content.StateFinal)
		return true, nil
	})
}

// ProcessChatMessage records a user message and the assistant's reply. The
// reply is generated before the workflow lock is taken; if generation fails a
// fallback reply is recorded instead.
func (e *Engine) ProcessChatMessage(ctx context.Context, id, message string) (string, *content.Workflow, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", nil, ErrMessageRequired
	}
	ctx = services.WithWorkflowID(ctx, id)
	ctx, span := e.startSpan(ctx, "engine.process_chat_message", id)
	defer span.End()

	snapshot, err := e.load(ctx, id)
	if err != nil {
		recordError(span, err)
		return "", nil, err
	}
	reply, err := e.gen.Reply(ctx, snapshot, message)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = services.Wrap(services.ErrValidation, string(snapshot.State), "reply", "reply is empty", nil)
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "chat reply generation failed", "chat_reply_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.FailureHint(err)),
			logging.String(logging.FieldImpact, "a fallback reply was recorded"),
		)
		reply = FallbackReply
	}

	wf, _, err := e.edit(ctx, "record_chat", id, func(_ context.Context, wf *content.Workflow) (bool, error) {
		wf.AddChatMessage(content.RoleUser, message)
		wf.AddChatMessage(content.RoleAssistant, reply)
		return true, nil
	})
	if err != nil {
		recordError(span, err)
		return "", nil, err
	}
	return reply, wf, nil
}

// transition applies a state edit and schedules the workflow when the edit
// applied. A scheduling failure is logged; the recovery sweep resumes
// workflows left in a resumable state.
func (e *Engine) transition(ctx context.Context, op, id string, apply func(*content.Workflow) bool) (*content.Workflow, bool, error) {
	wf, ok, err := e.edit(ctx, op, id, func(_ context.Context, wf *content.Workflow) (bool, error) {
		return apply(wf), nil
	})
	if err != nil || !ok {
		return wf, ok, err
	}
	if err := e.schedule(ctx, wf.ID); err != nil {
		logging.WarnWithContext(logging.WithContext(services.WithWorkflowID(ctx, wf.ID), e.logger),
			"failed to schedule workflow", "schedule_failed",
			logging.String("operation", op),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the recovery sweep will resume it"),
			logging.String(logging.FieldImpact, "processing is delayed until the next sweep"),
		)
	}
	return wf, true, nil
}

// edit loads the workflow under its lock, lets fn mutate it, and saves and
// notifies when fn reports a change. The returned workflow is the current
// stored version either way.
func (e *Engine) edit(ctx context.Context, op, id string, fn func(context.Context, *content.Workflow) (bool, error)) (*content.Workflow, bool, error) {
	ctx = services.WithWorkflowID(ctx, id)
	ctx, span := e.startSpan(ctx, "engine."+op, id)
	defer span.End()

	unlock, err := e.locks.Lock(ctx, id)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	wf, err := e.load(ctx, id)
	if err != nil {
		recordError(span, err)
		return nil, false, err
	}
	before := wf.State
	ok, err := fn(ctx, wf)
	if err != nil {
		recordError(span, err)
		return wf, false, err
	}
	if !ok {
		logging.WithContext(ctx, e.logger).Debug("operation not applicable in current state",
			logging.String("operation", op),
			logging.String(logging.FieldState, string(before)),
		)
		return wf, false, nil
	}
	if err := e.persist(ctx, wf); err != nil {
		recordError(span, err)
		return nil, false, err
	}
	logging.WithContext(ctx, e.logger).Info("workflow operation applied",
		logging.String(logging.FieldEventType, op),
		logging.String("previous_state", string(before)),
		logging.String(logging.FieldState, string(wf.State)),
	)
	return wf.Clone(), true, nil
}
