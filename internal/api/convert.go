package api

import (
	"slices"
	"time"

	"quill/internal/content"
	"quill/internal/preflight"
	"quill/internal/workflow"
)

// FromWorkflow converts a workflow aggregate to its API representation.
func FromWorkflow(wf *content.Workflow) Workflow {
	if wf == nil {
		return Workflow{ChatHistory: []ChatMessage{}}
	}

	dto := Workflow{
		ID:              wf.ID,
		Topic:           wf.Topic,
		Tone:            wf.Tone,
		State:           string(wf.State),
		StateLabel:      wf.State.Label(),
		StepDescription: wf.State.StepDescription(),
		ResearchData:    wf.ResearchData,
		Outline:         wf.Outline,
		DraftContent:    wf.DraftContent,
		OriginalDraft:   wf.OriginalDraft,
		EditedDraft:     wf.EditedDraft,
		EditChanges:     wf.EditChanges(),
		Feedback:        wf.Feedback,
		CreatedAt:       FormatTime(wf.CreatedAt),
		UpdatedAt:       FormatTime(wf.UpdatedAt),
	}
	if wf.SEO != nil {
		seo := wf.SEO.Clone()
		dto.SEO = &SEO{
			Keywords:        nonNil(seo.Keywords),
			MetaTitle:       seo.MetaTitle,
			MetaDescription: seo.MetaDescription,
			Score:           seo.Score,
			Suggestions:     nonNil(seo.Suggestions),
		}
	}

	dto.ChatHistory = make([]ChatMessage, 0, len(wf.ChatHistory))
	for _, msg := range wf.ChatHistory {
		dto.ChatHistory = append(dto.ChatHistory, ChatMessage{
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: FormatTime(msg.Timestamp),
		})
	}
	return dto
}

// SummaryFromWorkflow converts a workflow to its list representation.
func SummaryFromWorkflow(wf *content.Workflow) WorkflowSummary {
	if wf == nil {
		return WorkflowSummary{}
	}
	return WorkflowSummary{
		ID:              wf.ID,
		Topic:           wf.Topic,
		State:           string(wf.State),
		StepDescription: wf.State.StepDescription(),
		CreatedAt:       FormatTime(wf.CreatedAt),
		UpdatedAt:       FormatTime(wf.UpdatedAt),
	}
}

// SummariesFromWorkflows converts a slice of workflows into list DTOs.
func SummariesFromWorkflows(items []*content.Workflow) []WorkflowSummary {
	out := make([]WorkflowSummary, 0, len(items))
	for _, wf := range items {
		if wf == nil {
			continue
		}
		out = append(out, SummaryFromWorkflow(wf))
	}
	return out
}

// FromStatusSummary converts scheduler status to its API representation.
func FromStatusSummary(summary workflow.StatusSummary) SchedulerStatus {
	inFlight := append([]string{}, summary.InFlight...)
	slices.Sort(inFlight)
	return SchedulerStatus{
		Running:        summary.Running,
		Workers:        summary.Workers,
		QueueDepth:     summary.QueueDepth,
		QueueCapacity:  summary.QueueCapacity,
		Backpressure:   summary.Backpressure,
		InFlight:       inFlight,
		Processed:      summary.Processed,
		Failed:         summary.Failed,
		LastError:      summary.LastError,
		LastWorkflowID: summary.LastWorkflowID,
	}
}

// MergeStateCounts returns a count for every known state, zero-filled.
func MergeStateCounts(stats map[content.State]int) map[string]int {
	merged := make(map[string]int, len(content.States()))
	for _, state := range content.States() {
		merged[string(state)] = stats[state]
	}
	return merged
}

// FromCheckResults converts preflight results for status payloads.
func FromCheckResults(results []preflight.Result) []CheckStatus {
	out := make([]CheckStatus, 0, len(results))
	for _, r := range results {
		out = append(out, CheckStatus{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// NewEvent builds a workflow.updated event for wf.
func NewEvent(wf *content.Workflow, at time.Time) Event {
	view := FromWorkflow(wf)
	return Event{
		Type:       EventWorkflowUpdated,
		WorkflowID: view.ID,
		Timestamp:  FormatTime(at),
		Workflow:   view,
	}
}

// FormatTime renders t in the API timestamp format, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
