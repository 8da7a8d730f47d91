package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// EventWorkflowUpdated is the event type published after every workflow mutation.
const EventWorkflowUpdated = "workflow.updated"

// Workflow describes a workflow in a transport-friendly format.
type Workflow struct {
	ID              string        `json:"id"`
	Topic           string        `json:"topic"`
	Tone            string        `json:"tone,omitempty"`
	State           string        `json:"state"`
	StateLabel      string        `json:"stateLabel"`
	StepDescription string        `json:"stepDescription"`
	ResearchData    string        `json:"researchData,omitempty"`
	Outline         string        `json:"outline,omitempty"`
	DraftContent    string        `json:"draftContent,omitempty"`
	OriginalDraft   string        `json:"originalDraft,omitempty"`
	EditedDraft     string        `json:"editedDraft,omitempty"`
	EditChanges     []string      `json:"editChanges,omitempty"`
	SEO             *SEO          `json:"seo,omitempty"`
	Feedback        string        `json:"feedback,omitempty"`
	ChatHistory     []ChatMessage `json:"chatHistory"`
	CreatedAt       string        `json:"createdAt,omitempty"`
	UpdatedAt       string        `json:"updatedAt,omitempty"`
}

// SEO mirrors the structured SEO analysis result.
type SEO struct {
	Keywords        []string `json:"keywords"`
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Score           int      `json:"score"`
	Suggestions     []string `json:"suggestions"`
}

// ChatMessage is one chat entry.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// WorkflowSummary is the compact list representation.
type WorkflowSummary struct {
	ID              string `json:"id"`
	Topic           string `json:"topic"`
	State           string `json:"state"`
	StepDescription string `json:"stepDescription"`
	CreatedAt       string `json:"createdAt,omitempty"`
	UpdatedAt       string `json:"updatedAt,omitempty"`
}

// CreateWorkflowRequest starts a new workflow.
type CreateWorkflowRequest struct {
	Topic string `json:"topic" validate:"required,notblank,max=500"`
	Tone  string `json:"tone,omitempty" validate:"max=100"`
}

// CreateWorkflowResponse returns the new workflow id and its initial view.
type CreateWorkflowResponse struct {
	ID       string   `json:"id"`
	Workflow Workflow `json:"workflow"`
}

// ApproveOutlineRequest carries optional reviewer notes.
type ApproveOutlineRequest struct {
	Notes string `json:"notes,omitempty" validate:"max=4000"`
}

// RejectOutlineRequest carries the reviewer feedback used to regenerate the outline.
type RejectOutlineRequest struct {
	Feedback string `json:"feedback" validate:"required,notblank,max=4000"`
}

// ReviseRequest carries revision instructions for the draft.
type ReviseRequest struct {
	Instructions string `json:"instructions" validate:"required,notblank,max=4000"`
}

// ChatRequest carries a user chat message.
type ChatRequest struct {
	Message string `json:"message" validate:"required,notblank,max=4000"`
}

// ActionResponse reports whether an operation applied and the resulting workflow.
type ActionResponse struct {
	OK       bool     `json:"ok"`
	Workflow Workflow `json:"workflow"`
}

// ChatResponse returns the assistant reply and the updated workflow.
type ChatResponse struct {
	Reply    string   `json:"reply"`
	Workflow Workflow `json:"workflow"`
}

// WorkflowResponse wraps a single workflow.
type WorkflowResponse struct {
	Workflow Workflow `json:"workflow"`
}

// WorkflowListResponse wraps a collection of workflow summaries.
type WorkflowListResponse struct {
	Items []WorkflowSummary `json:"items"`
}

// SchedulerStatus summarizes background scheduler state.
type SchedulerStatus struct {
	Running        bool     `json:"running"`
	Workers        int      `json:"workers"`
	QueueDepth     int      `json:"queueDepth"`
	QueueCapacity  int      `json:"queueCapacity"`
	Backpressure   string   `json:"backpressure"`
	InFlight       []string `json:"inFlight"`
	Processed      int64    `json:"processed"`
	Failed         int64    `json:"failed"`
	LastError      string   `json:"lastError,omitempty"`
	LastWorkflowID string   `json:"lastWorkflowId,omitempty"`
}

// CheckStatus mirrors a preflight check outcome.
type CheckStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	DatabasePath string          `json:"databasePath"`
	LockFilePath string          `json:"lockFilePath"`
	Scheduler    SchedulerStatus `json:"scheduler"`
	StateCounts  map[string]int  `json:"stateCounts"`
	Checks       []CheckStatus   `json:"checks"`
}

// Event is published on the in-process bus and streamed to SSE subscribers.
type Event struct {
	Type       string   `json:"type"`
	WorkflowID string   `json:"workflowId"`
	Timestamp  string   `json:"timestamp"`
	Workflow   Workflow `json:"workflow"`
}
