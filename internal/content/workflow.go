package content

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrTopicRequired is returned by New when the topic is blank.
var ErrTopicRequired = errors.New("topic is required")

// Role identifies the author of a chat entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one entry in a workflow's append-only conversation.
type ChatMessage struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Workflow is the aggregate root for one content item.
type Workflow struct {
	ID            string
	Topic         string
	Tone          string
	State         State
	ResearchData  string
	Outline       string
	DraftContent  string
	OriginalDraft string
	EditedDraft   string
	Changes       []string
	SEO           *SEOResult
	Feedback      string
	ChatHistory   []ChatMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time

	now func() time.Time
}

// New creates an Idle workflow with a fresh identifier.
func New(topic, tone string) (*Workflow, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrTopicRequired
	}
	now := time.Now().UTC()
	return &Workflow{
		ID:        uuid.NewString(),
		Topic:     topic,
		Tone:      strings.TrimSpace(tone),
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetClock overrides the time source used for UpdatedAt and chat timestamps.
func (w *Workflow) SetClock(now func() time.Time) {
	w.now = now
}

func (w *Workflow) clock() time.Time {
	if w.now != nil {
		return w.now().UTC()
	}
	return time.Now().UTC()
}

// touch refreshes UpdatedAt, never letting it fall behind CreatedAt.
func (w *Workflow) touch() time.Time {
	now := w.clock()
	if now.Before(w.CreatedAt) {
		now = w.CreatedAt
	}
	if now.Before(w.UpdatedAt) {
		now = w.UpdatedAt
	}
	w.UpdatedAt = now
	return now
}

// TransitionTo writes the new state. Graph legality is the caller's concern.
func (w *Workflow) TransitionTo(next State) {
	w.State = next
	w.touch()
}

// UpdateResearch stores research notes.
func (w *Workflow) UpdateResearch(text string) {
	w.ResearchData = text
	w.touch()
}

// SetOutline stores the outline.
func (w *Workflow) SetOutline(text string) {
	w.Outline = text
	w.touch()
}

// SetDraft records a new draft event: the original draft and the working
// draft are both replaced.
func (w *Workflow) SetDraft(text string) {
	w.OriginalDraft = text
	w.DraftContent = text
	w.touch()
}

// SetEditedDraft stores the edit phase output. OriginalDraft is untouched.
func (w *Workflow) SetEditedDraft(text string, changes []string) {
	w.EditedDraft = text
	w.Changes = make([]string, len(changes))
	copy(w.Changes, changes)
	w.touch()
}

// SetDraftContent replaces the working draft without starting a new draft
// event. Edit and SEO rewrites flow through here so OriginalDraft survives.
func (w *Workflow) SetDraftContent(text string) {
	w.DraftContent = text
	w.touch()
}

// SetSEOData stores the SEO analysis result.
func (w *Workflow) SetSEOData(result SEOResult) {
	clone := result.Clone()
	w.SEO = &clone
	w.touch()
}

// ClearSEOData drops a stored SEO result so the next optimizing pass
// analyzes the new draft.
func (w *Workflow) ClearSEOData() {
	if w.SEO == nil {
		return
	}
	w.SEO = nil
	w.touch()
}

// SetFeedback overwrites the single feedback slot.
func (w *Workflow) SetFeedback(text string) {
	w.Feedback = text
	w.touch()
}

// AddChatMessage appends a timestamped entry to the chat history.
func (w *Workflow) AddChatMessage(role Role, text string) {
	ts := w.touch()
	w.ChatHistory = append(w.ChatHistory, ChatMessage{Role: role, Content: text, Timestamp: ts})
}

// EditChanges returns a copy of the edit change descriptions, or nil when the
// edit phase has not produced any.
func (w *Workflow) EditChanges() []string {
	if w.Changes == nil {
		return nil
	}
	changes := make([]string, len(w.Changes))
	copy(changes, w.Changes)
	return changes
}

// Clone returns a deep copy suitable for handing to other goroutines.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	clone := *w
	clone.Changes = w.EditChanges()
	if w.SEO != nil {
		seo := w.SEO.Clone()
		clone.SEO = &seo
	}
	clone.ChatHistory = append([]ChatMessage(nil), w.ChatHistory...)
	return &clone
}

// Brief is the subset of a workflow that phase prompts are built from.
type Brief struct {
	Topic    string
	Tone     string
	Feedback string
}

// Brief returns the prompt inputs for the workflow.
func (w *Workflow) Brief() Brief {
	return Brief{Topic: w.Topic, Tone: w.Tone, Feedback: w.Feedback}
}
