package testsupport

import (
	"context"
	"errors"
	"sync"

	"quill/internal/content"
)

// MemoryRepository is an in-memory workflow repository. Stored values are
// cloned on the way in and out so callers cannot share state by accident.
type MemoryRepository struct {
	mu        sync.Mutex
	items     map[string]*content.Workflow
	saves     int
	SaveErr   error
	GetErr    error
	OnSave    func(*content.Workflow)
	saveOrder []content.State
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*content.Workflow)}
}

// Create inserts a new workflow.
func (r *MemoryRepository) Create(_ context.Context, wf *content.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[wf.ID]; ok {
		return errors.New("workflow already exists")
	}
	r.items[wf.ID] = wf.Clone()
	return nil
}

// Get returns a copy of the stored workflow or (nil, nil) when missing.
func (r *MemoryRepository) Get(_ context.Context, id string) (*content.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	wf, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return wf.Clone(), nil
}

// Save replaces the stored workflow.
func (r *MemoryRepository) Save(_ context.Context, wf *content.Workflow) error {
	r.mu.Lock()
	r.saves++
	if r.SaveErr != nil {
		err := r.SaveErr
		r.mu.Unlock()
		return err
	}
	r.items[wf.ID] = wf.Clone()
	r.saveOrder = append(r.saveOrder, wf.State)
	hook := r.OnSave
	r.mu.Unlock()
	if hook != nil {
		hook(wf.Clone())
	}
	return nil
}

// Put stores a workflow directly, bypassing save accounting.
func (r *MemoryRepository) Put(wf *content.Workflow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[wf.ID] = wf.Clone()
}

// Saves reports how many Save calls were made, including failed ones.
func (r *MemoryRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// SavedStates returns the state of each successful save in order.
func (r *MemoryRepository) SavedStates() []content.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]content.State(nil), r.saveOrder...)
}

// FakeGenerator returns canned phase output and counts calls. Any *Err field
// makes the matching phase fail.
type FakeGenerator struct {
	mu    sync.Mutex
	calls map[string]int

	ResearchErr error
	OutlineErr  error
	DraftErr    error
	EditErr     error
	SEOErr      error
	OptimizeErr error
	ReplyErr    error

	SEO     content.SEOResult
	Changes []string

	// Block, when set, is waited on at the start of every call.
	Block chan struct{}
}

// NewFakeGenerator returns a generator with default canned output.
func NewFakeGenerator() *FakeGenerator {
	return &FakeGenerator{
		calls:   make(map[string]int),
		SEO:     content.SEOResult{Keywords: []string{"go"}, MetaTitle: "Title", MetaDescription: "Desc", Score: 72, Suggestions: []string{"add headings"}},
		Changes: []string{"fix grammar"},
	}
}

func (g *FakeGenerator) record(ctx context.Context, name string) error {
	g.mu.Lock()
	g.calls[name]++
	block := g.Block
	g.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Calls returns how many times the named phase ran.
func (g *FakeGenerator) Calls(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

// TotalCalls returns the number of generation calls across all phases.
func (g *FakeGenerator) TotalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.calls {
		total += n
	}
	return total
}

func (g *FakeGenerator) Research(ctx context.Context, brief content.Brief) (string, error) {
	if err := g.record(ctx, "research"); err != nil {
		return "", err
	}
	if g.ResearchErr != nil {
		return "", g.ResearchErr
	}
	return "research on " + brief.Topic, nil
}

func (g *FakeGenerator) Outline(ctx context.Context, brief content.Brief, research string) (string, error) {
	if err := g.record(ctx, "outline"); err != nil {
		return "", err
	}
	if g.OutlineErr != nil {
		return "", g.OutlineErr
	}
	out := "outline for " + brief.Topic
	if brief.Feedback != "" {
		out += " (" + brief.Feedback + ")"
	}
	return out, nil
}

func (g *FakeGenerator) Draft(ctx context.Context, brief content.Brief, outline string) (string, error) {
	if err := g.record(ctx, "draft"); err != nil {
		return "", err
	}
	if g.DraftErr != nil {
		return "", g.DraftErr
	}
	return "draft of " + brief.Topic, nil
}

func (g *FakeGenerator) Edit(ctx context.Context, draft string) (string, []string, error) {
	if err := g.record(ctx, "edit"); err != nil {
		return "", nil, err
	}
	if g.EditErr != nil {
		return "", nil, g.EditErr
	}
	return draft + " (edited)", append([]string(nil), g.Changes...), nil
}

func (g *FakeGenerator) AnalyzeSEO(ctx context.Context, text, topic string) (content.SEOResult, error) {
	if err := g.record(ctx, "seo"); err != nil {
		return content.SEOResult{}, err
	}
	if g.SEOErr != nil {
		return content.SEOResult{}, g.SEOErr
	}
	return g.SEO.Clone(), nil
}

func (g *FakeGenerator) OptimizeContent(ctx context.Context, text string, seo content.SEOResult) (string, error) {
	if err := g.record(ctx, "optimize"); err != nil {
		return "", err
	}
	if g.OptimizeErr != nil {
		return "", g.OptimizeErr
	}
	return text + " (optimized)", nil
}

func (g *FakeGenerator) Reply(ctx context.Context, wf *content.Workflow, message string) (string, error) {
	if err := g.record(ctx, "reply"); err != nil {
		return "", err
	}
	if g.ReplyErr != nil {
		return "", g.ReplyErr
	}
	return "reply to: " + message, nil
}

// RecordingNotifier captures notifications in order.
type RecordingNotifier struct {
	mu     sync.Mutex
	states []content.State
	ids    []string
	Err    error
}

// NotifyUpdated records the workflow state and returns Err.
func (n *RecordingNotifier) NotifyUpdated(_ context.Context, wf *content.Workflow) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, wf.State)
	n.ids = append(n.ids, wf.ID)
	return n.Err
}

// States returns the notified states in order.
func (n *RecordingNotifier) States() []content.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]content.State(nil), n.states...)
}

// Count returns the number of notifications received.
func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.states)
}

// RecordingScheduler captures enqueued ids.
type RecordingScheduler struct {
	mu  sync.Mutex
	ids []string
	Err error
}

// Enqueue records id and returns Err.
func (s *RecordingScheduler) Enqueue(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.ids = append(s.ids, id)
	return nil
}

// IDs returns the enqueued ids in order.
func (s *RecordingScheduler) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}
