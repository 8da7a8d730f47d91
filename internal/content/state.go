package content

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// State is the phase a workflow is currently in.
type State string

const (
	StateIdle            State = "idle"
	StateResearching     State = "researching"
	StateOutlining       State = "outlining"
	StateWaitingApproval State = "waiting_approval"
	StateDrafting        State = "drafting"
	StateEditing         State = "editing"
	StateOptimizing      State = "optimizing"
	StateFinal           State = "final"
	StateFailed          State = "failed"
)

var allStates = []State{
	StateIdle,
	StateResearching,
	StateOutlining,
	StateWaitingApproval,
	StateDrafting,
	StateEditing,
	StateOptimizing,
	StateFinal,
	StateFailed,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// transitions is the directed state graph. Failed is reachable from every
// non-terminal state and is added in CanTransitionTo.
var transitions = map[State][]State{
	StateIdle:            {StateResearching},
	StateResearching:     {StateOutlining},
	StateOutlining:       {StateWaitingApproval},
	StateWaitingApproval: {StateDrafting, StateOutlining},
	StateDrafting:        {StateEditing},
	StateEditing:         {StateOptimizing, StateDrafting},
	StateOptimizing:      {StateOptimizing, StateFinal, StateDrafting},
	StateFinal:           {StateDrafting},
}

var stepDescriptions = map[State]string{
	StateIdle:            "Initializing workflow",
	StateResearching:     "Researching topic",
	StateOutlining:       "Generating outline",
	StateWaitingApproval: "Waiting for outline approval",
	StateDrafting:        "Drafting content",
	StateEditing:         "Editing and refining",
	StateOptimizing:      "Optimizing for SEO",
	StateFinal:           "Completed",
	StateFailed:          "Failed",
}

// States returns every known state in graph order.
func States() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState converts a stored or user-supplied value into a State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := stateSet[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := stateSet[s]
	return ok
}

// String returns the storage form of the state.
func (s State) String() string { return string(s) }

// Label returns a human-readable label such as "Waiting Approval".
// A Caser carries state, so each call builds its own.
func (s State) Label() string {
	return cases.Title(language.Und).String(strings.ReplaceAll(string(s), "_", " "))
}

// StepDescription returns the progress text shown to users for the state.
func (s State) StepDescription() string {
	if desc, ok := stepDescriptions[s]; ok {
		return desc
	}
	return "Unknown"
}

// IsTerminal reports whether the step loop has nothing further to do on its own.
// Final is soft-terminal: a revise request may reopen it.
func (s State) IsTerminal() bool {
	return s == StateFinal || s == StateFailed
}

// IsPause reports whether the state waits for a human action.
func (s State) IsPause() bool {
	return s == StateWaitingApproval || s == StateOptimizing
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s State) CanTransitionTo(next State) bool {
	if next == StateFailed {
		return s.Valid() && s != StateFailed && s != StateFinal
	}
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Revisable reports whether a revise request moves the workflow back to drafting.
func (s State) Revisable() bool {
	switch s {
	case StateEditing, StateOptimizing, StateFinal:
		return true
	default:
		return false
	}
}
