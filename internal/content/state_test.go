package content_test

import (
	"sync"
	"testing"

	"quill/internal/content"
)

func TestStateLabelsAndDescriptions(t *testing.T) {
	if got := content.StateWaitingApproval.Label(); got != "Waiting Approval" {
		t.Fatalf("unexpected label %q", got)
	}
	for _, state := range content.States() {
		if state.StepDescription() == "Unknown" {
			t.Fatalf("state %s has no step description", state)
		}
	}
	if got := content.StateOptimizing.StepDescription(); got != "Optimizing for SEO" {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestParseState(t *testing.T) {
	state, ok := content.ParseState(" Waiting_Approval ")
	if !ok || state != content.StateWaitingApproval {
		t.Fatalf("unexpected parse %q %v", state, ok)
	}
	if _, ok := content.ParseState("published"); ok {
		t.Fatal("expected unknown state to fail")
	}
}

func TestTransitionGraph(t *testing.T) {
	legal := []struct{ from, to content.State }{
		{content.StateIdle, content.StateResearching},
		{content.StateResearching, content.StateOutlining},
		{content.StateOutlining, content.StateWaitingApproval},
		{content.StateWaitingApproval, content.StateDrafting},
		{content.StateWaitingApproval, content.StateOutlining},
		{content.StateDrafting, content.StateEditing},
		{content.StateEditing, content.StateOptimizing},
		{content.StateOptimizing, content.StateOptimizing},
		{content.StateOptimizing, content.StateFinal},
		{content.StateEditing, content.StateDrafting},
		{content.StateOptimizing, content.StateDrafting},
		{content.StateFinal, content.StateDrafting},
		{content.StateDrafting, content.StateFailed},
		{content.StateIdle, content.StateFailed},
	}
	for _, tc := range legal {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}
	illegal := []struct{ from, to content.State }{
		{content.StateIdle, content.StateDrafting},
		{content.StateWaitingApproval, content.StateFinal},
		{content.StateFailed, content.StateDrafting},
		{content.StateFailed, content.StateFailed},
		{content.StateFinal, content.StateFailed},
		{content.StateOutlining, content.StateDrafting},
	}
	for _, tc := range illegal {
		if tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestRevisableStates(t *testing.T) {
	for _, state := range content.States() {
		want := state == content.StateEditing || state == content.StateOptimizing || state == content.StateFinal
		if state.Revisable() != want {
			t.Fatalf("unexpected revisable=%v for %s", state.Revisable(), state)
		}
	}
}

func TestStateLabelConcurrentCallers(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				for _, state := range content.States() {
					if state.Label() == "" {
						errs <- string(state)
						return
					}
				}
				if got := content.StateWaitingApproval.Label(); got != "Waiting Approval" {
					errs <- got
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for bad := range errs {
		t.Fatalf("unexpected label result %q", bad)
	}
}
