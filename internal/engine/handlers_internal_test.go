package engine

import (
	"testing"

	"quill/internal/content"
	"quill/internal/testsupport"
)

func TestEveryStateHasHandler(t *testing.T) {
	e, err := New(testsupport.NewMemoryRepository(), testsupport.NewFakeGenerator())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	handlers := e.handlers()
	for _, state := range content.States() {
		if handlers[state] == nil {
			t.Fatalf("no handler for state %s", state)
		}
	}
	if len(handlers) != len(content.States()) {
		t.Fatalf("handler table has %d entries for %d states", len(handlers), len(content.States()))
	}
}
