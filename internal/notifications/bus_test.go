package notifications_test

import (
	"context"
	"testing"
	"time"

	"quill/internal/content"
	"quill/internal/notifications"
)

func TestEventBusDeliversInOrderPerWorkflow(t *testing.T) {
	bus := notifications.NewEventBus(16, nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wf, _ := content.New("Go generics", "")
	other, _ := content.New("Other", "")
	events, err := bus.Subscribe(ctx, wf.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	states := []content.State{content.StateResearching, content.StateOutlining, content.StateWaitingApproval}
	for _, state := range states {
		wf.TransitionTo(state)
		if err := bus.NotifyUpdated(ctx, wf); err != nil {
			t.Fatalf("NotifyUpdated: %v", err)
		}
		if err := bus.NotifyUpdated(ctx, other); err != nil {
			t.Fatalf("NotifyUpdated other: %v", err)
		}
	}

	for _, want := range states {
		select {
		case evt := <-events:
			if evt.WorkflowID != wf.ID {
				t.Fatalf("received event for %s", evt.WorkflowID)
			}
			if evt.Workflow.State != string(want) {
				t.Fatalf("expected state %s, got %s", want, evt.Workflow.State)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestEventBusSubscriptionEndsWithContext(t *testing.T) {
	bus := notifications.NewEventBus(4, nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, err := bus.Subscribe(ctx, "wf")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not close")
	}
}

func TestEventBusPublishWithoutSubscribers(t *testing.T) {
	bus := notifications.NewEventBus(4, nil)
	defer bus.Close()
	wf, _ := content.New("topic", "")
	if err := bus.NotifyUpdated(context.Background(), wf); err != nil {
		t.Fatalf("NotifyUpdated: %v", err)
	}
}
