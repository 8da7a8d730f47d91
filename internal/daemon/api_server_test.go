package daemon_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"quill/internal/api"
	"quill/internal/testsupport"
)

func TestAPIWorkflowLifecycle(t *testing.T) {
	h := newHarness(t)
	client := h.start(t)
	ctx := context.Background()

	created, err := client.CreateWorkflow(ctx, "Go generics", "friendly")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if created.ID == "" || created.Workflow.Topic != "Go generics" || created.Workflow.Tone != "friendly" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	waiting := waitForState(t, client, created.ID, "waiting_approval")
	if waiting.Outline != "outline for Go generics" {
		t.Fatalf("unexpected outline: %q", waiting.Outline)
	}
	if waiting.StepDescription != "Waiting for outline approval" {
		t.Fatalf("unexpected step description: %q", waiting.StepDescription)
	}

	approved, err := client.ApproveOutline(ctx, created.ID, "looks good")
	if err != nil || !approved.OK {
		t.Fatalf("ApproveOutline = %+v, %v", approved, err)
	}

	optimizing := waitForState(t, client, created.ID, "optimizing")
	deadline := time.Now().Add(5 * time.Second)
	for optimizing.SEO == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		if optimizing, err = client.GetWorkflow(ctx, created.ID); err != nil {
			t.Fatalf("GetWorkflow: %v", err)
		}
	}
	if optimizing.SEO == nil || optimizing.SEO.Score != 72 {
		t.Fatalf("expected SEO analysis, got %+v", optimizing.SEO)
	}
	if optimizing.OriginalDraft != "draft of Go generics" || len(optimizing.EditChanges) != 1 {
		t.Fatalf("unexpected edit results: original=%q changes=%v", optimizing.OriginalDraft, optimizing.EditChanges)
	}

	chat, err := client.Chat(ctx, created.ID, "make it shorter?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if chat.Reply != "reply to: make it shorter?" {
		t.Fatalf("unexpected reply: %q", chat.Reply)
	}

	final, err := client.ApplySEO(ctx, created.ID)
	if err != nil || !final.OK {
		t.Fatalf("ApplySEO = %+v, %v", final, err)
	}
	if final.Workflow.State != "final" || final.Workflow.DraftContent != "draft of Go generics (edited) (optimized)" {
		t.Fatalf("unexpected final workflow: %+v", final.Workflow)
	}

	var roles []string
	for _, msg := range final.Workflow.ChatHistory {
		roles = append(roles, msg.Role)
	}
	if got := strings.Join(roles, ","); got != "user,user,assistant,system" {
		t.Fatalf("unexpected chat roles: %s", got)
	}
}

func TestAPIRefusedOperationReturnsConflict(t *testing.T) {
	h := newHarness(t)
	client := h.start(t)
	ctx := context.Background()

	created, err := client.CreateWorkflow(ctx, "Conflicts", "")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	waitForState(t, client, created.ID, "waiting_approval")

	resp, err := client.Finalize(ctx, created.ID)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if resp.OK || resp.Workflow.State != "waiting_approval" {
		t.Fatalf("expected refused finalize, got %+v", resp)
	}

	req, _ := http.NewRequest(http.MethodPost, "http://"+h.daemon.APIAddress()+"/api/workflows/"+created.ID+"/apply-seo", nil)
	raw, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("apply-seo: %v", err)
	}
	defer raw.Body.Close()
	if raw.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", raw.StatusCode)
	}
	var body api.ActionResponse
	if err := json.NewDecoder(raw.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.OK || body.Workflow.ID != created.ID {
		t.Fatalf("unexpected conflict body: %+v", body)
	}
}

func TestAPIReviseReportsState(t *testing.T) {
	h := newHarness(t)
	client := h.start(t)
	ctx := context.Background()

	created, err := client.CreateWorkflow(ctx, "Revisions", "")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	waitForState(t, client, created.ID, "waiting_approval")

	resp, err := client.Revise(ctx, created.ID, "more examples")
	if err != nil {
		t.Fatalf("Revise: %v", err)
	}
	if !resp.OK || resp.Workflow.State != "waiting_approval" || resp.Workflow.Feedback != "more examples" {
		t.Fatalf("expected feedback recorded without a transition, got %+v", resp.Workflow)
	}
}

func TestAPIValidation(t *testing.T) {
	h := newHarness(t)
	client := h.start(t)
	ctx := context.Background()

	if _, err := client.CreateWorkflow(ctx, "   ", ""); !isStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected 400 for blank topic, got %v", err)
	}
	if _, err := client.RejectOutline(ctx, "any", " "); !isStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected 400 for blank feedback, got %v", err)
	}
	if _, err := client.Revise(ctx, "any", ""); !isStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected 400 for blank instructions, got %v", err)
	}
	if _, err := client.Chat(ctx, "any", "\n"); !isStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected 400 for blank message, got %v", err)
	}

	resp, err := http.Post("http://"+h.daemon.APIAddress()+"/api/workflows", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestAPINotFound(t *testing.T) {
	h := newHarness(t)
	client := h.start(t)
	ctx := context.Background()

	if _, err := client.GetWorkflow(ctx, "missing"); !api.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := client.ApproveOutline(ctx, "missing", ""); !api.IsNotFound(err) {
		t.Fatalf("expected not found for approve, got %v", err)
	}
	if _, err := client.Chat(ctx, "missing", "hello"); !api.IsNotFound(err) {
		t.Fatalf("expected not found for chat, got %v", err)
	}
	err := client.StreamEvents(ctx, "missing", func(api.Event) bool { return true })
	if !api.IsNotFound(err) {
		t.Fatalf("expected not found for events, got %v", err)
	}
}

func TestAPIListWorkflows(t *testing.T) {
	h := newHarness(t)
	client := h.start(t)
	ctx := context.Background()

	for _, topic := range []string{"first", "second"} {
		if _, err := client.CreateWorkflow(ctx, topic, ""); err != nil {
			t.Fatalf("CreateWorkflow(%s): %v", topic, err)
		}
	}
	all, err := client.ListWorkflows(ctx, 0)
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 workflows, got %d", len(all))
	}
	limited, err := client.ListWorkflows(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("ListWorkflows(1) = %d items, %v", len(limited), err)
	}

	resp, err := http.Get("http://" + h.daemon.APIAddress() + "/api/workflows?limit=abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestAPIAuth(t *testing.T) {
	h := newHarness(t, testsupport.WithAPIToken("secret"))
	client := h.start(t)
	ctx := context.Background()
	base := "http://" + h.daemon.APIAddress()

	anonymous := api.NewClient(base)
	if err := anonymous.Health(ctx); err != nil {
		t.Fatalf("health should not require auth: %v", err)
	}
	if _, err := anonymous.Status(ctx); !isStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 without token, got %v", err)
	}
	wrong := api.NewClient(base, api.WithToken("nope"))
	if _, err := wrong.ListWorkflows(ctx, 0); !isStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 with wrong token, got %v", err)
	}
	if _, err := client.Status(ctx); err != nil {
		t.Fatalf("Status with token: %v", err)
	}
}

func TestAPICreateReportsFullQueue(t *testing.T) {
	h := newHarness(t, testsupport.WithWorkers(1, 1))
	block := make(chan struct{})
	h.gen.Block = block
	client := h.start(t)
	t.Cleanup(func() { close(block) })
	ctx := context.Background()

	if _, err := client.CreateWorkflow(ctx, "running", ""); err != nil {
		t.Fatalf("CreateWorkflow(running): %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for h.gen.Calls("research") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := client.CreateWorkflow(ctx, "queued", ""); err != nil {
		t.Fatalf("CreateWorkflow(queued): %v", err)
	}
	_, err := client.CreateWorkflow(ctx, "overflow", "")
	if !api.IsUnavailable(err) {
		t.Fatalf("expected 503 when the queue is full, got %v", err)
	}
	if !strings.Contains(err.Error(), "recovery sweep") {
		t.Fatalf("expected detail to mention recovery, got %v", err)
	}

	items, err := h.store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected the overflow workflow to be saved, got %d workflows", len(items))
	}
}

func isStatus(err error, code int) bool {
	var apiErr *api.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
