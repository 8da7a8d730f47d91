package generation_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"quill/internal/content"
	"quill/internal/generation"
	"quill/internal/services"
	"quill/internal/services/llm"
)

type stubCompleter struct {
	text    string
	json    string
	chat    string
	err     error
	systems []string
	users   []string
	turns   []llm.Message
}

func (s *stubCompleter) Complete(_ context.Context, system, user string) (string, error) {
	s.systems = append(s.systems, system)
	s.users = append(s.users, user)
	return s.text, s.err
}

func (s *stubCompleter) CompleteJSON(_ context.Context, system, user string) (string, error) {
	s.systems = append(s.systems, system)
	s.users = append(s.users, user)
	return s.json, s.err
}

func (s *stubCompleter) Chat(_ context.Context, system string, turns []llm.Message) (string, error) {
	s.systems = append(s.systems, system)
	s.turns = turns
	return s.chat, s.err
}

func newGenerator(t *testing.T, client generation.Completer) *generation.Generator {
	t.Helper()
	gen, err := generation.New(client)
	if err != nil {
		t.Fatalf("generation.New: %v", err)
	}
	return gen
}

func TestOutlineIncludesFeedbackAndResearch(t *testing.T) {
	stub := &stubCompleter{text: "  # Outline  "}
	gen := newGenerator(t, stub)

	out, err := gen.Outline(context.Background(), content.Brief{Topic: "Go", Tone: "casual", Feedback: "more examples"}, "research notes")
	if err != nil {
		t.Fatalf("Outline returned error: %v", err)
	}
	if out != "# Outline" {
		t.Fatalf("expected trimmed output, got %q", out)
	}
	prompt := stub.users[0]
	for _, fragment := range []string{`"Go"`, "casual", "research notes", "more examples"} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("expected %q in prompt %q", fragment, prompt)
		}
	}
}

func TestDraftOmitsBlankFeedback(t *testing.T) {
	stub := &stubCompleter{text: "draft"}
	gen := newGenerator(t, stub)
	if _, err := gen.Draft(context.Background(), content.Brief{Topic: "Go"}, "outline"); err != nil {
		t.Fatalf("Draft returned error: %v", err)
	}
	if strings.Contains(stub.users[0], "revision instructions") {
		t.Fatalf("unexpected revision section in %q", stub.users[0])
	}
}

func TestTextPhaseErrorsAreClassified(t *testing.T) {
	gen := newGenerator(t, &stubCompleter{err: errors.New("http 500")})
	_, err := gen.Research(context.Background(), content.Brief{Topic: "Go"})
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}

	gen = newGenerator(t, &stubCompleter{err: fmt.Errorf("llm chat: %w", llm.ErrAPIKeyMissing)})
	_, err = gen.Research(context.Background(), content.Brief{Topic: "Go"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	gen = newGenerator(t, &stubCompleter{err: &llm.StatusError{StatusCode: 429}})
	_, err = gen.Research(context.Background(), content.Brief{Topic: "Go"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}

	gen = newGenerator(t, &stubCompleter{text: "   "})
	if _, err := gen.Research(context.Background(), content.Brief{Topic: "Go"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty reply, got %v", err)
	}

	gen = newGenerator(t, &stubCompleter{err: context.Canceled})
	if _, err := gen.Research(context.Background(), content.Brief{Topic: "Go"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation to pass through, got %v", err)
	}
}

func TestEditParsesJSONReply(t *testing.T) {
	stub := &stubCompleter{json: "```json\n{\"Content\":\"edited\",\"Changes\":[\"fix grammar\",\" \"]}\n```"}
	gen := newGenerator(t, stub)

	text, changes, err := gen.Edit(context.Background(), "draft")
	if err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	if text != "edited" {
		t.Fatalf("unexpected edited text %q", text)
	}
	if !reflect.DeepEqual(changes, []string{"fix grammar"}) {
		t.Fatalf("unexpected changes %v", changes)
	}
}

func TestEditRejectsSchemaViolations(t *testing.T) {
	for _, reply := range []string{`{"content":""}`, `{"changes":["x"]}`, `not json at all`} {
		gen := newGenerator(t, &stubCompleter{json: reply})
		if _, _, err := gen.Edit(context.Background(), "draft"); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", reply, err)
		}
	}
}

func TestAnalyzeSEOParsesAndClamps(t *testing.T) {
	stub := &stubCompleter{json: `{"Keywords":["go","generics"],"MetaTitle":"T","meta_description":"D","Score":142.4,"Suggestions":["add faq"]}`}
	gen := newGenerator(t, stub)

	result, err := gen.AnalyzeSEO(context.Background(), "body", "Go")
	if err != nil {
		t.Fatalf("AnalyzeSEO returned error: %v", err)
	}
	want := content.SEOResult{Keywords: []string{"go", "generics"}, MetaTitle: "T", MetaDescription: "D", Score: 100, Suggestions: []string{"add faq"}}
	if !reflect.DeepEqual(result, want) {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestAnalyzeSEOFallsBackOnUnparseableReply(t *testing.T) {
	for _, reply := range []string{"I cannot do that", `{"score":"high"}`} {
		gen := newGenerator(t, &stubCompleter{json: reply})
		result, err := gen.AnalyzeSEO(context.Background(), "body", "Go")
		if err != nil {
			t.Fatalf("expected fallback without error for %q, got %v", reply, err)
		}
		if result.Score != 0 || !reflect.DeepEqual(result.Suggestions, []string{content.SEOParseFailureSuggestion}) {
			t.Fatalf("unexpected fallback %+v", result)
		}
	}

	gen := newGenerator(t, &stubCompleter{err: errors.New("timeout")})
	if _, err := gen.AnalyzeSEO(context.Background(), "body", "Go"); err == nil {
		t.Fatal("transport failures must surface as errors")
	}
}

func TestOptimizeContentListsSuggestions(t *testing.T) {
	stub := &stubCompleter{text: "optimized"}
	gen := newGenerator(t, stub)
	out, err := gen.OptimizeContent(context.Background(), "body", content.SEOResult{Keywords: []string{"a", "b"}, Suggestions: []string{"one", "two"}})
	if err != nil {
		t.Fatalf("OptimizeContent returned error: %v", err)
	}
	if out != "optimized" {
		t.Fatalf("unexpected output %q", out)
	}
	prompt := stub.users[0]
	if !strings.Contains(prompt, "- one") || !strings.Contains(prompt, "- two") || !strings.Contains(prompt, "a, b") {
		t.Fatalf("prompt missing suggestions or keywords: %q", prompt)
	}
}

func TestReplyUsesHistoryWithoutDuplicatingMessage(t *testing.T) {
	stub := &stubCompleter{chat: "sure"}
	gen := newGenerator(t, stub)

	wf, _ := content.New("Go", "")
	wf.SetOutline("outline text")
	wf.AddChatMessage(content.RoleUser, "first question")
	wf.AddChatMessage(content.RoleAssistant, "first answer")
	wf.AddChatMessage(content.RoleSystem, "Workflow finalized")
	wf.AddChatMessage(content.RoleUser, "second question")

	reply, err := gen.Reply(context.Background(), wf, "second question")
	if err != nil {
		t.Fatalf("Reply returned error: %v", err)
	}
	if reply != "sure" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if len(stub.turns) != 3 {
		t.Fatalf("expected 3 turns, got %+v", stub.turns)
	}
	if stub.turns[2].Content != "second question" || stub.turns[0].Content != "first question" {
		t.Fatalf("unexpected turns %+v", stub.turns)
	}
	if !strings.Contains(stub.systems[0], "outline text") {
		t.Fatalf("system prompt missing outline: %q", stub.systems[0])
	}
}

func TestParseCatalogRequiresAllPhases(t *testing.T) {
	if _, err := generation.ParseCatalog([]byte("research:\n  user: hi\n")); err == nil {
		t.Fatal("expected error for incomplete catalogue")
	}
	if _, err := generation.DefaultCatalog(); err != nil {
		t.Fatalf("embedded catalogue must parse: %v", err)
	}
}

func TestGeneratorAgainstLLMServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ResponseFormat map[string]string `json:"response_format"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		reply := "Research notes"
		if req.ResponseFormat["type"] == "json_object" {
			reply = `{"content":"edited body","changes":["tightened intro"]}`
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": reply}}},
		})
	}))
	defer server.Close()

	client := llm.NewClient(llm.Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	gen := newGenerator(t, client)

	research, err := gen.Research(context.Background(), content.Brief{Topic: "Go"})
	if err != nil || research != "Research notes" {
		t.Fatalf("unexpected research %q %v", research, err)
	}
	edited, changes, err := gen.Edit(context.Background(), "body")
	if err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	if edited != "edited body" || len(changes) != 1 {
		t.Fatalf("unexpected edit %q %v", edited, changes)
	}
}
