package api

import "testing"

func TestSortWorkflowsNewestFirst(t *testing.T) {
	items := []WorkflowSummary{
		{ID: "a", CreatedAt: "2026-01-01T10:00:00.000Z"},
		{ID: "b", CreatedAt: "2026-01-02T10:00:00.000Z"},
		{ID: "c", CreatedAt: "2026-01-01T10:00:00.000Z"},
	}
	got := SortWorkflowsNewestFirst(items)
	want := []string{"b", "c", "a"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d = %q, want %q", i, got[i].ID, id)
		}
	}
	if items[0].ID != "a" {
		t.Fatal("input slice was modified")
	}
	if SortWorkflowsNewestFirst(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestParseTime(t *testing.T) {
	if !ParseTime("").IsZero() || !ParseTime("garbage").IsZero() {
		t.Fatal("expected zero time for invalid input")
	}
	if ParseTime("2026-01-02T15:04:05.123Z").IsZero() {
		t.Fatal("expected API timestamp to parse")
	}
}

func TestShortIDAndSnippet(t *testing.T) {
	if got := ShortID("3f2a1c9e-aaaa-bbbb"); got != "3f2a1c9e" {
		t.Fatalf("ShortID = %q", got)
	}
	if got := ShortID("abc"); got != "abc" {
		t.Fatalf("ShortID short = %q", got)
	}
	if got := Snippet("hello   world\nagain", 0); got != "hello world again" {
		t.Fatalf("Snippet collapse = %q", got)
	}
	if got := Snippet("héllo world", 6); got != "héllo…" {
		t.Fatalf("Snippet truncate = %q", got)
	}
}

func TestIsSettled(t *testing.T) {
	cases := []struct {
		view Workflow
		want bool
	}{
		{Workflow{State: "researching"}, false},
		{Workflow{State: "waiting_approval"}, true},
		{Workflow{State: "optimizing"}, false},
		{Workflow{State: "optimizing", SEO: &SEO{}}, true},
		{Workflow{State: "final"}, true},
		{Workflow{State: "failed"}, true},
	}
	for _, tc := range cases {
		if got := IsSettled(tc.view); got != tc.want {
			t.Fatalf("IsSettled(%s, seo=%v) = %v, want %v", tc.view.State, tc.view.SEO != nil, got, tc.want)
		}
	}
}
