package api

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// SortWorkflowsNewestFirst orders summaries by CreatedAt descending, breaking ties by ID.
func SortWorkflowsNewestFirst(items []WorkflowSummary) []WorkflowSummary {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]WorkflowSummary, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti := ParseTime(sorted[i].CreatedAt)
		tj := ParseTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})
	return sorted
}

// ParseTime parses an API timestamp, returning the zero time on failure.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ShortID returns the first eight characters of a workflow id.
func ShortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Snippet collapses whitespace and truncates text to limit runes with an ellipsis.
func Snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}

// IsSettled reports whether a workflow in state needs a human action or is done,
// so followers can stop watching.
func IsSettled(view Workflow) bool {
	switch view.State {
	case "waiting_approval", "final", "failed":
		return true
	case "optimizing":
		return view.SEO != nil
	default:
		return false
	}
}
