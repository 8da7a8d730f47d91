package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"quill/internal/api"
)

const (
	snippetWidth    = 60
	chatSnippetSize = 100
	wrapWidth       = 100
)

func buildWorkflowRows(items []api.WorkflowSummary) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			api.ShortID(item.ID),
			api.Snippet(item.Topic, snippetWidth),
			item.State,
			formatTimestamp(item.CreatedAt),
		})
	}
	return rows
}

func renderWorkflow(out io.Writer, wf *api.Workflow, full bool) {
	colorize := shouldColorize(out)
	text := func(value string) string {
		if full {
			return value
		}
		return api.Snippet(value, snippetWidth)
	}

	rows := [][]string{
		{"ID", wf.ID},
		{"Topic", wf.Topic},
		{"Tone", wf.Tone},
		{"State", wf.StateLabel},
		{"Step", wf.StepDescription},
		{"Created", formatTimestamp(wf.CreatedAt)},
		{"Updated", formatTimestamp(wf.UpdatedAt)},
	}
	if wf.Feedback != "" {
		rows = append(rows, []string{"Feedback", text(wf.Feedback)})
	}
	if wf.ResearchData != "" {
		rows = append(rows, []string{"Research", text(wf.ResearchData)})
	}
	if wf.Outline != "" {
		rows = append(rows, []string{"Outline", text(wf.Outline)})
	}
	if wf.DraftContent != "" {
		rows = append(rows, []string{"Draft", text(wf.DraftContent)})
	}
	if len(wf.EditChanges) > 0 {
		rows = append(rows, []string{"Edits", strings.Join(wf.EditChanges, "; ")})
	}
	fmt.Fprintln(out, renderColumns(fieldColumns(full), rows))

	if wf.SEO != nil {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("SEO", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, renderColumns(fieldColumns(true), [][]string{
			{"Score", strconv.Itoa(wf.SEO.Score)},
			{"Meta title", wf.SEO.MetaTitle},
			{"Meta description", wf.SEO.MetaDescription},
			{"Keywords", strings.Join(wf.SEO.Keywords, ", ")},
			{"Suggestions", strings.Join(wf.SEO.Suggestions, "; ")},
		}))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Chat", colorize) {
		fmt.Fprintln(out, line)
	}
	if len(wf.ChatHistory) == 0 {
		fmt.Fprintln(out, "No messages")
		return
	}
	chatRows := make([][]string, 0, len(wf.ChatHistory))
	for _, msg := range wf.ChatHistory {
		body := msg.Content
		if !full {
			body = api.Snippet(body, chatSnippetSize)
		}
		chatRows = append(chatRows, []string{formatTimestamp(msg.Timestamp), msg.Role, body})
	}
	fmt.Fprintln(out, renderColumns([]tableColumn{
		{Header: "Time"},
		{Header: "Role"},
		{Header: "Message", MaxWidth: wrapWidth},
	}, chatRows))
}

// fieldColumns returns the Field/Value layout; full output wraps long values
// instead of truncating them.
func fieldColumns(wrap bool) []tableColumn {
	value := tableColumn{Header: "Value"}
	if wrap {
		value.MaxWidth = wrapWidth
	}
	return []tableColumn{{Header: "Field"}, value}
}

func formatTimestamp(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return value
	}
	return t.Local().Format("2006-01-02 15:04")
}
