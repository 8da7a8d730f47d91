package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"quill/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

// stateStatusKind maps a workflow state to a status colour: pauses need
// attention, failures are errors.
func stateStatusKind(state string) statusKind {
	switch state {
	case "final":
		return statusOK
	case "waiting_approval", "optimizing":
		return statusWarn
	case "failed":
		return statusError
	default:
		return statusInfo
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderDaemonStatus(cmd *cobra.Command, status *api.DaemonStatus) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if status.Running {
		message := "Running"
		if status.PID > 0 {
			message = fmt.Sprintf("Running (pid %d)", status.PID)
		}
		fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, message, colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, "Not running (run `quill start`)", colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("System Checks", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if len(status.Checks) == 0 {
		fmt.Fprintln(stdout, renderStatusLine("Checks", statusInfo, "none reported", colorize))
	}
	for _, check := range status.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	fmt.Fprintln(stdout)

	if status.Running {
		for _, line := range renderSectionHeader("Scheduler", colorize) {
			fmt.Fprintln(stdout, line)
		}
		for _, line := range schedulerLines(status.Scheduler, colorize) {
			fmt.Fprintln(stdout, line)
		}
		fmt.Fprintln(stdout)
	}

	for _, line := range renderSectionHeader("Workflows", colorize) {
		fmt.Fprintln(stdout, line)
	}
	rows := buildStateCountRows(status.StateCounts)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "No workflows yet")
		return
	}
	fmt.Fprintln(stdout, renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func schedulerLines(sched api.SchedulerStatus, colorize bool) []string {
	kind := statusOK
	if !sched.Running {
		kind = statusWarn
	}
	lines := []string{
		renderStatusLine("Scheduler", kind, fmt.Sprintf("%d workers, %s backpressure", sched.Workers, sched.Backpressure), colorize),
	}
	queueKind := statusInfo
	if sched.QueueCapacity > 0 && sched.QueueDepth >= sched.QueueCapacity {
		queueKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Queue", queueKind, fmt.Sprintf("%d/%d queued", sched.QueueDepth, sched.QueueCapacity), colorize))
	inFlight := "idle"
	if len(sched.InFlight) > 0 {
		ids := make([]string, 0, len(sched.InFlight))
		for _, id := range sched.InFlight {
			ids = append(ids, api.ShortID(id))
		}
		inFlight = strings.Join(ids, ", ")
	}
	lines = append(lines, renderStatusLine("In flight", statusInfo, inFlight, colorize))
	lines = append(lines, renderStatusLine("Processed", statusInfo, fmt.Sprintf("%d (%d failed)", sched.Processed, sched.Failed), colorize))
	if sched.LastError != "" {
		message := sched.LastError
		if sched.LastWorkflowID != "" {
			message = fmt.Sprintf("%s: %s", api.ShortID(sched.LastWorkflowID), message)
		}
		lines = append(lines, renderStatusLine("Last error", statusError, message, colorize))
	}
	return lines
}

// stateOrder lists states in workflow order; unknown states sort after them.
var stateOrder = []string{
	"idle", "researching", "outlining", "waiting_approval",
	"drafting", "editing", "optimizing", "final", "failed",
}

func buildStateCountRows(counts map[string]int) [][]string {
	total := 0
	for _, count := range counts {
		total += count
	}
	if total == 0 {
		return nil
	}
	rank := make(map[string]int, len(stateOrder))
	for i, state := range stateOrder {
		rank[state] = i
	}
	states := make([]string, 0, len(counts))
	for state, count := range counts {
		if count > 0 {
			states = append(states, state)
		}
	}
	sort.Slice(states, func(i, j int) bool {
		ri, okI := rank[states[i]]
		rj, okJ := rank[states[j]]
		switch {
		case okI && okJ:
			return ri < rj
		case okI != okJ:
			return okI
		default:
			return states[i] < states[j]
		}
	})
	rows := make([][]string, 0, len(states))
	for _, state := range states {
		rows = append(rows, []string{state, strconv.Itoa(counts[state])})
	}
	return rows
}
