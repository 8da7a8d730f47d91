// Package api defines the wire-format types shared by the daemon HTTP API and
// its clients, plus a typed HTTP client used by the CLI.
//
// # Key Types
//
// Workflow: transport view of a workflow with a human step description,
// decoded edit changes, SEO result, and chat history.
//
// WorkflowSummary: compact row for list views.
//
// DaemonStatus/SchedulerStatus: runtime information for "quill status".
//
// Event: the workflow.updated payload published on the event bus and
// streamed over SSE.
//
// # Converters
//
// FromWorkflow, SummariesFromWorkflows, FromStatusSummary, MergeStateCounts
// and NewEvent translate internal models into DTOs.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. States are exposed as their lowercase
// identifiers. Timestamps use RFC3339 with milliseconds. Errors travel as
// RFC 7807 problem documents and decode into *Error.
package api
