// Package logs reads the daemon log file for `quill logs`.
//
// Tail returns the last N lines or everything after a byte offset, and can
// wait for new lines in follow mode. A Match function narrows the output, for
// example to a single workflow with WorkflowFilter.
package logs
