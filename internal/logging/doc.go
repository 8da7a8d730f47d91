// Package logging assembles structured slog loggers for the quill daemon and
// CLI.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context helpers that tag log lines with workflow IDs, states, and
// correlation IDs. NewNop returns a logger for tests and wiring code that
// must not fail.
package logging
