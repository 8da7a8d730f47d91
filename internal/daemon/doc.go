// Package daemon coordinates the long-running Quill process.
//
// It ties configuration, the workflow store, the background scheduler, the
// event bus, and the HTTP API into a single lifecycle with flock-based
// locking so only one daemon owns a data directory at a time.
//
// Workflow semantics live in the engine package; the daemon focuses on
// startup, shutdown, and exposing engine operations over HTTP.
package daemon
