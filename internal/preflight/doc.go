// Package preflight provides readiness checks for the filesystem paths and
// external services quill depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunLocal at startup and reports the results on
//     /api/status. Failures are logged but do not stop the daemon.
//   - "quill status" calls RunAll, which adds a live LLM health check.
package preflight
