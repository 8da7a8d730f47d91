// Package services defines shared utilities consumed by the workflow engine
// and its external integrations.
//
// Context helpers stamp workflow IDs, states, and correlation identifiers for
// logging and tracing. Error markers plus Wrap give failures a consistent
// classification that FailureHint turns into operator guidance.
package services
