// Package notifications delivers workflow updates to observers.
//
// Every implementation satisfies Notifier, the port the engine calls after
// each persisted mutation:
//   - Ntfy pushes milestone notifications (outline ready, SEO ready,
//     finalized, failed) to an ntfy topic. NewNtfy returns nil when no topic
//     is configured.
//   - EventBus publishes workflow.updated events on an in-process watermill
//     channel; the daemon's SSE endpoint subscribes per workflow.
//   - Multi fans out to several notifiers and logs individual failures.
//   - Nop discards everything.
//
// Notification failures never affect workflow state; callers log and move on.
package notifications
