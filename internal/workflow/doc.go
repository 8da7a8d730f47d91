// Package workflow runs the engine's step loop in the background.
//
// The Manager owns a bounded queue of workflow ids and a fixed pool of
// workers. Enqueue is idempotent per id: an id that is already queued is not
// queued twice, and an id that is being processed is rerun once its current
// step loop returns, so no two loops for the same workflow ever overlap. When
// the queue is full the configured backpressure policy either rejects the
// request with ErrQueueFull or blocks the caller until there is room.
//
// Every dequeued id gets a fresh Runner from the RunnerFactory (its own LLM
// client, generator, and engine), so a slow or failing workflow cannot share
// state with another. A recovery sweep, run at start and on a cron schedule,
// re-enqueues workflows the store reports as resumable so work interrupted by
// a crash or shutdown continues from durable state.
package workflow
