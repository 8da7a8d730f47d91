// Package engine advances content workflows through their phases.
//
// Run is the step loop: it re-reads the persisted workflow at the start of
// every iteration, dispatches on its state, saves, and notifies, stopping at
// pause states, terminal states, or when the iteration budget runs out. The
// remaining exported methods are the human-triggered operations (approve,
// reject, revise, apply SEO, finalize, chat). They make a single edit under
// the workflow's lock and then hand the id back to the Scheduler.
//
// Phase failures are recorded on the workflow (state Failed plus a system chat
// entry) and never returned to the caller of Run. Persistence failures halt the
// loop and are returned.
package engine
