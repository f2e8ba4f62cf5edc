// Package workflow moves processing records through the cascade.
//
// The Manager owns the record store and drives RunAll: it walks the enqueue
// order captured at call time and hands each QUEUED record to the
// Coordinator, one at a time. The Coordinator is the only writer of a record
// while it runs; it fetches a plan, executes the cascade, narrates progress
// into the trace, and settles exactly one terminal status.
//
// Observers see every committed change as a queue.Snapshot. Writes that land
// after a Reset are discarded by the store's epoch check and never reach
// observers.
package workflow
