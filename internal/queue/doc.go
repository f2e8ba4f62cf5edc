// Package queue holds processing records in memory and exposes helpers for
// driving their lifecycle.
//
// The Store keeps an order-preserving id list next to an id to record map.
// Every mutation goes through Store.Update with the epoch captured when work
// began; a Reset bumps the epoch so writes from work started before the reset
// settle as ErrDiscarded instead of resurrecting cleared records.
//
// Records follow QUEUED -> PROCESSING -> {COMPLETE | OPTIMIZATION_FAILED |
// ERROR}. Terminal records never move again; callers read them through
// Snapshot values, which are deep copies.
package queue
