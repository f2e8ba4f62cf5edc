// Package notifications pushes run milestones to ntfy.
//
// NewService returns a no-op when notifications.ntfy_topic is unset, so
// callers never branch on configuration. Observer adapts the service to the
// workflow observer hook and reports records that end in ERROR.
package notifications
