// Package logs reads the JSON journal that squish writes under paths.log_dir.
//
// Tail returns the last N matching lines or everything after a byte offset,
// optionally waiting for new lines to appear. Entry and Filter decode the slog
// JSON records so `squish logs` can narrow output to one record, component, or
// minimum level.
package logs
