// Package history journals finished processing records in SQLite.
//
// The in-memory queue forgets everything on Reset or exit; the journal keeps
// one row per finalized record (status, winning strategy, sizes, savings, plan
// and trace as JSON) so `squish history` can list past runs. Only terminal
// snapshots are written. Schema changes bump schemaVersion; users delete the
// database to adopt a new schema.
package history
