package history

import (
	"context"
	"log/slog"
	"time"

	"squish/internal/logging"
	"squish/internal/queue"
)

const recordTimeout = 5 * time.Second

// Recorder journals terminal snapshots as they are observed. It satisfies
// workflow.Observer.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder wraps store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logging.NewComponentLogger(logger, "history")}
}

// RecordUpdated writes snapshot when it is terminal and ignores it otherwise.
func (r *Recorder) RecordUpdated(snapshot queue.Snapshot) {
	if r == nil || r.store == nil || !snapshot.Done() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.store.Record(ctx, snapshot); err != nil {
		logging.WarnWithContext(r.logger, "failed to journal record", "history_write_failed",
			logging.String(logging.FieldRecordID, snapshot.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir"),
			logging.String(logging.FieldImpact, "record missing from squish history"),
		)
	}
}
