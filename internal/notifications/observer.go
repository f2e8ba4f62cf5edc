package notifications

import (
	"context"
	"log/slog"
	"time"

	"squish/internal/logging"
	"squish/internal/queue"
)

const notifyTimeout = 10 * time.Second

// Observer sends a notification for every record that settles in ERROR.
type Observer struct {
	service Service
	logger  *slog.Logger
}

// NewObserver wraps service for use as a workflow observer.
func NewObserver(service Service, logger *slog.Logger) *Observer {
	return &Observer{service: service, logger: logging.NewComponentLogger(logger, "notifications")}
}

// RecordUpdated implements workflow.Observer.
func (o *Observer) RecordUpdated(snap queue.Snapshot) {
	if o == nil || o.service == nil || snap.Status != queue.StatusError {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := o.service.NotifyRecordFailed(ctx, snap.Original.Name, snap.Error); err != nil {
		logging.WarnWithContext(o.logger, "notification failed", "notify_failed",
			logging.String(logging.FieldRecordID, snap.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the failure was not pushed to ntfy"),
		)
	}
}
