package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"squish/internal/cascade"
	"squish/internal/logging"
	"squish/internal/queue"
	"squish/internal/services"
)

const managerComponent = "workflow-manager"

// Manager owns the record store and runs queued records serially.
type Manager struct {
	store       *queue.Store
	backend     cascade.Backend
	coordinator *Coordinator
	observer    observers
	logger      *slog.Logger
	newID       func() string
	now         func() time.Time

	mu         sync.RWMutex
	running    bool
	lastErr    error
	lastRecord *queue.Snapshot
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	store     *queue.Store
	observers []Observer
	newID     func() string
	now       func() time.Time
}

// WithObserver registers an observer for record changes. It may be given
// more than once.
func WithObserver(observer Observer) ManagerOption {
	return func(o *managerOptions) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}

// WithStore uses store instead of a fresh one.
func WithStore(store *queue.Store) ManagerOption {
	return func(o *managerOptions) {
		o.store = store
	}
}

// WithIDGenerator overrides record id generation (used in tests).
func WithIDGenerator(fn func() string) ManagerOption {
	return func(o *managerOptions) {
		o.newID = fn
	}
}

// WithClock overrides the wall clock used for timestamps (used in tests).
func WithClock(fn func() time.Time) ManagerOption {
	return func(o *managerOptions) {
		o.now = fn
	}
}

// NewManager constructs a workflow manager.
func NewManager(provider PlanProvider, backend cascade.Backend, logger *slog.Logger, opts ...ManagerOption) *Manager {
	options := &managerOptions{
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.store == nil {
		options.store = queue.NewStore()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	obs := observers(options.observers)
	coordinator := NewCoordinator(options.store, provider, cascade.NewExecutor(backend, logger), obs, logger)
	coordinator.now = options.now

	return &Manager{
		store:       options.store,
		backend:     backend,
		coordinator: coordinator,
		observer:    obs,
		logger:      logging.NewComponentLogger(logger, managerComponent),
		newID:       options.newID,
		now:         options.now,
	}
}

// Enqueue admits artifact as a new QUEUED record and returns its id.
// Content that the backend cannot read as an image is refused.
func (m *Manager) Enqueue(ctx context.Context, artifact cascade.Artifact, profile cascade.Profile) (string, error) {
	resolved, err := cascade.ParseProfile(string(profile))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, managerComponent, "enqueue", "unknown quality profile", err)
	}
	if artifact.Empty() {
		return "", fmt.Errorf("%w: %s is empty", ErrUnsupportedArtifact, artifact.Name)
	}
	if m.backend != nil {
		if _, _, err := m.backend.Dimensions(ctx, artifact); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrUnsupportedArtifact, artifact.Name, err)
		}
	}

	rec := queue.NewRecord(m.newID(), artifact, resolved, m.now())
	if _, err := m.store.Add(rec); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", artifact.Name, err)
	}
	m.observer.RecordUpdated(rec.Snapshot())

	logging.WithContext(services.WithRecordID(ctx, rec.ID), m.logger).Info("record queued",
		logging.String("artifact", artifact.Name),
		logging.String("profile", string(resolved)),
		logging.Int64("original_bytes", artifact.Size()),
		logging.String("digest", artifact.Digest),
		logging.String(logging.FieldEventType, "record_queued"),
	)
	return rec.ID, nil
}

// RunAll processes every QUEUED record in enqueue order, one at a time.
// Records enqueued after the call starts wait for the next RunAll.
func (m *Manager) RunAll(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	order := m.store.Order()
	start := time.Now()
	processed := 0
	m.logger.Info("queue run started",
		logging.Int("records", len(order)),
		logging.String(logging.FieldEventType, "queue_start"),
	)

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			m.logger.Info("queue run stopped", logging.Error(err), logging.Int("processed", processed))
			return err
		}
		snap, ok := m.store.Get(id)
		if !ok || snap.Status != queue.StatusQueued {
			continue
		}
		result, err := m.coordinator.Run(ctx, id, m.store.Epoch())
		processed++
		if err != nil {
			m.setLastError(err)
			if errors.Is(err, queue.ErrDiscarded) || errors.Is(err, queue.ErrNotFound) {
				m.logger.Debug("record dropped by reset", logging.String(logging.FieldRecordID, id))
				continue
			}
			m.logger.Warn("record could not be processed",
				logging.String(logging.FieldRecordID, id),
				logging.Error(err),
				logging.String(logging.FieldEventType, "record_skipped"),
			)
			continue
		}
		m.setLastRecord(result)
	}

	m.logger.Info("queue run finished",
		logging.Int("processed", processed),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "queue_complete"),
	)
	return nil
}

// Reset discards every record. Writes from a record still in flight are
// dropped when they land.
func (m *Manager) Reset() int {
	cleared := m.store.Reset()
	m.mu.Lock()
	m.lastRecord = nil
	m.lastErr = nil
	m.mu.Unlock()
	m.observer.QueueReset()
	m.logger.Info("queue reset",
		logging.Int("cleared", cleared),
		logging.String(logging.FieldEventType, "queue_reset"),
	)
	return cleared
}

// Snapshot returns a copy of record id.
func (m *Manager) Snapshot(id string) (queue.Snapshot, bool) {
	return m.store.Get(id)
}

// Snapshots returns copies of every record in enqueue order.
func (m *Manager) Snapshots() []queue.Snapshot {
	return m.store.List()
}
