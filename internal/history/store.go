package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"squish/internal/cascade"
	"squish/internal/config"
	"squish/internal/queue"
)

// Store journals finished records.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one journaled record.
type Entry struct {
	ID             string
	ArtifactName   string
	ArtifactDigest string
	Profile        cascade.Profile
	Status         queue.Status
	OriginalBytes  int64
	OutputName     string
	OutputBytes    int64
	StrategyName   string
	AttemptIndex   int
	Savings        float64
	ErrorMessage   string
	Plan           *cascade.Plan
	Trace          []TraceLine
	EnqueuedAt     time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
}

// TraceLine is the stored form of a queue.TraceEntry.
type TraceLine struct {
	Sequence int               `json:"sequence"`
	Kind     cascade.TraceKind `json:"kind"`
	Text     string            `json:"text"`
	At       time.Time         `json:"at"`
}

const entryColumns = "id, artifact_name, artifact_digest, profile, status, original_bytes, output_name, output_bytes, strategy_name, attempt_index, savings, error_message, plan_json, trace_json, enqueued_at, started_at, finished_at"

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record journals a finished snapshot. Writing the same id again replaces the
// earlier row.
func (s *Store) Record(ctx context.Context, snap queue.Snapshot) error {
	if !snap.Done() {
		return fmt.Errorf("record %s: status %s is not terminal", snap.ID, snap.Status)
	}

	var planJSON any
	if snap.Plan != nil {
		data, err := json.Marshal(snap.Plan)
		if err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}
		planJSON = string(data)
	}
	lines := make([]TraceLine, len(snap.Trace))
	for i, entry := range snap.Trace {
		lines[i] = TraceLine{Sequence: entry.Sequence, Kind: entry.Kind, Text: entry.Text, At: entry.At.UTC()}
	}
	traceJSON, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}

	var (
		outputName   any
		outputBytes  any
		strategyName any
		attemptIndex any
		savings      any
	)
	if res := snap.Result; res != nil {
		outputName = res.Output.Name
		outputBytes = res.Output.Size()
		strategyName = res.Strategy.Name
		attemptIndex = res.AttemptIndex
		savings = res.Savings
	}

	_, err = s.execWithRetry(ctx,
		`INSERT OR REPLACE INTO records (`+entryColumns+`, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID,
		snap.Original.Name,
		nullableString(snap.Original.Digest),
		string(snap.Profile),
		string(snap.Status),
		snap.Original.Size(),
		outputName,
		outputBytes,
		strategyName,
		attemptIndex,
		savings,
		nullableString(snap.Error),
		planJSON,
		string(traceJSON),
		nullableTime(snap.EnqueuedAt),
		nullableTime(snap.StartedAt),
		nullableTime(snap.FinishedAt),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert record %s: %w", snap.ID, err)
	}
	return nil
}

// List returns the most recently finished entries first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + entryColumns + ` FROM records ORDER BY finished_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Get returns the entry with id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM records WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return entry, nil
}

// Stats counts journaled entries per status.
func (s *Store) Stats(ctx context.Context) (map[queue.Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("record stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[queue.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[queue.Status(status)] = count
	}
	return stats, rows.Err()
}

// Clear deletes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM records`)
	if err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}
	return res.RowsAffected()
}
