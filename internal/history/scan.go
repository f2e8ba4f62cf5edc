package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"squish/internal/cascade"
	"squish/internal/queue"
)

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id            string
		name          string
		digest        sql.NullString
		profile       string
		status        string
		originalBytes int64
		outputName    sql.NullString
		outputBytes   sql.NullInt64
		strategyName  sql.NullString
		attemptIndex  sql.NullInt64
		savings       sql.NullFloat64
		errorMessage  sql.NullString
		planJSON      sql.NullString
		traceJSON     sql.NullString
		enqueuedRaw   sql.NullString
		startedRaw    sql.NullString
		finishedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&name,
		&digest,
		&profile,
		&status,
		&originalBytes,
		&outputName,
		&outputBytes,
		&strategyName,
		&attemptIndex,
		&savings,
		&errorMessage,
		&planJSON,
		&traceJSON,
		&enqueuedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:             id,
		ArtifactName:   name,
		ArtifactDigest: digest.String,
		Profile:        cascade.Profile(profile),
		Status:         queue.Status(status),
		OriginalBytes:  originalBytes,
		OutputName:     outputName.String,
		OutputBytes:    outputBytes.Int64,
		StrategyName:   strategyName.String,
		AttemptIndex:   int(attemptIndex.Int64),
		Savings:        savings.Float64,
		ErrorMessage:   errorMessage.String,
	}
	if planJSON.Valid && planJSON.String != "" {
		var plan cascade.Plan
		if err := json.Unmarshal([]byte(planJSON.String), &plan); err == nil {
			entry.Plan = &plan
		}
	}
	if traceJSON.Valid && traceJSON.String != "" {
		_ = json.Unmarshal([]byte(traceJSON.String), &entry.Trace)
	}
	if t, err := parseTimeString(enqueuedRaw.String); err == nil {
		entry.EnqueuedAt = t
	}
	if t, err := parseTimeString(startedRaw.String); err == nil {
		entry.StartedAt = t
	}
	if t, err := parseTimeString(finishedRaw.String); err == nil {
		entry.FinishedAt = t
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
