package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ImportLogKey is the key holding the JSON list of import logs, newest first.
const ImportLogKey = "anchor_import_log"

// MaxImportLogs is the number of import logs retained.
const MaxImportLogs = 50

// ImportLog represents a single import operation's outcome.
type ImportLog struct {
	ID               int64     `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Source           string    `json:"source"`
	Status           string    `json:"status"`
	SessionsReceived int       `json:"sessions_received"`
	SessionsImported int       `json:"sessions_imported"`
	SessionsSkipped  int       `json:"sessions_skipped"`
	DurationMs       *int      `json:"duration_ms"`
	ErrorMessage     *string   `json:"error_message"`
}

// InsertImportLog prepends a new import log entry and returns its ID.
// The list is read and rewritten whole; callers serialize imports.
func InsertImportLog(ctx context.Context, s Store, entry ImportLog) (int64, error) {
	logs, err := QueryImportLogs(ctx, s, 0)
	if err != nil {
		return 0, err
	}
	entry.ID = 1
	if len(logs) > 0 {
		entry.ID = logs[0].ID + 1
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	logs = append([]ImportLog{entry}, logs...)
	if len(logs) > MaxImportLogs {
		logs = logs[:MaxImportLogs]
	}

	blob, err := json.Marshal(logs)
	if err != nil {
		return 0, fmt.Errorf("encoding import logs: %w", err)
	}
	if err := s.Set(ctx, ImportLogKey, blob); err != nil {
		return 0, fmt.Errorf("inserting import log: %w", err)
	}
	return entry.ID, nil
}

// QueryImportLogs returns up to limit import logs, newest first.
// limit ≤ 0 returns all of them.
func QueryImportLogs(ctx context.Context, s Store, limit int) ([]ImportLog, error) {
	blob, err := s.Get(ctx, ImportLogKey)
	if errors.Is(err, ErrNotFound) {
		return []ImportLog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying import logs: %w", err)
	}
	var logs []ImportLog
	if err := json.Unmarshal(blob, &logs); err != nil {
		return nil, fmt.Errorf("decoding import logs: %w", err)
	}
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
