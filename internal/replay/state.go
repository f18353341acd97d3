package replay

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Replayed is one trace recorded in the state database.
type Replayed struct {
	Hash       string
	Path       string
	Size       int64
	Samples    int
	ReplayedAt time.Time
}

// StateDB remembers trace contents that have been replayed. Entries are
// keyed by content hash, so a renamed or re-copied trace is still skipped.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS replayed_traces (
		hash        TEXT PRIMARY KEY,
		path        TEXT NOT NULL,
		size        INTEGER NOT NULL,
		samples     INTEGER NOT NULL DEFAULT 0,
		replayed_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// Seen reports whether content with this hash has been replayed.
func (s *StateDB) Seen(ctx context.Context, hash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM replayed_traces WHERE hash = ?`, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up %s: %w", hash, err)
	}
	return true, nil
}

// Record stores a fully replayed trace. A zero ReplayedAt is set to now.
func (s *StateDB) Record(ctx context.Context, r Replayed) error {
	if r.ReplayedAt.IsZero() {
		r.ReplayedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO replayed_traces (hash, path, size, samples, replayed_at) VALUES (?, ?, ?, ?, ?)`,
		r.Hash, r.Path, r.Size, r.Samples, r.ReplayedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", r.Path, err)
	}
	return nil
}

// Recent lists up to limit traces, most recently replayed first.
func (s *StateDB) Recent(ctx context.Context, limit int) ([]Replayed, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, path, size, samples, replayed_at FROM replayed_traces
		 ORDER BY replayed_at DESC, path LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing replayed traces: %w", err)
	}
	defer rows.Close()

	var out []Replayed
	for rows.Next() {
		var r Replayed
		var ms int64
		if err := rows.Scan(&r.Hash, &r.Path, &r.Size, &r.Samples, &ms); err != nil {
			return nil, fmt.Errorf("scanning replayed trace: %w", err)
		}
		r.ReplayedAt = time.UnixMilli(ms)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Reset forgets every replayed trace and returns how many were removed.
func (s *StateDB) Reset(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM replayed_traces`)
	if err != nil {
		return 0, fmt.Errorf("resetting state: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashFile returns the hex SHA-256 of a file's content and its size.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
