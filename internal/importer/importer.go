// Package importer loads the stats blob exported from the browser version
// of the app into the ledger.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/claude/anchor/internal/ledger"
	"github.com/claude/anchor/internal/models"
	"github.com/claude/anchor/internal/storage"
	"github.com/google/uuid"
)

// ErrNotEmpty is returned when the ledger already holds sessions and the
// import was not forced.
var ErrNotEmpty = errors.New("importer: ledger already has session history")

// legacyNamespace seeds the deterministic ids given to legacy sessions, so
// importing the same export twice yields the same ids.
var legacyNamespace = uuid.MustParse("6f1d4c1e-8a4b-4f7e-9d55-2b0c7e3a9a10")

// LegacyLog is one session in the browser export. FocusScore is only
// checked; the stored score is always derived from Success and WarningsCount.
type LegacyLog struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	Duration      int    `json:"duration"`
	Success       bool   `json:"success"`
	Type          string `json:"type"`
	FocusScore    *int   `json:"focusScore"`
	WarningsCount int    `json:"warningsCount"`
}

// LegacyStats is the browser export. Fields absent from the export keep
// their zero value and are filled from the defaults on conversion.
type LegacyStats struct {
	CurrentStreak      *int        `json:"currentStreak"`
	LongestStreak      *int        `json:"longestStreak"`
	TotalMinutes       *int        `json:"totalMinutes"`
	LastFocusDate      *string     `json:"lastFocusDate"`
	DailyGoalMinutes   *int        `json:"dailyGoalMinutes"`
	History            []LegacyLog `json:"history"`
	CustomSessionTypes []string    `json:"customSessionTypes"`
	StrictMode         *bool       `json:"strictMode"`
}

// Stats tracks import progress.
type Stats struct {
	SessionsImported int
	SessionsSkipped  int
	SessionsTrimmed  int
	// SessionsRescored counts sessions whose exported focusScore did not
	// match their success flag and warning count.
	SessionsRescored int

	CurrentStreak       int
	LongestStreak       int
	TotalFocusedMinutes int

	Warnings []string
}

// Importer reads a legacy export and replaces the ledger contents with it.
type Importer struct {
	ledger *ledger.Ledger
	logs   storage.Store
	log    *slog.Logger
	dryRun bool
	force  bool
	stats  Stats
}

// New creates a new Importer. Each completed or failed import is appended
// to the import log in logs when it is non-nil. force allows overwriting a
// ledger that already has session history.
func New(l *ledger.Ledger, logs storage.Store, log *slog.Logger, dryRun, force bool) *Importer {
	return &Importer{ledger: l, logs: logs, log: log, dryRun: dryRun, force: force}
}

// ImportFile imports the export stored at path.
func (imp *Importer) ImportFile(ctx context.Context, path string) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()
	return imp.Import(ctx, f, path)
}

// Import parses an export from r, converts it and, unless this is a dry
// run, replaces the ledger stats with the result. source names the export
// in the import log.
func (imp *Importer) Import(ctx context.Context, r io.Reader, source string) (*Stats, error) {
	start := time.Now()
	stats, err := imp.run(ctx, r)
	if !imp.dryRun {
		imp.recordLog(ctx, source, start, err)
	}
	return stats, err
}

func (imp *Importer) recordLog(ctx context.Context, source string, start time.Time, importErr error) {
	if imp.logs == nil {
		return
	}
	ms := int(time.Since(start).Milliseconds())
	entry := storage.ImportLog{
		Source:           source,
		Status:           "success",
		SessionsReceived: imp.stats.SessionsImported + imp.stats.SessionsSkipped + imp.stats.SessionsTrimmed,
		SessionsImported: imp.stats.SessionsImported,
		SessionsSkipped:  imp.stats.SessionsSkipped,
		DurationMs:       &ms,
	}
	if importErr != nil {
		msg := importErr.Error()
		entry.Status = "error"
		entry.ErrorMessage = &msg
	}
	if _, err := storage.InsertImportLog(ctx, imp.logs, entry); err != nil {
		imp.log.Warn("failed to write import log", "error", err)
	}
}

func (imp *Importer) run(ctx context.Context, r io.Reader) (*Stats, error) {
	legacy, err := Parse(r)
	if err != nil {
		return nil, err
	}

	stats, err := imp.convert(legacy)
	if err != nil {
		return &imp.stats, err
	}

	if !imp.force && len(imp.ledger.Snapshot().SessionHistory) > 0 {
		return &imp.stats, ErrNotEmpty
	}

	if imp.dryRun {
		imp.log.Info("dry run, not writing", "sessions", imp.stats.SessionsImported)
		return &imp.stats, nil
	}

	if _, err := imp.ledger.Replace(ctx, stats); err != nil {
		return &imp.stats, fmt.Errorf("saving imported stats: %w", err)
	}
	imp.log.Info("import complete",
		"sessions", imp.stats.SessionsImported,
		"skipped", imp.stats.SessionsSkipped,
		"current_streak", imp.stats.CurrentStreak,
	)
	return &imp.stats, nil
}

// Parse decodes an export. It accepts the stats object itself or a
// localStorage dump holding it under the anchor_user_stats key, either as
// an object or as a JSON-encoded string.
func Parse(r io.Reader) (LegacyStats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return LegacyStats{}, fmt.Errorf("reading export: %w", err)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return LegacyStats{}, fmt.Errorf("parsing export: %w", err)
	}
	if raw, ok := wrapper[models.StatsKey]; ok {
		data = raw
		var encoded string
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte(`"`)) {
			if err := json.Unmarshal(raw, &encoded); err != nil {
				return LegacyStats{}, fmt.Errorf("parsing %s: %w", models.StatsKey, err)
			}
			data = []byte(encoded)
		}
	}

	var legacy LegacyStats
	if err := json.Unmarshal(data, &legacy); err != nil {
		return LegacyStats{}, fmt.Errorf("parsing stats: %w", err)
	}
	return legacy, nil
}

// Convert maps a legacy export onto UserStats without touching any ledger.
func Convert(legacy LegacyStats) (models.UserStats, *Stats, error) {
	imp := &Importer{}
	stats, err := imp.convert(legacy)
	return stats, &imp.stats, err
}

func (imp *Importer) convert(legacy LegacyStats) (models.UserStats, error) {
	stats := models.DefaultStats()
	if legacy.CurrentStreak != nil {
		stats.CurrentStreak = *legacy.CurrentStreak
	}
	if legacy.LongestStreak != nil {
		stats.LongestStreak = *legacy.LongestStreak
	}
	if legacy.TotalMinutes != nil {
		stats.TotalFocusedMinutes = *legacy.TotalMinutes
	}
	if legacy.DailyGoalMinutes != nil {
		stats.DailyGoalMinutes = *legacy.DailyGoalMinutes
	}
	if legacy.StrictMode != nil {
		stats.StrictModeEnabled = *legacy.StrictMode
	}
	if legacy.CustomSessionTypes != nil {
		stats.CustomSessionTypeNames = dedupTrimmed(legacy.CustomSessionTypes)
	}
	if legacy.LastFocusDate != nil && *legacy.LastFocusDate != "" {
		t, err := parseLegacyTime(*legacy.LastFocusDate)
		if err != nil {
			return models.UserStats{}, fmt.Errorf("parsing lastFocusDate: %w", err)
		}
		stats.LastSuccessDate = &t
	}

	for i, l := range legacy.History {
		entry, err := convertLog(l)
		if err != nil {
			imp.stats.SessionsSkipped++
			imp.stats.Warnings = append(imp.stats.Warnings, fmt.Sprintf("history[%d]: %v", i, err))
			continue
		}
		if l.FocusScore != nil && *l.FocusScore != entry.FocusScore {
			imp.stats.SessionsRescored++
			imp.stats.Warnings = append(imp.stats.Warnings,
				fmt.Sprintf("history[%d]: focusScore %d replaced by %d", i, *l.FocusScore, entry.FocusScore))
		}
		stats.SessionHistory = append(stats.SessionHistory, entry)
	}
	sort.SliceStable(stats.SessionHistory, func(i, j int) bool {
		return stats.SessionHistory[i].Timestamp.After(stats.SessionHistory[j].Timestamp)
	})
	if n := len(stats.SessionHistory); n > models.MaxHistory {
		imp.stats.SessionsTrimmed = n - models.MaxHistory
	}

	stats.Normalize()
	imp.stats.SessionsImported = len(stats.SessionHistory)
	imp.stats.CurrentStreak = stats.CurrentStreak
	imp.stats.LongestStreak = stats.LongestStreak
	imp.stats.TotalFocusedMinutes = stats.TotalFocusedMinutes
	return stats, nil
}

func convertLog(l LegacyLog) (models.SessionLog, error) {
	ts, err := parseLegacyTime(l.Date)
	if err != nil {
		return models.SessionLog{}, fmt.Errorf("parsing date %q: %w", l.Date, err)
	}
	if l.Duration < 0 {
		return models.SessionLog{}, fmt.Errorf("negative duration %d", l.Duration)
	}

	id := uuid.NewString()
	if l.ID != "" {
		id = uuid.NewSHA1(legacyNamespace, []byte(l.ID)).String()
	}
	return models.SessionLog{
		ID:              id,
		Timestamp:       ts,
		DurationMinutes: l.Duration,
		Success:         l.Success,
		SessionType:     strings.TrimSpace(l.Type),
		FocusScore:      models.FocusScore(l.Success, l.WarningsCount),
		ViolationCount:  max(l.WarningsCount, 0),
	}, nil
}

// parseLegacyTime accepts the ISO timestamps the browser wrote as well as
// bare dates.
func parseLegacyTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.Parse(time.DateOnly, s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

func dedupTrimmed(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
