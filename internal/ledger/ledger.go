// Package ledger owns the persisted UserStats singleton: streaks, focus
// minutes, session history and user preferences. Every mutator is a
// read-modify-write of the in-memory copy followed by a write of the full
// blob to the injected store.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/claude/anchor/internal/models"
	"github.com/claude/anchor/internal/storage"
	"github.com/google/uuid"
)

// Change describes one mutation. Log is set only by RecordSession.
type Change struct {
	Op     string
	Before models.UserStats
	After  models.UserStats
	Log    *models.SessionLog
}

// RankChanged reports whether the mutation moved the user to another rank.
func (c Change) RankChanged() bool {
	return models.RankFor(c.Before.CurrentStreak).Name != models.RankFor(c.After.CurrentStreak).Name
}

// Observer is called after every mutation, outside the ledger lock.
type Observer func(Change)

// Ledger is safe for concurrent use.
type Ledger struct {
	store storage.Store
	log   *slog.Logger
	now   func() time.Time
	loc   *time.Location

	mu        sync.Mutex
	stats     models.UserStats
	observers []Observer
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation sets the zone used to decide calendar days.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// New loads the stats blob from store. A missing or unparseable blob yields
// the default stats; only a failing store is an error.
func New(ctx context.Context, store storage.Store, log *slog.Logger, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store: store,
		log:   log,
		now:   time.Now,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(l)
	}

	stats, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	l.stats = stats
	return l, nil
}

func (l *Ledger) load(ctx context.Context) (models.UserStats, error) {
	blob, err := l.store.Get(ctx, models.StatsKey)
	if errors.Is(err, storage.ErrNotFound) {
		l.log.Info("no saved stats, starting fresh")
		return models.DefaultStats(), nil
	}
	if err != nil {
		return models.UserStats{}, fmt.Errorf("loading stats: %w", err)
	}
	stats, err := Decode(blob)
	if err != nil {
		l.log.Warn("saved stats unreadable, using defaults", "error", err)
		return models.DefaultStats(), nil
	}
	return stats, nil
}

// Decode parses a stats blob over the defaults so absent fields keep their
// default values.
func Decode(blob []byte) (models.UserStats, error) {
	stats := models.DefaultStats()
	if err := json.Unmarshal(blob, &stats); err != nil {
		return models.UserStats{}, fmt.Errorf("decoding stats: %w", err)
	}
	stats.Normalize()
	return stats, nil
}

// Subscribe registers an observer for future mutations.
func (l *Ledger) Subscribe(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

// Snapshot returns a copy of the current stats.
func (l *Ledger) Snapshot() models.UserStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats.Clone()
}

// Location returns the zone used for calendar-day math.
func (l *Ledger) Location() *time.Location { return l.loc }

// RecordSession applies a finished session to the streak, totals and history.
func (l *Ledger) RecordSession(ctx context.Context, durationMinutes int, success bool, sessionType string, violationCount int) (models.SessionLog, error) {
	now := l.now()
	entry := models.SessionLog{
		ID:              uuid.NewString(),
		Timestamp:       now.UTC(),
		DurationMinutes: max(durationMinutes, 0),
		Success:         success,
		SessionType:     sessionType,
		FocusScore:      models.FocusScore(success, violationCount),
		ViolationCount:  max(violationCount, 0),
	}

	_, err := l.mutate(ctx, "record_session", &entry, func(s *models.UserStats) {
		if success {
			if s.LastSuccessDate == nil || !models.SameDay(*s.LastSuccessDate, now, l.loc) {
				s.CurrentStreak++
			}
			s.TotalFocusedMinutes += entry.DurationMinutes
			ts := entry.Timestamp
			s.LastSuccessDate = &ts
		} else {
			s.CurrentStreak = 0
		}
		s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)

		s.SessionHistory = append([]models.SessionLog{entry}, s.SessionHistory...)
		if len(s.SessionHistory) > models.MaxHistory {
			s.SessionHistory = s.SessionHistory[:models.MaxHistory]
		}
	})
	return entry, err
}

// SetDailyGoal sets the daily goal, clamped to the valid range.
func (l *Ledger) SetDailyGoal(ctx context.Context, minutes int) (models.UserStats, error) {
	return l.mutate(ctx, "set_daily_goal", nil, func(s *models.UserStats) {
		s.DailyGoalMinutes = models.ClampDailyGoal(minutes)
	})
}

// AddCustomSessionType appends a trimmed session type name. Blank names and
// names already present are ignored.
func (l *Ledger) AddCustomSessionType(ctx context.Context, name string) (models.UserStats, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return l.Snapshot(), nil
	}
	return l.mutate(ctx, "add_session_type", nil, func(s *models.UserStats) {
		if !slices.Contains(s.CustomSessionTypeNames, name) {
			s.CustomSessionTypeNames = append(s.CustomSessionTypeNames, name)
		}
	})
}

// RemoveCustomSessionType removes every entry equal to name.
func (l *Ledger) RemoveCustomSessionType(ctx context.Context, name string) (models.UserStats, error) {
	return l.mutate(ctx, "remove_session_type", nil, func(s *models.UserStats) {
		s.CustomSessionTypeNames = slices.DeleteFunc(s.CustomSessionTypeNames, func(t string) bool {
			return t == name
		})
	})
}

// ToggleStrictMode flips strict mode.
func (l *Ledger) ToggleStrictMode(ctx context.Context) (models.UserStats, error) {
	return l.mutate(ctx, "toggle_strict_mode", nil, func(s *models.UserStats) {
		s.StrictModeEnabled = !s.StrictModeEnabled
	})
}

// Replace overwrites the stats wholesale, as an import does.
func (l *Ledger) Replace(ctx context.Context, stats models.UserStats) (models.UserStats, error) {
	stats = stats.Clone()
	stats.Normalize()
	return l.mutate(ctx, "replace", nil, func(s *models.UserStats) {
		*s = stats
	})
}

// mutate applies fn to a copy of the stats, swaps it in, then persists.
// Persistence is the last step; a failed write leaves the in-memory update
// in place and is reported to the caller.
func (l *Ledger) mutate(ctx context.Context, op string, entry *models.SessionLog, fn func(*models.UserStats)) (models.UserStats, error) {
	l.mu.Lock()
	before := l.stats
	next := l.stats.Clone()
	fn(&next)
	l.stats = next
	err := l.persist(ctx, next)
	observers := slices.Clone(l.observers)
	after := next.Clone()
	l.mu.Unlock()

	if err != nil {
		l.log.Warn("persisting stats failed", "op", op, "error", err)
	}
	change := Change{Op: op, Before: before, After: after, Log: entry}
	for _, o := range observers {
		o(change)
	}
	return after, err
}

func (l *Ledger) persist(ctx context.Context, stats models.UserStats) error {
	blob, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	if err := l.store.Set(ctx, models.StatsKey, blob); err != nil {
		return fmt.Errorf("saving stats: %w", err)
	}
	return nil
}
