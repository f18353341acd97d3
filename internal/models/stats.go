package models

import (
	"slices"
	"time"
)

// StatsKey is the PersistenceStore key holding the serialized UserStats.
const StatsKey = "anchor_user_stats"

// MaxHistory is the number of session logs retained, newest first.
const MaxHistory = 100

// Daily goal bounds in minutes.
const (
	MinDailyGoal     = 1
	MaxDailyGoal     = 24 * 60
	DefaultDailyGoal = 60
)

// DefaultSessionTypes are the session type names a fresh install starts with.
var DefaultSessionTypes = []string{"Deep Work", "Study", "Meditation"}

// SessionLog is one recorded session. Logs are immutable once written.
type SessionLog struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	DurationMinutes int       `json:"durationMinutes"`
	Success         bool      `json:"success"`
	SessionType     string    `json:"sessionType"`
	FocusScore      int       `json:"focusScore"`
	ViolationCount  int       `json:"violationCount"`
}

// UserStats is the persisted progress singleton.
type UserStats struct {
	CurrentStreak          int          `json:"currentStreak"`
	LongestStreak          int          `json:"longestStreak"`
	TotalFocusedMinutes    int          `json:"totalFocusedMinutes"`
	LastSuccessDate        *time.Time   `json:"lastSuccessDate"`
	DailyGoalMinutes       int          `json:"dailyGoalMinutes"`
	SessionHistory         []SessionLog `json:"sessionHistory"`
	CustomSessionTypeNames []string     `json:"customSessionTypeNames"`
	StrictModeEnabled      bool         `json:"strictModeEnabled"`
}

// DefaultStats returns the stats of a fresh install.
func DefaultStats() UserStats {
	return UserStats{
		DailyGoalMinutes:       DefaultDailyGoal,
		SessionHistory:         []SessionLog{},
		CustomSessionTypeNames: slices.Clone(DefaultSessionTypes),
	}
}

// Clone returns a deep copy so snapshots handed to callers never alias ledger state.
func (s UserStats) Clone() UserStats {
	out := s
	if s.LastSuccessDate != nil {
		t := *s.LastSuccessDate
		out.LastSuccessDate = &t
	}
	out.SessionHistory = slices.Clone(s.SessionHistory)
	if out.SessionHistory == nil {
		out.SessionHistory = []SessionLog{}
	}
	out.CustomSessionTypeNames = slices.Clone(s.CustomSessionTypeNames)
	if out.CustomSessionTypeNames == nil {
		out.CustomSessionTypeNames = []string{}
	}
	return out
}

// Normalize repairs values a hand-edited or partially written blob may carry.
func (s *UserStats) Normalize() {
	s.CurrentStreak = max(s.CurrentStreak, 0)
	s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)
	s.TotalFocusedMinutes = max(s.TotalFocusedMinutes, 0)
	s.DailyGoalMinutes = ClampDailyGoal(s.DailyGoalMinutes)
	if s.SessionHistory == nil {
		s.SessionHistory = []SessionLog{}
	}
	if len(s.SessionHistory) > MaxHistory {
		s.SessionHistory = s.SessionHistory[:MaxHistory]
	}
	if s.CustomSessionTypeNames == nil {
		s.CustomSessionTypeNames = []string{}
	}
}

// ClampDailyGoal bounds a daily goal to [MinDailyGoal, MaxDailyGoal].
func ClampDailyGoal(minutes int) int {
	return min(max(minutes, MinDailyGoal), MaxDailyGoal)
}

// FocusScore maps a session outcome to its recorded score.
//
//	violations: 0 → 100, 1 → 90, 2 → 75, ≥3 → 60; failed sessions score 0.
func FocusScore(success bool, violationCount int) int {
	if !success {
		return 0
	}
	switch {
	case violationCount <= 0:
		return 100
	case violationCount == 1:
		return 90
	case violationCount == 2:
		return 75
	default:
		return 60
	}
}
