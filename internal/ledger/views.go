package ledger

import "github.com/claude/anchor/internal/models"

// RankInfo is the derived rank for the current streak.
type RankInfo struct {
	Rank          models.Rank  `json:"rank"`
	CurrentStreak int          `json:"current_streak"`
	Next          *models.Rank `json:"next,omitempty"`
	DaysToNext    int          `json:"days_to_next,omitempty"`
}

// Rank derives the rank from the current streak. It is never persisted.
func (l *Ledger) Rank() RankInfo {
	streak := l.Snapshot().CurrentStreak
	info := RankInfo{Rank: models.RankFor(streak), CurrentStreak: streak}
	if next, days, ok := models.NextRank(streak); ok {
		info.Next = &next
		info.DaysToNext = days
	}
	return info
}

// History returns up to limit logs, newest first. limit ≤ 0 returns all.
func (l *Ledger) History(limit int) []models.SessionLog {
	h := l.Snapshot().SessionHistory
	if limit > 0 && len(h) > limit {
		h = h[:limit]
	}
	return h
}

// GoalProgress returns today's progress toward the daily goal.
func (l *Ledger) GoalProgress() models.GoalProgress {
	return models.DailyProgress(l.Snapshot(), l.now(), l.loc)
}

// Weekly returns the dashboard summary for the current week.
func (l *Ledger) Weekly() models.WeeklySummary {
	return models.Weekly(l.Snapshot(), l.now(), l.loc)
}
