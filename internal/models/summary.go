package models

import "time"

// GoalProgress is today's successful focus time against the daily goal.
type GoalProgress struct {
	Date         string  `json:"date"`
	Minutes      int     `json:"minutes"`
	GoalMinutes  int     `json:"goal_minutes"`
	Progress     float64 `json:"progress"`
	GoalAchieved bool    `json:"goal_achieved"`
}

// DayMinutes is the successful focus time of one calendar day.
type DayMinutes struct {
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Minutes int    `json:"minutes"`
}

// WeeklySummary backs the dashboard view.
type WeeklySummary struct {
	Days                []DayMinutes `json:"days"`
	WeekStart           string       `json:"week_start"`
	WeekEnd             string       `json:"week_end"`
	WeekMinutes         int          `json:"week_minutes"`
	WeekSessions        int          `json:"week_sessions"`
	CompletionPercent   int          `json:"completion_percent"`
	LongestStreak       int          `json:"longest_streak"`
	TotalFocusedMinutes int          `json:"total_focused_minutes"`
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DailyProgress computes goal progress for the day containing now.
func DailyProgress(s UserStats, now time.Time, loc *time.Location) GoalProgress {
	minutes := successMinutesOn(s.SessionHistory, now, loc)
	goal := ClampDailyGoal(s.DailyGoalMinutes)
	progress := min(float64(minutes)/float64(goal), 1)
	return GoalProgress{
		Date:         StartOfDay(now, loc).Format(time.DateOnly),
		Minutes:      minutes,
		GoalMinutes:  goal,
		Progress:     progress,
		GoalAchieved: minutes >= goal,
	}
}

// Weekly computes the last seven days of focus time plus totals for the
// Sunday-to-Saturday week containing now.
func Weekly(s UserStats, now time.Time, loc *time.Location) WeeklySummary {
	today := StartOfDay(now, loc)
	out := WeeklySummary{
		Days:                make([]DayMinutes, 0, 7),
		LongestStreak:       s.LongestStreak,
		TotalFocusedMinutes: s.TotalFocusedMinutes,
	}
	for i := 6; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		out.Days = append(out.Days, DayMinutes{
			Date:    day.Format(time.DateOnly),
			Weekday: day.Weekday().String()[:3],
			Minutes: successMinutesOn(s.SessionHistory, day, loc),
		})
	}

	weekStart := today.AddDate(0, 0, -int(today.Weekday()))
	weekEnd := weekStart.AddDate(0, 0, 7)
	out.WeekStart = weekStart.Format(time.DateOnly)
	out.WeekEnd = weekEnd.AddDate(0, 0, -1).Format(time.DateOnly)
	for _, l := range s.SessionHistory {
		ts := l.Timestamp.In(loc)
		if ts.Before(weekStart) || !ts.Before(weekEnd) {
			continue
		}
		out.WeekSessions++
		if l.Success {
			out.WeekMinutes += l.DurationMinutes
		}
	}

	weeklyGoal := ClampDailyGoal(s.DailyGoalMinutes) * 7
	out.CompletionPercent = min(int(float64(out.WeekMinutes)/float64(weeklyGoal)*100+0.5), 100)
	return out
}

func successMinutesOn(history []SessionLog, day time.Time, loc *time.Location) int {
	total := 0
	for _, l := range history {
		if l.Success && SameDay(l.Timestamp, day, loc) {
			total += l.DurationMinutes
		}
	}
	return total
}
