package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// TestFocusScore verifies the violation-to-score mapping.
func TestFocusScore(t *testing.T) {
	tests := []struct {
		success    bool
		violations int
		want       int
	}{
		{true, 0, 100},
		{true, 1, 90},
		{true, 2, 75},
		{true, 3, 60},
		{true, 12, 60},
		{true, -1, 100},
		{false, 0, 0},
		{false, 4, 0},
	}
	for _, tt := range tests {
		if got := FocusScore(tt.success, tt.violations); got != tt.want {
			t.Errorf("FocusScore(%v, %d) = %d, want %d", tt.success, tt.violations, got, tt.want)
		}
	}
}

// TestRankFor verifies thresholds at and around every rank boundary.
func TestRankFor(t *testing.T) {
	tests := []struct {
		streak int
		want   string
	}{
		{0, "Novice"},
		{2, "Novice"},
		{3, "Grounded"},
		{6, "Grounded"},
		{7, "Steady"},
		{13, "Steady"},
		{14, "Disciplined"},
		{29, "Disciplined"},
		{30, "Unshakable"},
		{59, "Unshakable"},
		{60, "Iron Anchor"},
		{365, "Iron Anchor"},
		{-4, "Novice"},
	}
	for _, tt := range tests {
		if got := RankFor(tt.streak).Name; got != tt.want {
			t.Errorf("RankFor(%d) = %q, want %q", tt.streak, got, tt.want)
		}
	}
}

// TestNextRank verifies the distance to the next tier and the top-rank case.
func TestNextRank(t *testing.T) {
	next, days, ok := NextRank(5)
	if !ok || next.Name != "Steady" || days != 2 {
		t.Errorf("NextRank(5) = %q, %d, %v; want Steady, 2, true", next.Name, days, ok)
	}
	next, days, ok = NextRank(0)
	if !ok || next.Name != "Grounded" || days != 3 {
		t.Errorf("NextRank(0) = %q, %d, %v; want Grounded, 3, true", next.Name, days, ok)
	}
	if _, _, ok := NextRank(60); ok {
		t.Error("NextRank(60) should report no next rank")
	}
}

// TestClampDailyGoal verifies the goal is bounded to a day.
func TestClampDailyGoal(t *testing.T) {
	for in, want := range map[int]int{-5: 1, 0: 1, 1: 1, 90: 90, 1440: 1440, 5000: 1440} {
		if got := ClampDailyGoal(in); got != want {
			t.Errorf("ClampDailyGoal(%d) = %d, want %d", in, got, want)
		}
	}
}

// TestCloneDoesNotAlias verifies that mutating a clone leaves the original intact.
func TestCloneDoesNotAlias(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	orig := DefaultStats()
	orig.LastSuccessDate = &ts
	orig.SessionHistory = append(orig.SessionHistory, SessionLog{ID: "a"})

	c := orig.Clone()
	c.SessionHistory[0].ID = "changed"
	c.CustomSessionTypeNames[0] = "changed"
	*c.LastSuccessDate = ts.Add(time.Hour)

	if orig.SessionHistory[0].ID != "a" {
		t.Error("history aliased")
	}
	if orig.CustomSessionTypeNames[0] != "Deep Work" {
		t.Error("session types aliased")
	}
	if !orig.LastSuccessDate.Equal(ts) {
		t.Error("last success date aliased")
	}
}

// TestNormalize verifies repair of out-of-range persisted values.
func TestNormalize(t *testing.T) {
	s := UserStats{
		CurrentStreak:       -2,
		LongestStreak:       -1,
		TotalFocusedMinutes: -30,
		DailyGoalMinutes:    0,
	}
	for i := range MaxHistory + 5 {
		s.SessionHistory = append(s.SessionHistory, SessionLog{DurationMinutes: i})
	}
	s.Normalize()

	if s.CurrentStreak != 0 || s.LongestStreak != 0 || s.TotalFocusedMinutes != 0 {
		t.Errorf("counters not repaired: %+v", s)
	}
	if s.DailyGoalMinutes != MinDailyGoal {
		t.Errorf("daily goal = %d, want %d", s.DailyGoalMinutes, MinDailyGoal)
	}
	if len(s.SessionHistory) != MaxHistory {
		t.Errorf("history len = %d, want %d", len(s.SessionHistory), MaxHistory)
	}
	if s.SessionHistory[0].DurationMinutes != 0 {
		t.Error("normalize should keep the newest entries at the front")
	}
	if s.CustomSessionTypeNames == nil {
		t.Error("nil session types should become empty")
	}
}

// TestNormalizeLongestFollowsCurrent verifies longest is never below current.
func TestNormalizeLongestFollowsCurrent(t *testing.T) {
	s := UserStats{CurrentStreak: 9, LongestStreak: 4, DailyGoalMinutes: 60}
	s.Normalize()
	if s.LongestStreak != 9 {
		t.Errorf("longest = %d, want 9", s.LongestStreak)
	}
}

// TestDefaultStats verifies a fresh install.
func TestDefaultStats(t *testing.T) {
	got := DefaultStats()
	want := UserStats{
		DailyGoalMinutes:       60,
		SessionHistory:         []SessionLog{},
		CustomSessionTypeNames: []string{"Deep Work", "Study", "Meditation"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DefaultStats mismatch (-want +got):\n%s", diff)
	}
}
