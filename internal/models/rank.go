package models

// Rank is a named tier unlocked by a streak length.
type Rank struct {
	Name      string `json:"name"`
	MinStreak int    `json:"min_streak"`
}

// Ranks is ordered by descending threshold.
var Ranks = []Rank{
	{Name: "Iron Anchor", MinStreak: 60},
	{Name: "Unshakable", MinStreak: 30},
	{Name: "Disciplined", MinStreak: 14},
	{Name: "Steady", MinStreak: 7},
	{Name: "Grounded", MinStreak: 3},
	{Name: "Novice", MinStreak: 0},
}

// RankFor returns the highest rank whose threshold is ≤ streak.
func RankFor(streak int) Rank {
	for _, r := range Ranks {
		if streak >= r.MinStreak {
			return r
		}
	}
	return Ranks[len(Ranks)-1]
}

// NextRank returns the next rank above streak and the days still needed.
// ok is false once the top rank is reached.
func NextRank(streak int) (next Rank, daysToGo int, ok bool) {
	for i := len(Ranks) - 1; i >= 0; i-- {
		if Ranks[i].MinStreak > streak {
			return Ranks[i], Ranks[i].MinStreak - streak, true
		}
	}
	return Rank{}, 0, false
}
