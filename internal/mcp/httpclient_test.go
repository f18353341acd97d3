package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/claude/anchor/internal/ledger"
	"github.com/claude/anchor/internal/models"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestHTTPClientStats verifies the stats payload is decoded.
func TestHTTPClientStats(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/stats": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, models.UserStats{CurrentStreak: 4, LongestStreak: 9, DailyGoalMinutes: 90})
		},
	})
	defer ts.Close()

	stats, err := NewHTTPClient(ts.URL + "/").Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.CurrentStreak != 4 || stats.LongestStreak != 9 || stats.DailyGoalMinutes != 90 {
		t.Errorf("stats = %+v", stats)
	}
}

// TestHTTPClientHistoryLimit verifies the limit query parameter is sent only
// when positive.
func TestHTTPClientHistoryLimit(t *testing.T) {
	var gotQuery []string
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/history": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = append(gotQuery, r.URL.RawQuery)
			writeTestJSON(t, w, []models.SessionLog{{ID: "x", DurationMinutes: 25, Success: true}})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	logs, err := client.History(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].DurationMinutes != 25 {
		t.Errorf("logs = %+v", logs)
	}
	if _, err := client.History(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	if len(gotQuery) != 2 || gotQuery[0] != "limit=5" || gotQuery[1] != "" {
		t.Errorf("queries = %q, want [limit=5 \"\"]", gotQuery)
	}
}

// TestHTTPClientRank verifies the nested next-rank pointer survives decoding.
func TestHTTPClientRank(t *testing.T) {
	next := models.Rank{Name: "Steady", MinStreak: 7}
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/rank": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, ledger.RankInfo{Rank: models.Rank{Name: "Grounded", MinStreak: 3}, CurrentStreak: 5, Next: &next, DaysToNext: 2})
		},
	})
	defer ts.Close()

	rank, err := NewHTTPClient(ts.URL).Rank(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rank.Next == nil || rank.Next.Name != "Steady" || rank.DaysToNext != 2 {
		t.Errorf("rank = %+v", rank)
	}
}

// TestHTTPClientErrorStatus verifies non-200 responses become errors that
// carry the body.
func TestHTTPClientErrorStatus(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/goal/today": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL).GoalProgress(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "boom") {
		t.Errorf("error = %v", err)
	}
}

// TestHTTPClientWeekly verifies the weekly summary is decoded.
func TestHTTPClientWeekly(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/summary/weekly": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, models.WeeklySummary{WeekMinutes: 120, CompletionPercent: 29, Days: make([]models.DayMinutes, 7)})
		},
	})
	defer ts.Close()

	weekly, err := NewHTTPClient(ts.URL).Weekly(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if weekly.WeekMinutes != 120 || weekly.CompletionPercent != 29 || len(weekly.Days) != 7 {
		t.Errorf("weekly = %+v", weekly)
	}
}
