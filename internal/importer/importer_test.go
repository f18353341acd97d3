package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/claude/anchor/internal/ledger"
	"github.com/claude/anchor/internal/models"
	"github.com/claude/anchor/internal/storage"
	"github.com/google/go-cmp/cmp"
)

const legacyExport = `{
  "currentStreak": 4,
  "longestStreak": 9,
  "totalMinutes": 310,
  "lastFocusDate": "2026-02-10T09:30:00.000Z",
  "dailyGoalMinutes": 90,
  "history": [
    {"id": "k3j2h1g0f", "date": "2026-02-10T09:30:00.000Z", "duration": 25, "success": true, "type": "Study", "focusScore": 90, "warningsCount": 1},
    {"id": "a1b2c3d4e", "date": "2026-02-11T18:00:00.000Z", "duration": 50, "success": false, "type": " Deep Work ", "focusScore": 0, "warningsCount": 2},
    {"id": "broken000", "date": "last tuesday", "duration": 10, "success": true, "type": "Study"}
  ],
  "customSessionTypes": ["Deep Work", " Study", "Study", "Reading", ""],
  "strictMode": true
}`

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(context.Background(), storage.NewMemory(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	return l
}

// TestConvertLegacyExport verifies field mapping, ordering, deduplication of
// session types and skipping of unparseable sessions.
func TestConvertLegacyExport(t *testing.T) {
	legacy, err := Parse(strings.NewReader(legacyExport))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stats, st, err := Convert(legacy)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if stats.CurrentStreak != 4 || stats.LongestStreak != 9 || stats.TotalFocusedMinutes != 310 {
		t.Errorf("counters = %d/%d/%d, want 4/9/310", stats.CurrentStreak, stats.LongestStreak, stats.TotalFocusedMinutes)
	}
	if stats.DailyGoalMinutes != 90 || !stats.StrictModeEnabled {
		t.Errorf("goal = %d strict = %v", stats.DailyGoalMinutes, stats.StrictModeEnabled)
	}
	wantLast := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	if stats.LastSuccessDate == nil || !stats.LastSuccessDate.Equal(wantLast) {
		t.Errorf("last success = %v, want %v", stats.LastSuccessDate, wantLast)
	}
	if diff := cmp.Diff([]string{"Deep Work", "Study", "Reading"}, stats.CustomSessionTypeNames); diff != "" {
		t.Errorf("session types mismatch (-want +got):\n%s", diff)
	}

	if st.SessionsImported != 2 || st.SessionsSkipped != 1 || len(st.Warnings) != 1 {
		t.Errorf("import stats = %+v", st)
	}
	if len(stats.SessionHistory) != 2 {
		t.Fatalf("history len = %d, want 2", len(stats.SessionHistory))
	}
	newest := stats.SessionHistory[0]
	if newest.SessionType != "Deep Work" || newest.Success || newest.ViolationCount != 2 {
		t.Errorf("newest = %+v, want the failed Deep Work session first", newest)
	}
	if stats.SessionHistory[1].FocusScore != 90 {
		t.Errorf("score = %d, want 90", stats.SessionHistory[1].FocusScore)
	}
}

// TestConvertRescoresInconsistentScores verifies exported scores that do not
// follow from success and warnings are replaced and reported.
func TestConvertRescoresInconsistentScores(t *testing.T) {
	legacy, err := Parse(strings.NewReader(`{"history": [
		{"id": "a", "date": "2026-02-12T08:00:00Z", "duration": 25, "success": false, "focusScore": 100, "warningsCount": 0},
		{"id": "b", "date": "2026-02-11T08:00:00Z", "duration": 25, "success": true, "focusScore": 42, "warningsCount": 2},
		{"id": "c", "date": "2026-02-10T08:00:00Z", "duration": 25, "success": true, "focusScore": 60, "warningsCount": 5},
		{"id": "d", "date": "2026-02-09T08:00:00Z", "duration": 25, "success": true, "warningsCount": 1}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	stats, st, err := Convert(legacy)
	if err != nil {
		t.Fatal(err)
	}
	var got []int
	for _, l := range stats.SessionHistory {
		got = append(got, l.FocusScore)
	}
	if diff := cmp.Diff([]int{0, 75, 60, 90}, got); diff != "" {
		t.Errorf("scores (-want +got):\n%s", diff)
	}
	if st.SessionsRescored != 2 || len(st.Warnings) != 2 {
		t.Errorf("rescored = %d, warnings = %q", st.SessionsRescored, st.Warnings)
	}
}

// TestConvertDeterministicIDs verifies importing the same export twice
// yields the same session ids.
func TestConvertDeterministicIDs(t *testing.T) {
	legacy, _ := Parse(strings.NewReader(legacyExport))
	a, _, _ := Convert(legacy)
	b, _, _ := Convert(legacy)
	for i := range a.SessionHistory {
		if a.SessionHistory[i].ID != b.SessionHistory[i].ID {
			t.Errorf("id %d differs between runs", i)
		}
	}
}

// TestConvertMissingFieldsUseDefaults verifies a sparse export keeps default
// values for every absent field.
func TestConvertMissingFieldsUseDefaults(t *testing.T) {
	legacy, err := Parse(strings.NewReader(`{"currentStreak": 2}`))
	if err != nil {
		t.Fatal(err)
	}
	stats, _, err := Convert(legacy)
	if err != nil {
		t.Fatal(err)
	}
	want := models.DefaultStats()
	want.CurrentStreak = 2
	want.LongestStreak = 2
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

// TestParseLocalStorageDump verifies the export may be wrapped under the
// storage key as an object or as an encoded string.
func TestParseLocalStorageDump(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"object", `{"anchor_user_stats": {"totalMinutes": 42}}`},
		{"string", `{"anchor_user_stats": "{\"totalMinutes\": 42}"}`},
		{"bare", `{"totalMinutes": 42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			legacy, err := Parse(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if legacy.TotalMinutes == nil || *legacy.TotalMinutes != 42 {
				t.Errorf("totalMinutes = %v, want 42", legacy.TotalMinutes)
			}
		})
	}

	if _, err := Parse(strings.NewReader(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

// TestImportWritesLedger verifies a real import replaces the ledger stats,
// a second unforced import is refused and both outcomes are logged.
func TestImportWritesLedger(t *testing.T) {
	l := newTestLedger(t)
	logs := storage.NewMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	st, err := New(l, logs, log, false, false).Import(ctx, strings.NewReader(legacyExport), "export.json")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if st.SessionsImported != 2 {
		t.Errorf("imported = %d, want 2", st.SessionsImported)
	}
	if got := l.Snapshot(); got.TotalFocusedMinutes != 310 || len(got.SessionHistory) != 2 {
		t.Errorf("ledger = %+v", got)
	}

	_, err = New(l, logs, log, false, false).Import(ctx, strings.NewReader(legacyExport), "export.json")
	if !errors.Is(err, ErrNotEmpty) {
		t.Errorf("second import err = %v, want ErrNotEmpty", err)
	}

	entries, err := storage.QueryImportLogs(ctx, logs, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("import logs = %d, want 2", len(entries))
	}
	if entries[0].Status != "error" || entries[0].ErrorMessage == nil {
		t.Errorf("refused import log = %+v", entries[0])
	}
	if e := entries[1]; e.Status != "success" || e.Source != "export.json" ||
		e.SessionsReceived != 3 || e.SessionsImported != 2 || e.SessionsSkipped != 1 {
		t.Errorf("first import log = %+v", e)
	}

	if _, err := New(l, nil, log, false, true).Import(ctx, strings.NewReader(`{"totalMinutes": 5}`), "inline"); err != nil {
		t.Fatalf("forced import: %v", err)
	}
	if got := l.Snapshot(); got.TotalFocusedMinutes != 5 || len(got.SessionHistory) != 0 {
		t.Errorf("forced import left %+v", got)
	}
}

// TestImportDryRun verifies a dry run reports counts without writing.
func TestImportDryRun(t *testing.T) {
	l := newTestLedger(t)
	logs := storage.NewMemory()
	st, err := New(l, logs, slog.New(slog.NewTextHandler(io.Discard, nil)), true, false).
		Import(context.Background(), strings.NewReader(legacyExport), "export.json")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if st.SessionsImported != 2 {
		t.Errorf("imported = %d, want 2", st.SessionsImported)
	}
	if got := l.Snapshot(); got.TotalFocusedMinutes != 0 {
		t.Errorf("dry run wrote stats: %+v", got)
	}
	if logs.Writes() != 0 {
		t.Errorf("dry run wrote %d import logs", logs.Writes())
	}
}
