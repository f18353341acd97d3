package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/claude/anchor/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to the last 7 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -7)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// filterHistory keeps logs in [start, end) whose session type matches
// sessionType case-insensitively. An empty sessionType matches all.
func filterHistory(logs []models.SessionLog, sessionType string, start, end time.Time) []models.SessionLog {
	out := make([]models.SessionLog, 0, len(logs))
	for _, l := range logs {
		if l.Timestamp.Before(start) || !l.Timestamp.Before(end) {
			continue
		}
		if sessionType != "" && !strings.EqualFold(l.SessionType, sessionType) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// --- Tool definitions ---

var toolGetStats = mcp.NewTool("get_stats",
	mcp.WithDescription("Get the full focus stats: current and longest streak, lifetime focused minutes, daily goal, session types and strict mode."),
)

var toolGetSessionHistory = mcp.NewTool("get_session_history",
	mcp.WithDescription("List recorded focus sessions, newest first. Each entry has duration, success, session type, focus score (0-100) and violation count. Only the 100 most recent sessions are kept."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of sessions to return. Defaults to 20.")),
	mcp.WithString("session_type", mcp.Description("Filter by session type (e.g. 'Deep Work', 'Study')")),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 7 days before end when only end is set.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now when start is set.")),
)

var toolGetRank = mcp.NewTool("get_rank",
	mcp.WithDescription("Get the rank earned by the current streak and how many more days reach the next rank."),
)

var toolGetGoalProgress = mcp.NewTool("get_goal_progress",
	mcp.WithDescription("Get today's successful focus minutes against the daily goal."),
)

var toolGetWeeklySummary = mcp.NewTool("get_weekly_summary",
	mcp.WithDescription("Get the weekly dashboard: minutes per day for the last 7 days, this week's minutes, session count and goal completion percent, best streak and lifetime minutes."),
)

// --- Tool handlers ---

func (h *handlers) getStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.Stats(ctx)
	if err != nil {
		h.log.Error("mcp get_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(stats)
}

func (h *handlers) getSessionHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}
	sessionType := strings.TrimSpace(req.GetString("session_type", ""))
	startStr, endStr := req.GetString("start", ""), req.GetString("end", "")

	logs, err := h.ds.History(ctx, 0)
	if err != nil {
		h.log.Error("mcp get_session_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	start, end := time.Time{}, time.Now().AddDate(100, 0, 0)
	if startStr != "" || endStr != "" {
		start, end, err = defaultTimeRange(startStr, endStr)
		if err != nil {
			return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
		}
	}

	logs = filterHistory(logs, sessionType, start, end)
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return jsonResult(logs)
}

func (h *handlers) getRank(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rank, err := h.ds.Rank(ctx)
	if err != nil {
		h.log.Error("mcp get_rank", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(rank)
}

func (h *handlers) getGoalProgress(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	goal, err := h.ds.GoalProgress(ctx)
	if err != nil {
		h.log.Error("mcp get_goal_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(goal)
}

func (h *handlers) getWeeklySummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	weekly, err := h.ds.Weekly(ctx)
	if err != nil {
		h.log.Error("mcp get_weekly_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(weekly)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
