package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/claude/anchor/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) today(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	goal, err := h.ds.GoalProgress(ctx)
	if err != nil {
		return nil, err
	}

	rank, err := h.ds.Rank(ctx)
	if err != nil {
		h.log.Warn("today: rank query failed", "error", err)
	}

	return jsonContents(req.Params.URI, map[string]any{
		"goal":           goal,
		"current_streak": rank.CurrentStreak,
		"rank":           rank.Rank.Name,
	})
}

func (h *handlers) recentSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	logs, err := h.ds.History(ctx, 0)
	if err != nil {
		return nil, err
	}
	end := time.Now()
	return jsonContents(req.Params.URI, filterHistory(logs, "", end.AddDate(0, 0, -7), end.Add(time.Minute)))
}

func (h *handlers) rankTable(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(req.Params.URI, models.Ranks)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
