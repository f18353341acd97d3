package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("Anchor", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Anchor focus timer. Query focus streaks, rank, session history, daily goal progress and the weekly dashboard."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetStats, Handler: h.getStats},
		server.ServerTool{Tool: toolGetSessionHistory, Handler: h.getSessionHistory},
		server.ServerTool{Tool: toolGetRank, Handler: h.getRank},
		server.ServerTool{Tool: toolGetGoalProgress, Handler: h.getGoalProgress},
		server.ServerTool{Tool: toolGetWeeklySummary, Handler: h.getWeeklySummary},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resToday, Handler: h.today},
		server.ServerResource{Resource: resRecentSessions, Handler: h.recentSessions},
		server.ServerResource{Resource: resRankTable, Handler: h.rankTable},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resToday = mcp.NewResource(
	"anchor://today",
	"Today",
	mcp.WithResourceDescription("Today's focus minutes against the daily goal, plus current streak and rank"),
	mcp.WithMIMEType("application/json"),
)

var resRecentSessions = mcp.NewResource(
	"anchor://recent_sessions",
	"Recent Sessions",
	mcp.WithResourceDescription("Focus sessions from the last 7 days, newest first"),
	mcp.WithMIMEType("application/json"),
)

var resRankTable = mcp.NewResource(
	"anchor://rank_table",
	"Rank Table",
	mcp.WithResourceDescription("Every rank and the streak in days needed to reach it"),
	mcp.WithMIMEType("application/json"),
)
