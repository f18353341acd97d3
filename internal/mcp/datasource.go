package mcp

import (
	"context"

	"github.com/claude/anchor/internal/ledger"
	"github.com/claude/anchor/internal/models"
)

// DataSource abstracts the stats layer for MCP tools. LedgerSource (local
// store) and HTTPClient (remote daemon via REST API) satisfy this interface.
type DataSource interface {
	Stats(ctx context.Context) (models.UserStats, error)
	History(ctx context.Context, limit int) ([]models.SessionLog, error)
	Rank(ctx context.Context) (ledger.RankInfo, error)
	GoalProgress(ctx context.Context) (models.GoalProgress, error)
	Weekly(ctx context.Context) (models.WeeklySummary, error)
}

// LedgerSource serves a ledger loaded in this process.
type LedgerSource struct {
	l *ledger.Ledger
}

// Compile-time check: LedgerSource satisfies DataSource.
var _ DataSource = LedgerSource{}

// NewLedgerSource wraps l.
func NewLedgerSource(l *ledger.Ledger) LedgerSource {
	return LedgerSource{l: l}
}

func (s LedgerSource) Stats(context.Context) (models.UserStats, error) {
	return s.l.Snapshot(), nil
}

func (s LedgerSource) History(_ context.Context, limit int) ([]models.SessionLog, error) {
	return s.l.History(limit), nil
}

func (s LedgerSource) Rank(context.Context) (ledger.RankInfo, error) {
	return s.l.Rank(), nil
}

func (s LedgerSource) GoalProgress(context.Context) (models.GoalProgress, error) {
	return s.l.GoalProgress(), nil
}

func (s LedgerSource) Weekly(context.Context) (models.WeeklySummary, error) {
	return s.l.Weekly(), nil
}
