// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"trading-agent/internal/models"
)

// LedgerState is the single persisted ledger row.
type LedgerState struct {
	Cash            float64
	StartingCapital float64
	CurrentDate     string
	CreatedAt       time.Time
}

// LedgerStore persists the portfolio ledger. Each method is one transaction.
type LedgerStore interface {
	InitLedger(ctx context.Context, state LedgerState, day models.DailyPnL) error
	LoadLedger(ctx context.Context) (*LedgerState, error)

	// InsertPosition stores a new OPEN position and the debited cash.
	InsertPosition(ctx context.Context, pos models.Position, cash float64, day models.DailyPnL) (int64, error)
	// SettleClose marks an OPEN position CLOSED and stores the credited cash.
	SettleClose(ctx context.Context, pos models.Position, cash float64, day models.DailyPnL) error
	// SaveDay stores the current date and that date's P&L entry.
	SaveDay(ctx context.Context, currentDate string, day models.DailyPnL) error

	GetPosition(ctx context.Context, id int64) (*models.Position, error)
	OpenPositions(ctx context.Context) ([]models.Position, error)
	Positions(ctx context.Context, filter PositionFilter) ([]models.Position, error)
	GetDailyPnL(ctx context.Context, date string) (*models.DailyPnL, error)
	ListDailyPnL(ctx context.Context, limit int) ([]models.DailyPnL, error)
}

// JournalStore persists the append-only audit trail.
type JournalStore interface {
	// AppendTrade assigns rec.TradeID from the per-day sequence and stores it.
	AppendTrade(ctx context.Context, rec *models.TradeRecord) error
	Trades(ctx context.Context, filter TradeFilter) ([]models.TradeRecord, error)

	AppendDecision(ctx context.Context, rec *models.DecisionRecord) error
	Decisions(ctx context.Context, filter DecisionFilter) ([]models.DecisionRecord, error)

	SaveAnalysis(ctx context.Context, entry *models.AnalysisEntry) error
	// LatestAnalysis returns the newest entry for symbol and kind, or nil.
	LatestAnalysis(ctx context.Context, symbol string, kind models.AnalysisKind) (*models.AnalysisEntry, error)
}

// PositionFilter represents filters for querying positions.
type PositionFilter struct {
	Symbol string
	Status models.PositionStatus
	Limit  int
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	Symbol string
	Date   string // YYYY-MM-DD
	Side   models.Side
	Limit  int
}

// DecisionFilter represents filters for querying decision records.
type DecisionFilter struct {
	CycleID string
	Symbol  string
	Outcome models.DecisionOutcome
	Limit   int
}
