// Package journal is the append-only audit trail of decisions and executions.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trading-agent/internal/logging"
	"trading-agent/internal/models"
	"trading-agent/internal/store"
)

// DefaultAnalysisTTL is how long a cached analysis stays usable.
const DefaultAnalysisTTL = 30 * time.Minute

// Store is the persistence the journal needs.
type Store interface {
	store.JournalStore
	GetDailyPnL(ctx context.Context, date string) (*models.DailyPnL, error)
	ListDailyPnL(ctx context.Context, limit int) ([]models.DailyPnL, error)
}

// Journal writes records once and never mutates them.
type Journal struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

// New creates a journal. A non-positive ttl uses DefaultAnalysisTTL.
func New(st Store, ttl time.Duration, logger zerolog.Logger) *Journal {
	if ttl <= 0 {
		ttl = DefaultAnalysisTTL
	}
	return &Journal{
		store:  st,
		ttl:    ttl,
		logger: logging.WithComponent(logger, "journal"),
	}
}

// WriteDecision appends a decision record. Called for every evaluated symbol.
func (j *Journal) WriteDecision(ctx context.Context, rec *models.DecisionRecord) error {
	if rec.ID != 0 {
		return fmt.Errorf("decision %d already written", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := j.store.AppendDecision(ctx, rec); err != nil {
		return err
	}

	logging.LogDecision(logging.WithCycle(j.logger, rec.CycleID), rec.Symbol,
		string(rec.Decision), string(rec.Confidence), fmt.Sprintf("%s [%s]", rec.Reasoning, rec.Outcome))
	return nil
}

// WriteExecution appends a filled order and returns its per-day trade ID.
func (j *Journal) WriteExecution(ctx context.Context, rec *models.TradeRecord) (string, error) {
	if err := j.store.AppendTrade(ctx, rec); err != nil {
		return "", err
	}
	logging.LogTrade(j.logger, rec.TradeID, rec.Symbol, string(rec.Side), rec.Quantity, rec.Price)
	return rec.TradeID, nil
}

// PreviousAnalysis returns the newest analysis younger than the TTL at now, or nil.
// Expired rows stay in the store.
func (j *Journal) PreviousAnalysis(ctx context.Context, symbol string, kind models.AnalysisKind, now time.Time) (*models.AnalysisEntry, error) {
	entry, err := j.store.LatestAnalysis(ctx, symbol, kind)
	if err != nil || entry == nil {
		return nil, err
	}
	if now.Sub(entry.CreatedAt) >= j.ttl {
		j.logger.Debug().
			Str("symbol", symbol).
			Str("kind", string(kind)).
			Dur("age", now.Sub(entry.CreatedAt)).
			Msg("Cached analysis expired")
		return nil, nil
	}
	return entry, nil
}

// SaveAnalysis appends an analysis entry.
func (j *Journal) SaveAnalysis(ctx context.Context, entry *models.AnalysisEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return j.store.SaveAnalysis(ctx, entry)
}

// Trades lists trade records.
func (j *Journal) Trades(ctx context.Context, filter store.TradeFilter) ([]models.TradeRecord, error) {
	return j.store.Trades(ctx, filter)
}

// Decisions lists decision records.
func (j *Journal) Decisions(ctx context.Context, filter store.DecisionFilter) ([]models.DecisionRecord, error) {
	return j.store.Decisions(ctx, filter)
}

// DailyPnL returns the entry for date, or nil if the date was never touched.
func (j *Journal) DailyPnL(ctx context.Context, date string) (*models.DailyPnL, error) {
	return j.store.GetDailyPnL(ctx, date)
}

// RecentDays returns up to limit daily entries, newest first.
func (j *Journal) RecentDays(ctx context.Context, limit int) ([]models.DailyPnL, error) {
	return j.store.ListDailyPnL(ctx, limit)
}

