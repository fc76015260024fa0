package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "trading.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func initLedger(t *testing.T, st *SQLiteStore, cash float64) {
	t.Helper()
	err := st.InitLedger(context.Background(),
		LedgerState{Cash: cash, StartingCapital: cash, CurrentDate: "2026-10-15", CreatedAt: time.Now()},
		models.DailyPnL{Date: "2026-10-15", CapitalAtDayStart: cash})
	require.NoError(t, err)
}

// 11:00 IST on 15 Oct 2026.
var tradeTime = time.Date(2026, time.October, 15, 5, 30, 0, 0, time.UTC)

func TestLedgerRow(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.LoadLedger(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)

	initLedger(t, st, 100000)

	state, err := st.LoadLedger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, state.Cash)
	assert.Equal(t, "2026-10-15", state.CurrentDate)

	err = st.InitLedger(ctx, LedgerState{Cash: 1, StartingCapital: 1, CurrentDate: "2026-10-15", CreatedAt: time.Now()}, models.DailyPnL{Date: "2026-10-15"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyInitialized)
}

func TestPositions_OneOpenPerSymbol(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	initLedger(t, st, 100000)

	pos := models.Position{Symbol: "TCS", Quantity: 2, EntryPrice: 3500, StopLoss: 3395, EntryTime: tradeTime}
	day := models.DailyPnL{Date: "2026-10-15", TradeCount: 1, CapitalAtDayStart: 100000}

	id, err := st.InsertPosition(ctx, pos, 93000, day)
	require.NoError(t, err)

	_, err = st.InsertPosition(ctx, pos, 86000, day)
	assert.ErrorIs(t, err, apperrors.ErrDuplicatePosition)

	// The failed insert rolled back its cash update.
	state, err := st.LoadLedger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 93000.0, state.Cash)

	exit := tradeTime.Add(time.Hour)
	closed := pos
	closed.ID = id
	closed.ExitPrice = 3550
	closed.ExitTime = &exit
	closed.RealizedPnL = 100
	require.NoError(t, st.SettleClose(ctx, closed, 100100, day))
	assert.ErrorIs(t, st.SettleClose(ctx, closed, 100100, day), apperrors.ErrAlreadyClosed)

	// A closed row no longer blocks a new OPEN one.
	_, err = st.InsertPosition(ctx, pos, 93100, day)
	require.NoError(t, err)

	all, err := st.Positions(ctx, PositionFilter{Symbol: "TCS"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.PositionClosed, all[0].Status)
	require.NotNil(t, all[0].ExitTime)
	assert.True(t, all[0].ExitTime.Equal(exit))
	assert.Equal(t, 100.0, all[0].RealizedPnL)
	assert.Equal(t, models.PositionOpen, all[1].Status)
	assert.Nil(t, all[1].ExitTime)

	open, err := st.OpenPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	got, err := st.GetPosition(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PositionClosed, got.Status)

	_, err = st.GetPosition(ctx, 404)
	assert.ErrorIs(t, err, apperrors.ErrUnknownPosition)
}

func TestDailyPnL(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	initLedger(t, st, 100000)

	missing, err := st.GetDailyPnL(ctx, "2026-10-14")
	require.NoError(t, err)
	assert.Nil(t, missing)

	next := models.DailyPnL{Date: "2026-10-16", RealizedPnL: -1200, UnrealizedPnL: -850.5, TradeCount: 3, Losses: 1, CircuitBreakerHit: true, CapitalAtDayStart: 100000}
	require.NoError(t, st.SaveDay(ctx, "2026-10-16", next))

	got, err := st.GetDailyPnL(ctx, "2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, next, *got)

	state, err := st.LoadLedger(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-16", state.CurrentDate)

	days, err := st.ListDailyPnL(ctx, 10)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2026-10-16", days[0].Date)
	assert.Equal(t, "2026-10-15", days[1].Date)
}

func TestAppendTrade_PerDaySequence(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	initLedger(t, st, 100000)
	_, err := st.InsertPosition(ctx, models.Position{Symbol: "INFY", Quantity: 5, EntryPrice: 1500, StopLoss: 1455, EntryTime: tradeTime}, 92500, models.DailyPnL{Date: "2026-10-15"})
	require.NoError(t, err)

	next := func(ts time.Time, side models.Side) *models.TradeRecord {
		rec := &models.TradeRecord{Symbol: "INFY", Side: side, Quantity: 5, Price: 1500, Timestamp: ts, PositionID: 1, Confidence: models.ConfidenceHigh}
		require.NoError(t, st.AppendTrade(ctx, rec))
		return rec
	}

	a := next(tradeTime, models.SideBuy)
	b := next(tradeTime.Add(time.Hour), models.SideSell)
	// 19:00 UTC on the 15th is already the 16th in IST.
	c := next(time.Date(2026, time.October, 15, 19, 0, 0, 0, time.UTC), models.SideBuy)

	assert.Equal(t, "T20261015-0001", a.TradeID)
	assert.Equal(t, "T20261015-0002", b.TradeID)
	assert.Equal(t, "T20261016-0001", c.TradeID)

	assert.Error(t, st.AppendTrade(ctx, a), "a record with an id cannot be appended twice")

	trades, err := st.Trades(ctx, TradeFilter{Date: "2026-10-15"})
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, a.TradeID, trades[0].TradeID)

	sells, err := st.Trades(ctx, TradeFilter{Side: models.SideSell})
	require.NoError(t, err)
	require.Len(t, sells, 1)
	assert.Equal(t, b.TradeID, sells[0].TradeID)

	limited, err := st.Trades(ctx, TradeFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDecisions_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	rec := &models.DecisionRecord{
		CycleID:        "C-1",
		Symbol:         "SBIN",
		Criteria:       models.Criteria{TechnicalOK: true, SentimentOK: true, CapacityOK: true},
		Decision:       models.DecisionSkip,
		Confidence:     models.ConfidenceLow,
		Reasoning:      "red flag veto",
		TechnicalScore: 81.5,
		SentimentLabel: models.SentimentBullish,
		RedFlags:       []string{"RBI penalty", "CEO exit"},
		Outcome:        models.OutcomeNoAction,
		CreatedAt:      tradeTime,
	}
	require.NoError(t, st.AppendDecision(ctx, rec))
	assert.Positive(t, rec.ID)

	other := &models.DecisionRecord{CycleID: "C-2", Symbol: models.CycleScope, Decision: models.DecisionSkip, Outcome: models.OutcomeSkippedClosed, CreatedAt: tradeTime}
	require.NoError(t, st.AppendDecision(ctx, other))

	got, err := st.Decisions(ctx, DecisionFilter{CycleID: "C-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.Criteria, got[0].Criteria)
	assert.Equal(t, rec.RedFlags, got[0].RedFlags)
	assert.Equal(t, 81.5, got[0].TechnicalScore)
	assert.True(t, got[0].CreatedAt.Equal(tradeTime))

	skipped, err := st.Decisions(ctx, DecisionFilter{Outcome: models.OutcomeSkippedClosed})
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, models.CycleScope, skipped[0].Symbol)
	assert.Empty(t, skipped[0].RedFlags)
}

func TestAnalysisCache_LatestWins(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	none, err := st.LatestAnalysis(ctx, "ITC", models.AnalysisSentiment)
	require.NoError(t, err)
	assert.Nil(t, none)

	first := &models.AnalysisEntry{Symbol: "ITC", Kind: models.AnalysisSentiment, Label: "NEUTRAL", CreatedAt: tradeTime}
	second := &models.AnalysisEntry{Symbol: "ITC", Kind: models.AnalysisSentiment, Label: "BULLISH", Details: `{"red_flags":[]}`, CreatedAt: tradeTime.Add(time.Minute)}
	require.NoError(t, st.SaveAnalysis(ctx, first))
	require.NoError(t, st.SaveAnalysis(ctx, second))
	require.NoError(t, st.SaveAnalysis(ctx, &models.AnalysisEntry{Symbol: "ITC", Kind: models.AnalysisCombined, Score: 70, CreatedAt: tradeTime}))

	got, err := st.LatestAnalysis(ctx, "ITC", models.AnalysisSentiment)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, "BULLISH", got.Label)
	assert.Equal(t, `{"red_flags":[]}`, got.Details)
}
