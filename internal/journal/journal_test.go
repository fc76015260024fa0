package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-agent/internal/models"
	"trading-agent/internal/store"
)

var now = time.Date(2026, time.October, 15, 6, 0, 0, 0, time.UTC)

func newTestJournal(t *testing.T, ttl time.Duration) *Journal {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, ttl, zerolog.Nop())
}

func TestNew_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t, 0)

	entry := &models.AnalysisEntry{Symbol: "INFY", Kind: models.AnalysisSentiment, Label: "NEUTRAL", CreatedAt: now}
	require.NoError(t, j.SaveAnalysis(ctx, entry))

	got, err := j.PreviousAnalysis(ctx, "INFY", models.AnalysisSentiment, now.Add(DefaultAnalysisTTL-time.Second))
	require.NoError(t, err)
	assert.NotNil(t, got)

	got, err = j.PreviousAnalysis(ctx, "INFY", models.AnalysisSentiment, now.Add(DefaultAnalysisTTL))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPreviousAnalysis_TTL(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t, 30*time.Minute)

	entry := &models.AnalysisEntry{Symbol: "TCS", Kind: models.AnalysisSentiment, Label: "BULLISH", CreatedAt: now}
	require.NoError(t, j.SaveAnalysis(ctx, entry))

	tests := []struct {
		name  string
		at    time.Time
		fresh bool
	}{
		{name: "just written", at: now, fresh: true},
		{name: "29 minutes old", at: now.Add(29 * time.Minute), fresh: true},
		{name: "exactly at ttl", at: now.Add(30 * time.Minute), fresh: false},
		{name: "an hour old", at: now.Add(time.Hour), fresh: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := j.PreviousAnalysis(ctx, "TCS", models.AnalysisSentiment, tt.at)
			require.NoError(t, err)
			if tt.fresh {
				require.NotNil(t, got)
				assert.Equal(t, entry.ID, got.ID)
			} else {
				assert.Nil(t, got)
			}
		})
	}

	t.Run("other kind is separate", func(t *testing.T) {
		got, err := j.PreviousAnalysis(ctx, "TCS", models.AnalysisCombined, now)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestWriteDecision_WriteOnce(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t, 0)

	rec := &models.DecisionRecord{CycleID: "C-1", Symbol: "INFY", Decision: models.DecisionExecute, Confidence: models.ConfidenceHigh, Outcome: models.OutcomeExecuted}
	require.NoError(t, j.WriteDecision(ctx, rec))
	assert.NotZero(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	assert.Error(t, j.WriteDecision(ctx, rec))

	got, err := j.Decisions(ctx, store.DecisionFilter{CycleID: "C-1"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWriteExecution_AssignsTradeID(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t, 0)

	id, err := j.WriteExecution(ctx, &models.TradeRecord{Symbol: "ITC", Side: models.SideBuy, Quantity: 10, Price: 450, Timestamp: now, PositionID: 1})
	require.NoError(t, err)
	assert.Equal(t, "T20261015-0001", id)

	trades, err := j.Trades(ctx, store.TradeFilter{Symbol: "ITC"})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, id, trades[0].TradeID)
}

func TestDailyPnL_Missing(t *testing.T) {
	j := newTestJournal(t, 0)

	day, err := j.DailyPnL(context.Background(), "2026-10-15")
	require.NoError(t, err)
	assert.Nil(t, day)

	days, err := j.RecentDays(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, days)
}
