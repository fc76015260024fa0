package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/models"
	"trading-agent/internal/store"
)

var (
	day1 = time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestLedger(t *testing.T, capital float64) (*Ledger, *store.SQLiteStore) {
	t.Helper()
	st := newTestStore(t)
	l := New(st, DefaultDailyLossPercent, zerolog.Nop())
	require.NoError(t, l.Initialize(context.Background(), capital, "2026-10-15", day1))
	return l, st
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	l, st := newTestLedger(t, 100000)

	snap := l.Snapshot()
	assert.Equal(t, 100000.0, snap.Cash)
	assert.Equal(t, 100000.0, snap.StartingCapital)
	assert.Equal(t, "2026-10-15", snap.CurrentDate)
	assert.Equal(t, 100000.0, snap.CapitalAtDayStart)
	assert.Empty(t, snap.Positions)
	assert.False(t, snap.CircuitBreakerActive)

	err := l.Initialize(ctx, 50000, "2026-10-15", day1)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyInitialized)

	// A second process sees the stored row.
	other := New(st, DefaultDailyLossPercent, zerolog.Nop())
	err = other.Initialize(ctx, 50000, "2026-10-15", day1)
	var se *apperrors.StateError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyInitialized)
}

func TestInitialize_RejectsNonPositiveCapital(t *testing.T) {
	l := New(newTestStore(t), DefaultDailyLossPercent, zerolog.Nop())
	assert.Error(t, l.Initialize(context.Background(), 0, "2026-10-15", day1))
	assert.False(t, l.Initialized())
}

func TestOperationsRequireInitialization(t *testing.T) {
	ctx := context.Background()
	l := New(newTestStore(t), DefaultDailyLossPercent, zerolog.Nop())

	_, err := l.OpenPosition(ctx, "TCS", 1, 100, 97, day1)
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)

	_, err = l.ClosePosition(ctx, 1, 100, day1)
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)

	assert.ErrorIs(t, l.RolloverDay(ctx, "2026-10-16"), apperrors.ErrNotInitialized)

	err = l.Load(ctx)
	var se *apperrors.StateError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)
}

func TestOpenThenClose_RoundTrip(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 100000)

	id, err := l.OpenPosition(ctx, "RELIANCE", 4, 2500, 2425, day1)
	require.NoError(t, err)
	assert.Positive(t, id)

	snap := l.Snapshot()
	assert.Equal(t, 90000.0, snap.Cash)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "RELIANCE", snap.Positions[0].Symbol)
	assert.Equal(t, 1, snap.Day.TradeCount)

	realized, err := l.ClosePosition(ctx, id, 2612.35, day1.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 449.40, realized, 1e-9)

	snap = l.Snapshot()
	assert.InDelta(t, 100449.40, snap.Cash, 1e-9)
	assert.InDelta(t, 449.40, snap.DailyRealizedPnL, 1e-9)
	assert.Empty(t, snap.Positions)
	assert.False(t, snap.HasOpen("RELIANCE"))
	assert.Equal(t, 2, snap.Day.TradeCount)
	assert.Equal(t, 1, snap.Day.Wins)
	assert.Zero(t, snap.Day.Losses)

	// The slot is free again.
	_, err = l.OpenPosition(ctx, "RELIANCE", 1, 2600, 2522, day1.Add(2*time.Hour))
	assert.NoError(t, err)
}

func TestOpenAndClose_LogWithSymbol(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	l := New(newTestStore(t), DefaultDailyLossPercent, zerolog.New(&buf))
	require.NoError(t, l.Initialize(ctx, 100000, "2026-10-15", day1))

	id, err := l.OpenPosition(ctx, "INFY", 4, 1500, 1455, day1)
	require.NoError(t, err)
	_, err = l.ClosePosition(ctx, id, 1520, day1.Add(time.Hour))
	require.NoError(t, err)

	var opened, closed bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		switch entry["message"] {
		case "Position opened":
			opened = entry["symbol"] == "INFY"
		case "Position closed":
			closed = entry["symbol"] == "INFY" && entry["realized_pnl"] == 80.0
		}
	}
	assert.True(t, opened)
	assert.True(t, closed)
}

func TestClose_AtLossCountsLoss(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 100000)

	id, err := l.OpenPosition(ctx, "INFY", 6, 1500, 1455, day1)
	require.NoError(t, err)
	realized, err := l.ClosePosition(ctx, id, 1450, day1)
	require.NoError(t, err)

	assert.Equal(t, -300.0, realized)
	snap := l.Snapshot()
	assert.Equal(t, 99700.0, snap.Cash)
	assert.Equal(t, 1, snap.Day.Losses)
}

func TestOpenPosition_Errors(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 10000)

	_, err := l.OpenPosition(ctx, "TCS", 2, 3500, 3395, day1)
	require.NoError(t, err)

	t.Run("duplicate symbol", func(t *testing.T) {
		_, err := l.OpenPosition(ctx, "TCS", 1, 3500, 3395, day1)
		var se *apperrors.StateError
		require.ErrorAs(t, err, &se)
		assert.ErrorIs(t, err, apperrors.ErrDuplicatePosition)
		assert.Equal(t, "TCS", se.Symbol)
	})

	t.Run("insufficient cash", func(t *testing.T) {
		_, err := l.OpenPosition(ctx, "INFY", 3, 1500, 1455, day1)
		assert.ErrorIs(t, err, apperrors.ErrInsufficientCash)
	})

	t.Run("invalid quantity", func(t *testing.T) {
		_, err := l.OpenPosition(ctx, "INFY", 0, 1500, 1455, day1)
		assert.Error(t, err)
	})

	snap := l.Snapshot()
	assert.Equal(t, 3000.0, snap.Cash)
	assert.Equal(t, 1, snap.OpenCount())
}

func TestClosePosition_ClassifiesMissingIDs(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 100000)

	id, err := l.OpenPosition(ctx, "SBIN", 10, 800, 776, day1)
	require.NoError(t, err)
	_, err = l.ClosePosition(ctx, id, 810, day1)
	require.NoError(t, err)

	_, err = l.ClosePosition(ctx, id, 820, day1)
	var se *apperrors.StateError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyClosed)

	_, err = l.ClosePosition(ctx, 999, 820, day1)
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, apperrors.ErrUnknownPosition)
	assert.False(t, apperrors.IsFatal(err))
}

func TestCircuitBreaker(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 100000)

	require.NoError(t, l.MarkUnrealized(ctx, "2026-10-15", -1999.99))
	active, err := l.EvaluateCircuitBreaker(ctx, "2026-10-15")
	require.NoError(t, err)
	assert.False(t, active)

	// Exactly -2% of 100000 trips.
	require.NoError(t, l.MarkUnrealized(ctx, "2026-10-15", -2000))
	active, err = l.EvaluateCircuitBreaker(ctx, "2026-10-15")
	require.NoError(t, err)
	assert.True(t, active)

	// Recovery does not clear it.
	require.NoError(t, l.MarkUnrealized(ctx, "2026-10-15", 5000))
	active, err = l.EvaluateCircuitBreaker(ctx, "2026-10-15")
	require.NoError(t, err)
	assert.True(t, active)
	assert.True(t, l.Snapshot().CircuitBreakerActive)
}

func TestDateMismatch(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 100000)

	err := l.MarkUnrealized(ctx, "2026-10-16", 10)
	assert.ErrorIs(t, err, apperrors.ErrDateMismatch)

	_, err = l.EvaluateCircuitBreaker(ctx, "2026-10-14")
	assert.ErrorIs(t, err, apperrors.ErrDateMismatch)

	assert.ErrorIs(t, l.RolloverDay(ctx, "2026-10-14"), apperrors.ErrDateMismatch)
}

func TestRolloverDay(t *testing.T) {
	ctx := context.Background()
	l, st := newTestLedger(t, 100000)

	_, err := l.OpenPosition(ctx, "TCS", 2, 3500, 3395, day1)
	require.NoError(t, err)
	require.NoError(t, l.MarkUnrealized(ctx, "2026-10-15", -2500))
	active, err := l.EvaluateCircuitBreaker(ctx, "2026-10-15")
	require.NoError(t, err)
	require.True(t, active)

	before := l.Snapshot()
	require.NoError(t, l.RolloverDay(ctx, "2026-10-16"))
	after := l.Snapshot()

	assert.Equal(t, "2026-10-16", after.CurrentDate)
	assert.False(t, after.CircuitBreakerActive)
	assert.Zero(t, after.DailyRealizedPnL)
	assert.Zero(t, after.DailyUnrealizedPnL)
	assert.Equal(t, before.Cash, after.Cash)
	assert.Equal(t, before.Positions, after.Positions)
	assert.Equal(t, 100000.0, after.CapitalAtDayStart)

	// The previous day keeps its breaker flag.
	prev, err := st.GetDailyPnL(ctx, "2026-10-15")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.True(t, prev.CircuitBreakerHit)

	// Rolling to the current date again is a no-op.
	require.NoError(t, l.RolloverDay(ctx, "2026-10-16"))
	assert.Equal(t, after, l.Snapshot())
}

func TestLoad_RestoresState(t *testing.T) {
	ctx := context.Background()
	l, st := newTestLedger(t, 100000)

	_, err := l.OpenPosition(ctx, "HDFCBANK", 5, 1650, 1600.5, day1)
	require.NoError(t, err)
	id, err := l.OpenPosition(ctx, "ITC", 20, 450, 436.5, day1)
	require.NoError(t, err)
	_, err = l.ClosePosition(ctx, id, 460, day1)
	require.NoError(t, err)
	require.NoError(t, l.MarkUnrealized(ctx, "2026-10-15", 125.5))

	restored := New(st, DefaultDailyLossPercent, zerolog.Nop())
	require.NoError(t, restored.Load(ctx))

	want, got := l.Snapshot(), restored.Snapshot()
	assert.Equal(t, want.Cash, got.Cash)
	assert.Equal(t, want.CurrentDate, got.CurrentDate)
	assert.Equal(t, want.Day, got.Day)
	require.Len(t, got.Positions, 1)
	assert.Equal(t, "HDFCBANK", got.Positions[0].Symbol)
	assert.Equal(t, want.Positions[0].ID, got.Positions[0].ID)
	assert.Equal(t, 1600.5, got.Positions[0].StopLoss)
}

// failingStore fails position writes after the ledger is initialized.
type failingStore struct {
	store.LedgerStore
	err error
}

func (f *failingStore) InsertPosition(context.Context, models.Position, float64, models.DailyPnL) (int64, error) {
	return 0, f.err
}

func (f *failingStore) SettleClose(context.Context, models.Position, float64, models.DailyPnL) error {
	return f.err
}

func (f *failingStore) SaveDay(context.Context, string, models.DailyPnL) error {
	return f.err
}

func TestStoreFailureIsFatalAndLeavesMemoryUntouched(t *testing.T) {
	ctx := context.Background()
	healthy, st := newTestLedger(t, 100000)
	id, err := healthy.OpenPosition(ctx, "LT", 2, 3600, 3492, day1)
	require.NoError(t, err)

	fs := &failingStore{LedgerStore: st, err: errors.New("disk I/O error")}
	l := New(fs, DefaultDailyLossPercent, zerolog.Nop())
	require.NoError(t, l.Load(ctx))
	before := l.Snapshot()

	_, err = l.OpenPosition(ctx, "TCS", 1, 3500, 3395, day2)
	assert.True(t, apperrors.IsFatal(err))

	_, err = l.ClosePosition(ctx, id, 3700, day2)
	assert.True(t, apperrors.IsFatal(err))

	assert.True(t, apperrors.IsFatal(l.RolloverDay(ctx, "2026-10-16")))
	assert.True(t, apperrors.IsFatal(l.MarkUnrealized(ctx, "2026-10-15", -50)))

	assert.Equal(t, before, l.Snapshot())
}

func TestStoreOnlyPositionIsCorruptState(t *testing.T) {
	ctx := context.Background()
	l, st := newTestLedger(t, 100000)

	// A second ledger writes behind the first one's back.
	other := New(st, DefaultDailyLossPercent, zerolog.Nop())
	require.NoError(t, other.Load(ctx))
	_, err := other.OpenPosition(ctx, "WIPRO", 10, 450, 436.5, day1)
	require.NoError(t, err)

	_, err = l.OpenPosition(ctx, "WIPRO", 10, 450, 436.5, day1)
	assert.True(t, apperrors.IsFatal(err))
	assert.ErrorIs(t, err, apperrors.ErrCorruptState)
}
