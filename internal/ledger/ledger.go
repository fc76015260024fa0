// Package ledger owns cash, positions and daily P&L. Every mutation is
// committed to the store before the in-memory state changes.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/logging"
	"trading-agent/internal/models"
	"trading-agent/internal/store"
)

// DefaultDailyLossPercent trips the circuit breaker at a 2% daily loss.
const DefaultDailyLossPercent = 2.0

// Ledger is the single owner of portfolio state.
type Ledger struct {
	mu     sync.RWMutex
	store  store.LedgerStore
	logger zerolog.Logger

	dailyLossPct decimal.Decimal

	loaded          bool
	cash            decimal.Decimal
	startingCapital float64
	currentDate     string
	day             models.DailyPnL
	open            map[string]models.Position
}

// New creates a ledger backed by st. Call Initialize or Load before use.
func New(st store.LedgerStore, dailyLossPercent float64, logger zerolog.Logger) *Ledger {
	if dailyLossPercent <= 0 {
		dailyLossPercent = DefaultDailyLossPercent
	}
	return &Ledger{
		store:        st,
		logger:       logging.WithComponent(logger, "ledger"),
		dailyLossPct: decimal.NewFromFloat(dailyLossPercent).Div(decimal.NewFromInt(100)),
		open:         make(map[string]models.Position),
	}
}

// Initialize creates the ledger with startingCapital on date. It fails with
// ErrAlreadyInitialized when a ledger already exists.
func (l *Ledger) Initialize(ctx context.Context, startingCapital float64, date string, now time.Time) error {
	if startingCapital <= 0 {
		return fmt.Errorf("starting capital must be positive, got %.2f", startingCapital)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return apperrors.NewStateError("initialize", "", apperrors.ErrAlreadyInitialized)
	}

	day := models.DailyPnL{Date: date, CapitalAtDayStart: startingCapital}
	state := store.LedgerState{
		Cash:            startingCapital,
		StartingCapital: startingCapital,
		CurrentDate:     date,
		CreatedAt:       now,
	}
	if err := l.store.InitLedger(ctx, state, day); err != nil {
		if apperrors.Is(err, apperrors.ErrAlreadyInitialized) {
			return apperrors.NewStateError("initialize", "", err)
		}
		return apperrors.NewFatalError("initialize", err)
	}

	l.cash = decimal.NewFromFloat(startingCapital)
	l.startingCapital = startingCapital
	l.currentDate = date
	l.day = day
	l.open = make(map[string]models.Position)
	l.loaded = true

	l.logger.Info().Float64("capital", startingCapital).Str("date", date).Msg("Ledger initialized")
	return nil
}

// Load rebuilds in-memory state from the store.
func (l *Ledger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.LoadLedger(ctx)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotInitialized) {
			return apperrors.NewStateError("load", "", err)
		}
		return apperrors.NewFatalError("load", err)
	}

	positions, err := l.store.OpenPositions(ctx)
	if err != nil {
		return apperrors.NewFatalError("load", err)
	}
	open := make(map[string]models.Position, len(positions))
	for _, p := range positions {
		if _, dup := open[p.Symbol]; dup {
			return apperrors.NewFatalError("load", fmt.Errorf("%w: two open positions for %s", apperrors.ErrCorruptState, p.Symbol))
		}
		open[p.Symbol] = p
	}

	day, err := l.store.GetDailyPnL(ctx, state.CurrentDate)
	if err != nil {
		return apperrors.NewFatalError("load", err)
	}

	l.cash = decimal.NewFromFloat(state.Cash)
	l.startingCapital = state.StartingCapital
	l.currentDate = state.CurrentDate
	l.open = open
	if day != nil {
		l.day = *day
	} else {
		l.day = models.DailyPnL{Date: state.CurrentDate, CapitalAtDayStart: l.equityAtCostLocked().InexactFloat64()}
	}
	l.loaded = true

	l.logger.Debug().
		Float64("cash", state.Cash).
		Int("open_positions", len(open)).
		Str("date", state.CurrentDate).
		Msg("Ledger loaded")
	return nil
}

// Initialized reports whether the ledger holds state.
func (l *Ledger) Initialized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// OpenPosition debits cash and records a new OPEN position.
func (l *Ledger) OpenPosition(ctx context.Context, symbol string, quantity int, entryPrice, stopLoss float64, at time.Time) (int64, error) {
	if quantity <= 0 || entryPrice <= 0 {
		return 0, fmt.Errorf("invalid position %s: quantity %d at %.2f", symbol, quantity, entryPrice)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		return 0, apperrors.NewStateError("open_position", symbol, apperrors.ErrNotInitialized)
	}
	if _, exists := l.open[symbol]; exists {
		return 0, apperrors.NewStateError("open_position", symbol, apperrors.ErrDuplicatePosition)
	}

	cost := decimal.NewFromInt(int64(quantity)).Mul(decimal.NewFromFloat(entryPrice))
	if cost.GreaterThan(l.cash) {
		return 0, apperrors.NewStateError("open_position", symbol, apperrors.ErrInsufficientCash)
	}

	newCash := l.cash.Sub(cost)
	day := l.day
	day.TradeCount++

	pos := models.Position{
		Symbol:     symbol,
		Quantity:   quantity,
		EntryPrice: entryPrice,
		StopLoss:   stopLoss,
		EntryTime:  at,
		Status:     models.PositionOpen,
	}

	id, err := l.store.InsertPosition(ctx, pos, newCash.InexactFloat64(), day)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrDuplicatePosition) {
			return 0, apperrors.NewFatalError("open_position", fmt.Errorf("%w: %s open in store only", apperrors.ErrCorruptState, symbol))
		}
		return 0, apperrors.NewFatalError("open_position", err)
	}

	pos.ID = id
	l.open[symbol] = pos
	l.cash = newCash
	l.day = day

	log := logging.WithSymbol(l.logger, symbol)
	log.Info().
		Int64("position_id", id).
		Int("quantity", quantity).
		Float64("entry", entryPrice).
		Float64("stop_loss", stopLoss).
		Float64("cash", newCash.InexactFloat64()).
		Msg("Position opened")
	return id, nil
}

// ClosePosition credits exitPrice times quantity and returns the realized P&L.
func (l *Ledger) ClosePosition(ctx context.Context, positionID int64, exitPrice float64, at time.Time) (float64, error) {
	if exitPrice <= 0 {
		return 0, fmt.Errorf("invalid exit price %.2f", exitPrice)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		return 0, apperrors.NewStateError("close_position", "", apperrors.ErrNotInitialized)
	}

	pos, ok := l.findOpenLocked(positionID)
	if !ok {
		return 0, l.missingPositionLocked(ctx, positionID)
	}

	qty := decimal.NewFromInt(int64(pos.Quantity))
	exit := decimal.NewFromFloat(exitPrice)
	realized := exit.Sub(decimal.NewFromFloat(pos.EntryPrice)).Mul(qty)
	newCash := l.cash.Add(exit.Mul(qty))

	day := l.day
	day.RealizedPnL = decimal.NewFromFloat(day.RealizedPnL).Add(realized).InexactFloat64()
	day.TradeCount++
	switch realized.Sign() {
	case 1:
		day.Wins++
	case -1:
		day.Losses++
	}

	exitTime := at
	closed := pos
	closed.Status = models.PositionClosed
	closed.ExitPrice = exitPrice
	closed.ExitTime = &exitTime
	closed.RealizedPnL = realized.InexactFloat64()

	if err := l.store.SettleClose(ctx, closed, newCash.InexactFloat64(), day); err != nil {
		if apperrors.Is(err, apperrors.ErrAlreadyClosed) {
			return 0, apperrors.NewFatalError("close_position", fmt.Errorf("%w: %s closed in store only", apperrors.ErrCorruptState, pos.Symbol))
		}
		return 0, apperrors.NewFatalError("close_position", err)
	}

	delete(l.open, pos.Symbol)
	l.cash = newCash
	l.day = day

	log := logging.WithSymbol(l.logger, pos.Symbol)
	log.Info().
		Int64("position_id", positionID).
		Float64("exit", exitPrice).
		Float64("realized_pnl", closed.RealizedPnL).
		Float64("cash", newCash.InexactFloat64()).
		Msg("Position closed")
	return closed.RealizedPnL, nil
}

func (l *Ledger) findOpenLocked(id int64) (models.Position, bool) {
	for _, p := range l.open {
		if p.ID == id {
			return p, true
		}
	}
	return models.Position{}, false
}

// missingPositionLocked classifies an ID that is not open in memory.
func (l *Ledger) missingPositionLocked(ctx context.Context, id int64) error {
	stored, err := l.store.GetPosition(ctx, id)
	switch {
	case apperrors.Is(err, apperrors.ErrUnknownPosition):
		return apperrors.NewStateError("close_position", "", fmt.Errorf("%w: id %d", apperrors.ErrUnknownPosition, id))
	case err != nil:
		return apperrors.NewFatalError("close_position", err)
	case stored.Status == models.PositionClosed:
		return apperrors.NewStateError("close_position", stored.Symbol, apperrors.ErrAlreadyClosed)
	default:
		return apperrors.NewFatalError("close_position", fmt.Errorf("%w: position %d open in store only", apperrors.ErrCorruptState, id))
	}
}

// MarkUnrealized sets date's unrealized P&L. Positions are not touched.
func (l *Ledger) MarkUnrealized(ctx context.Context, date string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkDateLocked("mark_unrealized", date); err != nil {
		return err
	}

	day := l.day
	day.UnrealizedPnL = amount
	if err := l.store.SaveDay(ctx, l.currentDate, day); err != nil {
		return apperrors.NewFatalError("mark_unrealized", err)
	}
	l.day = day
	return nil
}

// EvaluateCircuitBreaker trips the breaker once the day's loss reaches the
// limit. A tripped breaker stays active for the rest of the date.
func (l *Ledger) EvaluateCircuitBreaker(ctx context.Context, date string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkDateLocked("evaluate_circuit_breaker", date); err != nil {
		return false, err
	}
	if l.day.CircuitBreakerHit {
		return true, nil
	}

	total := decimal.NewFromFloat(l.day.RealizedPnL).Add(decimal.NewFromFloat(l.day.UnrealizedPnL))
	limit := decimal.NewFromFloat(l.day.CapitalAtDayStart).Mul(l.dailyLossPct).Neg()
	if total.GreaterThan(limit) {
		return false, nil
	}

	day := l.day
	day.CircuitBreakerHit = true
	if err := l.store.SaveDay(ctx, l.currentDate, day); err != nil {
		return false, apperrors.NewFatalError("evaluate_circuit_breaker", err)
	}
	l.day = day

	l.logger.Warn().
		Str("date", date).
		Float64("daily_pnl", total.InexactFloat64()).
		Float64("limit", limit.InexactFloat64()).
		Msg("Circuit breaker tripped")
	return true, nil
}

// RolloverDay starts a fresh P&L entry for newDate and clears the breaker.
// Cash and positions are untouched. Rolling to the current date is a no-op.
func (l *Ledger) RolloverDay(ctx context.Context, newDate string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		return apperrors.NewStateError("rollover_day", "", apperrors.ErrNotInitialized)
	}
	if newDate == l.currentDate {
		return nil
	}
	if newDate < l.currentDate {
		return apperrors.NewStateError("rollover_day", "", fmt.Errorf("%w: %s is before %s", apperrors.ErrDateMismatch, newDate, l.currentDate))
	}

	day := models.DailyPnL{
		Date:              newDate,
		CapitalAtDayStart: l.equityAtCostLocked().InexactFloat64(),
	}
	if err := l.store.SaveDay(ctx, newDate, day); err != nil {
		return apperrors.NewFatalError("rollover_day", err)
	}

	previous := l.currentDate
	l.currentDate = newDate
	l.day = day

	l.logger.Info().
		Str("from", previous).
		Str("to", newDate).
		Float64("capital_at_day_start", day.CapitalAtDayStart).
		Msg("Day rolled over")
	return nil
}

// Snapshot returns a deep copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make([]models.Position, 0, len(l.open))
	for _, p := range l.open {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	return Snapshot{
		Cash:                 l.cash.InexactFloat64(),
		StartingCapital:      l.startingCapital,
		CurrentDate:          l.currentDate,
		DailyRealizedPnL:     l.day.RealizedPnL,
		DailyUnrealizedPnL:   l.day.UnrealizedPnL,
		CircuitBreakerActive: l.day.CircuitBreakerHit,
		CapitalAtDayStart:    l.day.CapitalAtDayStart,
		Day:                  l.day,
		Positions:            positions,
	}
}

func (l *Ledger) checkDateLocked(op, date string) error {
	if !l.loaded {
		return apperrors.NewStateError(op, "", apperrors.ErrNotInitialized)
	}
	if date != l.currentDate {
		return apperrors.NewStateError(op, "", fmt.Errorf("%w: %s, ledger is on %s", apperrors.ErrDateMismatch, date, l.currentDate))
	}
	return nil
}

// equityAtCostLocked is cash plus the cost basis of OPEN positions.
func (l *Ledger) equityAtCostLocked() decimal.Decimal {
	equity := l.cash
	for _, p := range l.open {
		equity = equity.Add(decimal.NewFromInt(int64(p.Quantity)).Mul(decimal.NewFromFloat(p.EntryPrice)))
	}
	return equity
}
