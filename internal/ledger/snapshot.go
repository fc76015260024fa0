package ledger

import "trading-agent/internal/models"

// Snapshot is an immutable copy of the ledger taken under the read lock.
type Snapshot struct {
	Cash                 float64           `json:"cash"`
	StartingCapital      float64           `json:"starting_capital"`
	CurrentDate          string            `json:"current_date"`
	DailyRealizedPnL     float64           `json:"daily_realized_pnl"`
	DailyUnrealizedPnL   float64           `json:"daily_unrealized_pnl"`
	CircuitBreakerActive bool              `json:"circuit_breaker_active"`
	CapitalAtDayStart    float64           `json:"capital_at_day_start"`
	Day                  models.DailyPnL   `json:"day"`
	Positions            []models.Position `json:"positions"` // OPEN only, ordered by symbol
}

// OpenCount returns the number of OPEN positions.
func (s Snapshot) OpenCount() int {
	return len(s.Positions)
}

// Position returns the OPEN position for symbol.
func (s Snapshot) Position(symbol string) (models.Position, bool) {
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return models.Position{}, false
}

// HasOpen reports whether symbol has an OPEN position.
func (s Snapshot) HasOpen(symbol string) bool {
	_, ok := s.Position(symbol)
	return ok
}

// Invested returns the cost basis of all OPEN positions.
func (s Snapshot) Invested() float64 {
	var total float64
	for _, p := range s.Positions {
		total += p.Value()
	}
	return total
}

// DailyTotal returns realized plus unrealized P&L for the current date.
func (s Snapshot) DailyTotal() float64 {
	return s.DailyRealizedPnL + s.DailyUnrealizedPnL
}
