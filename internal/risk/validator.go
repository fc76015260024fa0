// Package risk enforces the capital-preservation rules and sizes positions.
package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/ledger"
	"trading-agent/internal/models"
	"trading-agent/pkg/utils"
)

// Limits holds the hard risk limits.
type Limits struct {
	Window         utils.Window
	MaxPositions   int
	MaxPositionPct decimal.Decimal // fraction of cash, 0.10
	MaxStopLossPct decimal.Decimal // fraction of entry, 0.05
}

// DefaultLimits returns the standard limits.
func DefaultLimits() Limits {
	return Limits{
		Window:         utils.DefaultWindow,
		MaxPositions:   5,
		MaxPositionPct: decimal.RequireFromString("0.10"),
		MaxStopLossPct: decimal.RequireFromString("0.05"),
	}
}

// Result is the outcome of a risk check.
type Result struct {
	Approved   bool
	Violations []*apperrors.ValidationError
}

// Rules returns the violated rules in evaluation order.
func (r Result) Rules() []apperrors.Rule {
	rules := make([]apperrors.Rule, 0, len(r.Violations))
	for _, v := range r.Violations {
		rules = append(rules, v.Rule)
	}
	return rules
}

// Has reports whether rule is among the violations.
func (r Result) Has(rule apperrors.Rule) bool {
	for _, v := range r.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

// Err returns a RejectionError, or nil when approved.
func (r Result) Err(symbol string) error {
	if r.Approved {
		return nil
	}
	return &apperrors.RejectionError{Symbol: symbol, Violations: r.Violations}
}

// Validator evaluates trade intents against a ledger snapshot. It holds no state.
type Validator struct {
	limits Limits
}

// NewValidator creates a validator with limits.
func NewValidator(limits Limits) *Validator {
	return &Validator{limits: limits}
}

// Limits returns the configured limits.
func (v *Validator) Limits() Limits {
	return v.limits
}

// CheckBuy evaluates every BUY rule without short-circuiting.
func (v *Validator) CheckBuy(intent models.TradeIntent, snap ledger.Snapshot, now time.Time) Result {
	var violations []*apperrors.ValidationError
	add := func(rule apperrors.Rule, format string, args ...interface{}) {
		violations = append(violations, apperrors.NewValidationError(rule, fmt.Sprintf(format, args...)))
	}

	cash := decimal.NewFromFloat(snap.Cash)
	entry := decimal.NewFromFloat(intent.EntryPrice)
	stop := decimal.NewFromFloat(intent.StopLoss)
	value := decimal.NewFromInt(int64(intent.Quantity)).Mul(entry)

	// 1. Trading window
	if !utils.TradingOpen(now, v.limits.Window) {
		add(apperrors.RuleTradingWindow, "%s is outside %s on a trading day",
			now.In(utils.IndiaLocation).Format("2006-01-02 15:04"), v.limits.Window)
	}

	// 2. Circuit breaker
	if snap.CircuitBreakerActive {
		add(apperrors.RuleCircuitBreaker, "circuit breaker active for %s", snap.CurrentDate)
	}

	// 3. Capacity
	if snap.OpenCount() >= v.limits.MaxPositions {
		add(apperrors.RuleMaxPositions, "%d open positions, limit %d", snap.OpenCount(), v.limits.MaxPositions)
	}

	// 4. One open position per symbol
	if snap.HasOpen(intent.Symbol) {
		add(apperrors.RuleDuplicate, "%s already has an open position", intent.Symbol)
	}

	// 5. Position size cap
	if limit := cash.Mul(v.limits.MaxPositionPct); value.GreaterThan(limit) {
		add(apperrors.RulePositionSize, "value %s exceeds %s of cash (%s)",
			value.StringFixed(2), v.limits.MaxPositionPct.String(), limit.StringFixed(2))
	}

	// 6. Stop-loss distance
	distance := entry.Sub(stop)
	if !entry.IsPositive() || !distance.IsPositive() || distance.GreaterThan(entry.Mul(v.limits.MaxStopLossPct)) {
		add(apperrors.RuleInvalidStopLoss, "stop %s for entry %s must be below entry within %s",
			stop.StringFixed(2), entry.StringFixed(2), v.limits.MaxStopLossPct.String())
	}

	// 7. Cash
	if cash.LessThan(value) {
		add(apperrors.RuleInsufficientCash, "value %s exceeds cash %s", value.StringFixed(2), cash.StringFixed(2))
	}

	// Malformed intents
	if intent.Quantity < 1 {
		add(apperrors.RuleNoViableSize, "quantity %d", intent.Quantity)
	}
	if len(intent.RedFlags) > 0 {
		add(apperrors.RuleRedFlagVeto, "red flags present: %v", intent.RedFlags)
	}

	return Result{Approved: len(violations) == 0, Violations: violations}
}

// CheckSell requires an OPEN position of exactly the intent's quantity.
// The circuit breaker never blocks a SELL; stop-loss exits also ignore the window.
func (v *Validator) CheckSell(intent models.TradeIntent, snap ledger.Snapshot, now time.Time) Result {
	var violations []*apperrors.ValidationError

	pos, ok := snap.Position(intent.Symbol)
	if !ok {
		violations = append(violations, apperrors.NewValidationError(apperrors.RuleNoOpenPosition,
			fmt.Sprintf("no open position for %s", intent.Symbol)))
	} else if intent.Quantity != pos.Quantity {
		violations = append(violations, apperrors.NewValidationError(apperrors.RuleQuantity,
			fmt.Sprintf("sell %d, open %d", intent.Quantity, pos.Quantity)))
	}

	if intent.ExitReason != models.ExitStopLoss && !utils.TradingOpen(now, v.limits.Window) {
		violations = append(violations, apperrors.NewValidationError(apperrors.RuleTradingWindow,
			fmt.Sprintf("discretionary sell outside %s", v.limits.Window)))
	}

	return Result{Approved: len(violations) == 0, Violations: violations}
}

// Check dispatches on the intent's side.
func (v *Validator) Check(intent models.TradeIntent, snap ledger.Snapshot, now time.Time) Result {
	if intent.Side == models.SideSell {
		return v.CheckSell(intent, snap, now)
	}
	return v.CheckBuy(intent, snap, now)
}
