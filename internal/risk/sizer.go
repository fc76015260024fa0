package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/models"
)

// tickSize is the NSE equity price tick.
var tickSize = decimal.RequireFromString("0.05")

// Multipliers scale the maximum position by confidence tier.
var Multipliers = map[models.ConfidenceTier]decimal.Decimal{
	models.ConfidenceHigh:     decimal.RequireFromString("1.00"),
	models.ConfidenceModerate: decimal.RequireFromString("0.75"),
	models.ConfidenceLow:      decimal.RequireFromString("0.50"),
}

// Sizer computes share quantities. It holds no state.
type Sizer struct {
	RiskPerTrade   decimal.Decimal // fraction of cash risked, 0.01
	MaxPositionPct decimal.Decimal // fraction of cash, 0.10
	DefaultStopPct decimal.Decimal // fraction of entry, 0.03
}

// DefaultSizer uses 1% risk per trade, a 10% cap and a 3% default stop.
var DefaultSizer = Sizer{
	RiskPerTrade:   decimal.RequireFromString("0.01"),
	MaxPositionPct: decimal.RequireFromString("0.10"),
	DefaultStopPct: decimal.RequireFromString("0.03"),
}

// NewSizer creates a sizer from percentages.
func NewSizer(riskPerTradePct, maxPositionPct, defaultStopPct float64) Sizer {
	hundred := decimal.NewFromInt(100)
	return Sizer{
		RiskPerTrade:   decimal.NewFromFloat(riskPerTradePct).Div(hundred),
		MaxPositionPct: decimal.NewFromFloat(maxPositionPct).Div(hundred),
		DefaultStopPct: decimal.NewFromFloat(defaultStopPct).Div(hundred),
	}
}

// SizeForConfidence sizes a trade with DefaultSizer.
func SizeForConfidence(tier models.ConfidenceTier, cash, entryPrice, stopLoss float64) (int, error) {
	return DefaultSizer.SizeForConfidence(tier, cash, entryPrice, stopLoss)
}

// SizeForConfidence returns floor(min(risk/(entry-stop), floor(capQty*multiplier)))
// where capQty = floor(cap*cash/entry). The result never exceeds the cap.
func (s Sizer) SizeForConfidence(tier models.ConfidenceTier, cash, entryPrice, stopLoss float64) (int, error) {
	mult, ok := Multipliers[tier]
	if !ok {
		return 0, apperrors.NewValidationError(apperrors.RuleNoViableSize, fmt.Sprintf("unknown confidence tier %q", tier))
	}

	c := decimal.NewFromFloat(cash)
	entry := decimal.NewFromFloat(entryPrice)
	stop := decimal.NewFromFloat(stopLoss)

	if !entry.IsPositive() || !entry.GreaterThan(stop) {
		return 0, apperrors.NewValidationError(apperrors.RuleNoViableSize,
			fmt.Sprintf("entry %.2f must be above stop %.2f", entryPrice, stopLoss))
	}
	if !c.IsPositive() {
		return 0, apperrors.NewValidationError(apperrors.RuleNoViableSize, "no cash")
	}

	rawQty := c.Mul(s.RiskPerTrade).Div(entry.Sub(stop))
	capValue := c.Mul(s.MaxPositionPct)
	capQty := capValue.Div(entry).Floor()
	tierQty := capQty.Mul(mult).Floor()

	qty := decimal.Min(rawQty, tierQty).Floor()
	// Division rounds at 16 places; never let that push past the cap.
	for qty.IsPositive() && qty.Mul(entry).GreaterThan(capValue) {
		qty = qty.Sub(decimal.NewFromInt(1))
	}

	if qty.LessThan(decimal.NewFromInt(1)) {
		return 0, apperrors.NewValidationError(apperrors.RuleNoViableSize,
			fmt.Sprintf("%s tier at %.2f with %.2f cash sizes below one share", tier, entryPrice, cash))
	}
	return int(qty.IntPart()), nil
}

// DefaultStopLoss places the stop DefaultStopPct below entry, rounded down to the tick.
func (s Sizer) DefaultStopLoss(entryPrice float64) float64 {
	entry := decimal.NewFromFloat(entryPrice)
	raw := entry.Mul(decimal.NewFromInt(1).Sub(s.DefaultStopPct))
	return raw.Div(tickSize).Floor().Mul(tickSize).InexactFloat64()
}
