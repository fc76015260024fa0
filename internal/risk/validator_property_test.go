package risk

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/ledger"
	"trading-agent/internal/models"
)

// buyCase is one generated BUY evaluation.
type buyCase struct {
	Minute    int // minutes after 09:00 IST on a trading day
	Breaker   bool
	OpenCount int
	Duplicate bool
	Quantity  int
	Entry     float64
	StopPct   float64
	Cash      float64
}

func (c buyCase) build() (models.TradeIntent, ledger.Snapshot, time.Time) {
	symbols := []string{"TCS", "INFY", "HDFCBANK", "ICICIBANK", "SBIN", "ITC", "LT"}
	held := append([]string(nil), symbols[:c.OpenCount]...)
	if c.Duplicate {
		if len(held) == 0 {
			held = append(held, "RELIANCE")
		} else {
			held[0] = "RELIANCE"
		}
	}

	entry := decimal.NewFromFloat(c.Entry).Round(2)
	stop := entry.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(c.StopPct))).Round(2)

	snap := baseSnapshot()
	snap.Cash = c.Cash
	snap.CircuitBreakerActive = c.Breaker
	snap.Positions = openPositions(held...)

	intent := models.TradeIntent{
		Symbol:     "RELIANCE",
		Side:       models.SideBuy,
		Quantity:   c.Quantity,
		EntryPrice: entry.InexactFloat64(),
		StopLoss:   stop.InexactFloat64(),
		Confidence: models.ConfidenceModerate,
	}
	now := ist(2026, time.October, 15, 9, 0).Add(time.Duration(c.Minute) * time.Minute)
	return intent, snap, now
}

// expectedRules evaluates the seven BUY rules independently of the validator.
func (c buyCase) expectedRules() []apperrors.Rule {
	intent, snap, now := c.build()

	var rules []apperrors.Rule
	minute := now.Hour()*60 + now.Minute()
	if minute < 9*60+30 || minute >= 15*60+15 {
		rules = append(rules, apperrors.RuleTradingWindow)
	}
	if snap.CircuitBreakerActive {
		rules = append(rules, apperrors.RuleCircuitBreaker)
	}
	if snap.OpenCount() >= 5 {
		rules = append(rules, apperrors.RuleMaxPositions)
	}
	if snap.HasOpen(intent.Symbol) {
		rules = append(rules, apperrors.RuleDuplicate)
	}

	cash := decimal.NewFromFloat(snap.Cash)
	entry := decimal.NewFromFloat(intent.EntryPrice)
	stop := decimal.NewFromFloat(intent.StopLoss)
	value := entry.Mul(decimal.NewFromInt(int64(intent.Quantity)))
	if value.GreaterThan(cash.Mul(decimal.RequireFromString("0.10"))) {
		rules = append(rules, apperrors.RulePositionSize)
	}
	ratio := entry.Sub(stop).Div(entry)
	if !ratio.IsPositive() || ratio.GreaterThan(decimal.RequireFromString("0.05")) {
		rules = append(rules, apperrors.RuleInvalidStopLoss)
	}
	if cash.LessThan(value) {
		rules = append(rules, apperrors.RuleInsufficientCash)
	}
	return rules
}

func genBuyCase() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 7*60), // 09:00 to 16:00
		gen.Bool(),
		gen.IntRange(0, 6),
		gen.Bool(),
		gen.IntRange(1, 60),
		gen.Float64Range(50, 5000),
		gen.Float64Range(-0.01, 0.08),
		gen.Float64Range(5000, 2000000),
	).Map(func(v []interface{}) buyCase {
		return buyCase{
			Minute:    v[0].(int),
			Breaker:   v[1].(bool),
			OpenCount: v[2].(int),
			Duplicate: v[3].(bool),
			Quantity:  v[4].(int),
			Entry:     v[5].(float64),
			StopPct:   v[6].(float64),
			Cash:      v[7].(float64),
		}
	})
}

func TestProperty_ApprovalIffAllSevenRulesPass(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	v := NewValidator(DefaultLimits())

	properties.Property("validator verdict matches the seven rules", prop.ForAll(
		func(c buyCase) bool {
			intent, snap, now := c.build()
			res := v.CheckBuy(intent, snap, now)
			want := c.expectedRules()

			if res.Approved != (len(want) == 0) {
				t.Logf("case %+v: approved=%v, expected rules %v", c, res.Approved, want)
				return false
			}
			return fmt.Sprint(res.Rules()) == fmt.Sprint(want)
		},
		genBuyCase(),
	))

	properties.TestingRun(t)
}

func TestProperty_SingleBrokenRuleRejects(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	v := NewValidator(DefaultLimits())
	rules := []apperrors.Rule{
		apperrors.RuleTradingWindow,
		apperrors.RuleCircuitBreaker,
		apperrors.RuleMaxPositions,
		apperrors.RuleDuplicate,
		apperrors.RulePositionSize,
		apperrors.RuleInvalidStopLoss,
		apperrors.RuleInsufficientCash,
	}

	properties.Property("breaking any one rule of a valid intent rejects it with that rule", prop.ForAll(
		func(which int, entry float64, cashLakhs int) bool {
			entry = math.Round(entry*100) / 100
			cash := float64(cashLakhs) * 100000
			capQty := int(cash * 0.10 / entry)
			if capQty < 1 {
				return true
			}

			c := buyCase{Minute: 120, Quantity: capQty, Entry: entry, StopPct: 0.03, Cash: cash}
			if len(c.expectedRules()) != 0 {
				// Float division can land a cap-sized quantity one share over.
				c.Quantity--
				if c.Quantity < 1 || len(c.expectedRules()) != 0 {
					return true
				}
			}

			switch rules[which] {
			case apperrors.RuleTradingWindow:
				c.Minute = 7 * 60
			case apperrors.RuleCircuitBreaker:
				c.Breaker = true
			case apperrors.RuleMaxPositions:
				c.OpenCount = 5
			case apperrors.RuleDuplicate:
				c.Duplicate = true
			case apperrors.RulePositionSize:
				c.Quantity = capQty*2 + 1
			case apperrors.RuleInvalidStopLoss:
				c.StopPct = 0.06
			case apperrors.RuleInsufficientCash:
				c.Quantity = int(cash/entry) + 2
			}

			intent, snap, now := c.build()
			res := v.CheckBuy(intent, snap, now)
			return !res.Approved && res.Has(rules[which])
		},
		gen.IntRange(0, len(rules)-1),
		gen.Float64Range(50, 5000),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

func TestProperty_BreakerBlocksEveryBuy(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	v := NewValidator(DefaultLimits())

	properties.Property("no BUY is approved while the breaker is active", prop.ForAll(
		func(c buyCase) bool {
			c.Breaker = true
			intent, snap, now := c.build()
			res := v.CheckBuy(intent, snap, now)
			return !res.Approved && res.Has(apperrors.RuleCircuitBreaker)
		},
		genBuyCase(),
	))

	properties.TestingRun(t)
}
