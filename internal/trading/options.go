package trading

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trading-agent/internal/config"
	"trading-agent/internal/decision"
	"trading-agent/internal/resilience"
	"trading-agent/internal/risk"
	"trading-agent/pkg/utils"
)

// Options tune the coordinator.
type Options struct {
	Universe         []string
	Limits           risk.Limits
	Sizer            risk.Sizer
	Thresholds       decision.Thresholds
	Parallelism      int
	Guard            resilience.Config
	Retry            utils.RetryConfig
	ProximityPercent float64
}

// DefaultOptions returns the standard limits with an empty universe.
func DefaultOptions() Options {
	return Options{
		Limits:           risk.DefaultLimits(),
		Sizer:            risk.DefaultSizer,
		Thresholds:       decision.DefaultThresholds(),
		Parallelism:      4,
		Guard:            resilience.DefaultConfig(),
		Retry:            utils.DefaultRetryConfig(),
		ProximityPercent: 1.0,
	}
}

// OptionsFromConfig builds options from a validated config.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	start, err := config.ParseClock(cfg.Risk.WindowStart)
	if err != nil {
		return Options{}, err
	}
	end, err := config.ParseClock(cfg.Risk.WindowEnd)
	if err != nil {
		return Options{}, err
	}

	hundred := decimal.NewFromInt(100)
	opts := Options{
		Universe: normalizeUniverse(cfg.Trading.Universe),
		Limits: risk.Limits{
			Window:         utils.Window{Start: start, End: end},
			MaxPositions:   cfg.Risk.MaxPositions,
			MaxPositionPct: decimal.NewFromFloat(cfg.Risk.MaxPositionPercent).Div(hundred),
			MaxStopLossPct: decimal.NewFromFloat(cfg.Risk.MaxStopLossPercent).Div(hundred),
		},
		Sizer: risk.NewSizer(cfg.Risk.RiskPerTradePercent, cfg.Risk.MaxPositionPercent, cfg.Risk.DefaultStopLossPct),
		Thresholds: decision.Thresholds{
			Technical:      cfg.Decision.TechnicalThreshold,
			HighConviction: cfg.Decision.HighConviction,
			MaxPositions:   cfg.Risk.MaxPositions,
		},
		Parallelism: cfg.Execution.Parallelism,
		Guard: resilience.Config{
			Timeout:          cfg.Execution.Timeout,
			FailureThreshold: cfg.Execution.FailureThreshold,
			ResetTimeout:     cfg.Execution.ResetTimeout,
		},
		Retry: utils.RetryConfig{
			MaxAttempts:   cfg.Execution.RetryAttempts,
			InitialDelay:  cfg.Execution.RetryDelay,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
		},
		ProximityPercent: cfg.Execution.ProximityPercent,
	}
	if len(opts.Universe) == 0 {
		return Options{}, fmt.Errorf("trading universe is empty")
	}
	return opts, nil
}

// normalizeUniverse upper-cases, trims and de-duplicates symbols, keeping order.
func normalizeUniverse(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
