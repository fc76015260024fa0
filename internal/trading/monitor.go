package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/logging"
	"trading-agent/internal/models"
	"trading-agent/pkg/utils"
)

// RunMonitoring prices every OPEN position, exits those at or below their
// stop-loss, marks the rest to market and evaluates the circuit breaker.
func (c *Coordinator) RunMonitoring(ctx context.Context, now time.Time) (*MonitorReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ledger.Initialized() {
		return nil, apperrors.NewStateError("run_monitoring", "", apperrors.ErrNotInitialized)
	}
	now = now.In(utils.IndiaLocation)
	if err := c.rollover(ctx, now); err != nil {
		return nil, err
	}

	rep, err := c.monitor(ctx, logging.WithOperation(c.logger, "monitor"), now)
	c.publish()
	return &rep, err
}

func (c *Coordinator) monitor(ctx context.Context, log zerolog.Logger, now time.Time) (MonitorReport, error) {
	rep := MonitorReport{
		StopLossExits: []Execution{},
		Alerts:        []ProximityAlert{},
		Errors:        []SymbolError{},
	}
	date := utils.DateKey(now)
	before := c.ledger.Snapshot()

	var unrealized float64
	for _, pos := range before.Positions {
		tech, err := c.fetchTechnical(ctx, log, pos.Symbol)
		if err != nil {
			c.recordExternal(err)
			rep.Errors = append(rep.Errors, c.symbolError(pos.Symbol, err))
			continue
		}
		price := tech.CurrentPrice

		if pos.StopLossHit(price) {
			exec, err := c.exit(ctx, log, pos, tech, models.ExitStopLoss, now)
			if err == nil {
				rep.StopLossExits = append(rep.StopLossExits, exec)
				continue
			}
			if apperrors.IsFatal(err) {
				return rep, err
			}
			rep.Errors = append(rep.Errors, c.symbolError(pos.Symbol, err))
		} else if price > 0 {
			distance := (price - pos.StopLoss) / price * 100
			if distance <= c.opts.ProximityPercent {
				rep.Alerts = append(rep.Alerts, ProximityAlert{
					Symbol:      pos.Symbol,
					Price:       price,
					StopLoss:    pos.StopLoss,
					DistancePct: distance,
				})
				log.Warn().
					Str("symbol", pos.Symbol).
					Float64("price", price).
					Float64("stop_loss", pos.StopLoss).
					Float64("distance_pct", distance).
					Msg("Price near stop-loss")
			}
		}

		unrealized += (price - pos.EntryPrice) * float64(pos.Quantity)
	}

	// Ledger writes complete even if ctx was cancelled while pricing.
	durable := context.WithoutCancel(ctx)
	rep.UnrealizedPnL = unrealized
	if err := c.ledger.MarkUnrealized(durable, date, unrealized); err != nil {
		return rep, err
	}

	active, err := c.ledger.EvaluateCircuitBreaker(durable, date)
	if err != nil {
		return rep, err
	}
	rep.BreakerTripped = active
	if active && !before.CircuitBreakerActive {
		c.metrics.RecordBreakerTrip()
	}
	return rep, nil
}
