package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trading-agent/internal/broker"
	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/ledger"
	"trading-agent/internal/logging"
	"trading-agent/internal/models"
	"trading-agent/internal/resilience"
)

// tradeContext carries the decision inputs copied onto the trade record.
type tradeContext struct {
	technicalScore float64
	sentiment      models.SentimentLabel
	reasoning      string
}

// execute submits an approved intent and settles the fill. snap is the
// snapshot the intent was validated against. Once the order is dispatched
// its outcome is resolved and settled even if ctx is cancelled, and any
// failure to record a fill is fatal.
func (c *Coordinator) execute(ctx context.Context, intent models.TradeIntent, snap ledger.Snapshot, tc tradeContext, now time.Time) (Execution, error) {
	if err := ctx.Err(); err != nil {
		err = apperrors.NewExternalError(CollaboratorExecutor, intent.Symbol, err)
		c.recordExternal(err)
		return Execution{}, err
	}

	order := models.Order{
		Symbol:           intent.Symbol,
		Side:             intent.Side,
		Quantity:         intent.Quantity,
		Price:            intent.EntryPrice,
		StopLoss:         intent.StopLoss,
		IdempotencyToken: broker.NewToken(),
	}

	start := time.Now()
	fill, err := resilience.Call(c.execGuard, ctx, intent.Symbol, func(ctx context.Context) (models.Fill, error) {
		return broker.SubmitWithRetry(ctx, c.executor, order, c.opts.Retry)
	})
	logging.LogCall(c.logger, CollaboratorExecutor, intent.Symbol, time.Since(start), err)
	if err != nil && outcomeUnknown(err) {
		fill, err = c.resolve(ctx, order, err)
	}
	if err != nil {
		if apperrors.IsFatal(err) {
			return Execution{}, err
		}
		c.recordExternal(err)
		return Execution{}, err
	}

	return c.settle(context.WithoutCancel(ctx), intent, fill, snap, tc, now)
}

// outcomeUnknown reports whether err means the wait for an acknowledgement
// was cut short, so the order may have filled.
func outcomeUnknown(err error) bool {
	return apperrors.Is(err, apperrors.ErrTimeout) ||
		apperrors.Is(err, context.Canceled) ||
		apperrors.Is(err, context.DeadlineExceeded)
}

// resolve re-submits order under its original token. The executor answers
// with the existing fill if the first submission went through. An outcome
// that stays unknown is fatal: the broker may hold an unrecorded fill.
func (c *Coordinator) resolve(ctx context.Context, order models.Order, cause error) (models.Fill, error) {
	budget := c.opts.Guard.Timeout * time.Duration(max(c.opts.Retry.MaxAttempts, 1)+1)
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), budget)
	defer cancel()

	fill, err := broker.SubmitWithRetry(rctx, c.executor, order, c.opts.Retry)
	switch {
	case err == nil:
		c.logger.Warn().
			Str("symbol", order.Symbol).
			Str("order_id", fill.OrderID).
			AnErr("cause", cause).
			Msg("Order outcome resolved after lost acknowledgement")
		return fill, nil
	case apperrors.Is(err, apperrors.ErrOrderRejected):
		return models.Fill{}, apperrors.NewExternalError(CollaboratorExecutor, order.Symbol, err)
	default:
		return models.Fill{}, apperrors.NewFatalError("execute",
			fmt.Errorf("order %s for %s may have filled (%v): %w", order.IdempotencyToken, order.Symbol, cause, err))
	}
}

func (c *Coordinator) settle(ctx context.Context, intent models.TradeIntent, fill models.Fill, snap ledger.Snapshot, tc tradeContext, now time.Time) (Execution, error) {
	exec := Execution{
		Symbol:     intent.Symbol,
		Side:       intent.Side,
		Quantity:   intent.Quantity,
		Price:      fill.FillPrice,
		StopLoss:   intent.StopLoss,
		OrderID:    fill.OrderID,
		ExitReason: intent.ExitReason,
	}

	switch intent.Side {
	case models.SideBuy:
		if fill.FillPrice != intent.EntryPrice {
			filled := intent
			filled.EntryPrice = fill.FillPrice
			if res := c.validator.CheckBuy(filled, snap, now); !res.Approved {
				return exec, settlementError(fill, fmt.Errorf("fill at %.2f breaks limits: %w", fill.FillPrice, res.Err(intent.Symbol)))
			}
		}
		id, err := c.ledger.OpenPosition(ctx, intent.Symbol, intent.Quantity, fill.FillPrice, intent.StopLoss, now)
		if err != nil {
			return exec, settlementError(fill, err)
		}
		exec.PositionID = id
	case models.SideSell:
		pos, ok := snap.Position(intent.Symbol)
		if !ok {
			return exec, settlementError(fill, apperrors.NewStateError("settle", intent.Symbol, apperrors.ErrUnknownPosition))
		}
		pnl, err := c.ledger.ClosePosition(ctx, pos.ID, fill.FillPrice, now)
		if err != nil {
			return exec, settlementError(fill, err)
		}
		exec.PositionID = pos.ID
		exec.RealizedPnL = pnl
	}

	var positionPct float64
	if snap.Cash > 0 {
		positionPct = float64(intent.Quantity) * fill.FillPrice / snap.Cash * 100
	}
	rec := &models.TradeRecord{
		Symbol:         intent.Symbol,
		Side:           intent.Side,
		Quantity:       intent.Quantity,
		Price:          fill.FillPrice,
		Timestamp:      now,
		TechnicalScore: tc.technicalScore,
		SentimentLabel: tc.sentiment,
		Confidence:     intent.Confidence,
		Reasoning:      tc.reasoning,
		Risk: models.RiskMetrics{
			PositionPct: positionPct,
			RiskAmount:  float64(intent.Quantity) * (fill.FillPrice - intent.StopLoss),
		},
		PositionID:     exec.PositionID,
		OrderID:        fill.OrderID,
		StopLoss:       intent.StopLoss,
		CapitalAtTrade: snap.Cash,
		ExitReason:     intent.ExitReason,
	}
	tradeID, err := c.journal.WriteExecution(ctx, rec)
	if err != nil {
		return exec, settlementError(fill, err)
	}
	exec.TradeID = tradeID

	c.metrics.RecordTrade(string(intent.Side))
	return exec, nil
}

func settlementError(fill models.Fill, err error) error {
	if apperrors.IsFatal(err) {
		return err
	}
	return apperrors.NewFatalError("settle", fmt.Errorf("order %s filled but not recorded: %w", fill.OrderID, err))
}

// exit sells the whole of pos at the price in tech after re-validating it.
func (c *Coordinator) exit(ctx context.Context, log zerolog.Logger, pos models.Position, tech models.TechnicalSignal, reason models.ExitReason, now time.Time) (Execution, error) {
	snap := c.ledger.Snapshot()
	intent := models.TradeIntent{
		Symbol:     pos.Symbol,
		Side:       models.SideSell,
		Quantity:   pos.Quantity,
		EntryPrice: tech.CurrentPrice,
		StopLoss:   pos.StopLoss,
		ExitReason: reason,
	}
	if res := c.validator.CheckSell(intent, snap, now); !res.Approved {
		c.recordRejections(res)
		return Execution{}, res.Err(pos.Symbol)
	}

	exec, err := c.execute(ctx, intent, snap, tradeContext{
		technicalScore: tech.CompositeScore,
		reasoning:      exitReasoning(reason, pos, tech.CurrentPrice),
	}, now)
	if err != nil {
		return exec, err
	}

	log.Info().
		Str("symbol", pos.Symbol).
		Str("reason", string(reason)).
		Float64("price", exec.Price).
		Float64("pnl", exec.RealizedPnL).
		Msg("Position closed")
	return exec, nil
}

func exitReasoning(reason models.ExitReason, pos models.Position, price float64) string {
	if reason == models.ExitStopLoss {
		return fmt.Sprintf("stop-loss %.2f hit at %.2f", pos.StopLoss, price)
	}
	return fmt.Sprintf("manual exit at %.2f", price)
}
