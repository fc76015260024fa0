// Package broker provides the order execution collaborator.
package broker

import (
	"context"
	"fmt"

	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/models"
	"trading-agent/pkg/utils"
)

// Executor submits orders. Submitting the same IdempotencyToken twice must
// not produce a second fill.
type Executor interface {
	Submit(ctx context.Context, order models.Order) (models.Fill, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, order models.Order) (models.Fill, error)

// Submit calls f.
func (f ExecutorFunc) Submit(ctx context.Context, order models.Order) (models.Fill, error) {
	return f(ctx, order)
}

// SubmitWithRetry retries order with the same token until it fills or attempts run out.
// A REJECTED fill is returned as an error and not retried.
func SubmitWithRetry(ctx context.Context, exec Executor, order models.Order, cfg utils.RetryConfig) (models.Fill, error) {
	if order.IdempotencyToken == "" {
		order.IdempotencyToken = NewToken()
	}

	cfg.Retryable = func(err error) bool {
		return !apperrors.Is(err, apperrors.ErrOrderRejected) && ctx.Err() == nil
	}

	return utils.RetryWithResult(ctx, cfg, func() (models.Fill, error) {
		fill, err := exec.Submit(ctx, order)
		if err != nil {
			return models.Fill{}, err
		}
		if fill.Status != models.OrderComplete {
			return models.Fill{}, fmt.Errorf("%w: order %s for %s: status %s",
				apperrors.ErrOrderRejected, fill.OrderID, order.Symbol, fill.Status)
		}
		return fill, nil
	})
}
