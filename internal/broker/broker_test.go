package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/models"
	"trading-agent/pkg/utils"
)

func fastRetry(attempts int) utils.RetryConfig {
	return utils.RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
}

func TestPaperExecutor_Idempotent(t *testing.T) {
	ctx := context.Background()
	p := NewPaperExecutor()
	order := models.Order{Symbol: "TCS", Side: models.SideBuy, Quantity: 2, Price: 3500, IdempotencyToken: NewToken()}

	first, err := p.Submit(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, models.OrderComplete, first.Status)
	assert.Equal(t, 3500.0, first.FillPrice)

	again, err := p.Submit(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, p.Orders(), 1)

	order.IdempotencyToken = NewToken()
	other, err := p.Submit(ctx, order)
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderID, other.OrderID)
	assert.Len(t, p.Orders(), 2)
}

func TestPaperExecutor_RejectsBadOrders(t *testing.T) {
	ctx := context.Background()
	p := NewPaperExecutor()

	_, err := p.Submit(ctx, models.Order{Symbol: "TCS", Side: models.SideBuy, Quantity: 1, Price: 10})
	assert.Error(t, err, "missing token")

	fill, err := p.Submit(ctx, models.Order{Symbol: "TCS", Side: models.SideBuy, Quantity: 0, Price: 10, IdempotencyToken: NewToken()})
	require.NoError(t, err)
	assert.Equal(t, models.OrderRejected, fill.Status)
}

func TestSubmitWithRetry_ReusesToken(t *testing.T) {
	var tokens []string
	exec := ExecutorFunc(func(ctx context.Context, o models.Order) (models.Fill, error) {
		tokens = append(tokens, o.IdempotencyToken)
		if len(tokens) < 3 {
			return models.Fill{}, errors.New("connection reset")
		}
		return models.Fill{OrderID: "X1", FillPrice: o.Price, Status: models.OrderComplete}, nil
	})

	fill, err := SubmitWithRetry(context.Background(), exec, models.Order{Symbol: "INFY", Side: models.SideBuy, Quantity: 1, Price: 1500}, fastRetry(3))
	require.NoError(t, err)
	assert.Equal(t, "X1", fill.OrderID)
	require.Len(t, tokens, 3)
	assert.NotEmpty(t, tokens[0])
	assert.Equal(t, tokens[0], tokens[1])
	assert.Equal(t, tokens[0], tokens[2])
}

func TestSubmitWithRetry_RejectionIsNotRetried(t *testing.T) {
	calls := 0
	exec := ExecutorFunc(func(ctx context.Context, o models.Order) (models.Fill, error) {
		calls++
		return models.Fill{OrderID: "R1", Status: models.OrderRejected}, nil
	})

	_, err := SubmitWithRetry(context.Background(), exec, models.Order{Symbol: "INFY", IdempotencyToken: "fixed"}, fastRetry(5))
	assert.ErrorIs(t, err, apperrors.ErrOrderRejected)
	assert.Equal(t, 1, calls)
}

func TestSubmitWithRetry_GivesUp(t *testing.T) {
	calls := 0
	exec := ExecutorFunc(func(ctx context.Context, o models.Order) (models.Fill, error) {
		calls++
		return models.Fill{}, errors.New("gateway down")
	})

	_, err := SubmitWithRetry(context.Background(), exec, models.Order{Symbol: "SBIN"}, fastRetry(4))
	assert.EqualError(t, err, "gateway down")
	assert.Equal(t, 4, calls)
}

func TestNewToken_Monotonic(t *testing.T) {
	prev := NewToken()
	for i := 0; i < 100; i++ {
		next := NewToken()
		assert.Len(t, next, 26)
		assert.Greater(t, next, prev)
		prev = next
	}
}
