package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trading-agent/internal/models"
)

// PaperExecutor simulates fills at the requested price.
type PaperExecutor struct {
	mu           sync.Mutex
	fills        map[string]models.Fill // by idempotency token
	orders       []models.Order
	orderCounter int
	clock        func() time.Time
}

// NewPaperExecutor creates a paper executor.
func NewPaperExecutor() *PaperExecutor {
	return &PaperExecutor{
		fills: make(map[string]models.Fill),
		clock: time.Now,
	}
}

// Submit fills the order immediately. A repeated token returns the original fill.
func (p *PaperExecutor) Submit(ctx context.Context, order models.Order) (models.Fill, error) {
	if err := ctx.Err(); err != nil {
		return models.Fill{}, err
	}
	if order.IdempotencyToken == "" {
		return models.Fill{}, fmt.Errorf("order for %s has no idempotency token", order.Symbol)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if fill, ok := p.fills[order.IdempotencyToken]; ok {
		return fill, nil
	}

	p.orderCounter++
	now := p.clock()
	fill := models.Fill{
		OrderID:   fmt.Sprintf("PAPER_%d_%d", now.Unix(), p.orderCounter),
		FillPrice: order.Price,
		Status:    models.OrderComplete,
		FilledAt:  now,
	}
	if order.Quantity <= 0 || order.Price <= 0 || !order.Side.Valid() {
		fill.Status = models.OrderRejected
		fill.FillPrice = 0
	}

	p.fills[order.IdempotencyToken] = fill
	p.orders = append(p.orders, order)
	return fill, nil
}

// Orders returns the distinct orders received, in arrival order.
func (p *PaperExecutor) Orders() []models.Order {
	p.mu.Lock()
	defer p.mu.Unlock()

	orders := make([]models.Order, len(p.orders))
	copy(orders, p.orders)
	return orders
}
