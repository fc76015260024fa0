package models

import "time"

// OrderStatus is the broker-reported state of an order.
type OrderStatus string

const (
	OrderComplete OrderStatus = "COMPLETE"
	OrderRejected OrderStatus = "REJECTED"
	OrderPending  OrderStatus = "PENDING"
)

// Order is a request sent to the execution collaborator.
type Order struct {
	Symbol           string
	Side             Side
	Quantity         int
	Price            float64
	StopLoss         float64
	IdempotencyToken string
}

// Fill is the execution collaborator's answer to an Order.
type Fill struct {
	OrderID   string
	FillPrice float64
	Status    OrderStatus
	FilledAt  time.Time
}
