package models

import "time"

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// ExitReason records why a SELL was placed.
type ExitReason string

const (
	ExitNone     ExitReason = ""
	ExitStopLoss ExitReason = "STOP_LOSS"
	ExitManual   ExitReason = "MANUAL"
)

// Position represents a long equity position held in the ledger.
type Position struct {
	ID          int64
	Symbol      string
	Quantity    int
	EntryPrice  float64
	StopLoss    float64
	EntryTime   time.Time
	Status      PositionStatus
	ExitPrice   float64
	ExitTime    *time.Time
	RealizedPnL float64
}

// Value returns the cost basis of the position.
func (p Position) Value() float64 {
	return float64(p.Quantity) * p.EntryPrice
}

// RiskAmount returns the loss taken if the stop-loss is hit.
func (p Position) RiskAmount() float64 {
	return float64(p.Quantity) * (p.EntryPrice - p.StopLoss)
}

// StopLossHit reports whether price has reached the stop-loss.
func (p Position) StopLossHit(price float64) bool {
	return price > 0 && price <= p.StopLoss
}

// RiskMetrics is attached to each trade record.
type RiskMetrics struct {
	PositionPct float64 // position value as % of cash at trade
	RiskAmount  float64
}

// TradeRecord is an immutable journal row for a filled order.
type TradeRecord struct {
	TradeID        string
	Symbol         string
	Side           Side
	Quantity       int
	Price          float64
	Timestamp      time.Time
	TechnicalScore float64
	SentimentLabel SentimentLabel
	Confidence     ConfidenceTier
	Reasoning      string
	Risk           RiskMetrics
	PositionID     int64
	OrderID        string
	StopLoss       float64
	CapitalAtTrade float64
	ExitReason     ExitReason
}

// DailyPnL aggregates one trading date.
type DailyPnL struct {
	Date              string // YYYY-MM-DD, IST
	RealizedPnL       float64
	UnrealizedPnL     float64
	TradeCount        int
	Wins              int
	Losses            int
	CircuitBreakerHit bool
	CapitalAtDayStart float64
}

// Total returns realized plus unrealized P&L.
func (d DailyPnL) Total() float64 {
	return d.RealizedPnL + d.UnrealizedPnL
}

// TradeIntent is a proposed order handed to the risk validator.
type TradeIntent struct {
	Symbol     string
	Side       Side
	Quantity   int
	EntryPrice float64
	StopLoss   float64
	Confidence ConfidenceTier
	RedFlags   []string
	ExitReason ExitReason
}

// Value returns quantity times entry price.
func (t TradeIntent) Value() float64 {
	return float64(t.Quantity) * t.EntryPrice
}
