// Package trading drives evaluation cycles: it snapshots the ledger, decides
// per symbol in parallel, then sizes, re-validates, executes and settles
// approved trades one at a time before monitoring open positions.
package trading

import (
	"time"

	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/ledger"
	"trading-agent/internal/models"
)

// CycleState is a state of the per-cycle state machine.
type CycleState string

const (
	StatePrecheck       CycleState = "PRECHECK"
	StateDecision       CycleState = "DECISION"
	StateRiskCheck      CycleState = "RISK_CHECK"
	StateExecution      CycleState = "EXECUTION"
	StateMonitoring     CycleState = "MONITORING"
	StateLogged         CycleState = "LOGGED"
	StateSkippedClosed  CycleState = "SKIPPED_CLOSED"
	StateSkippedBreaker CycleState = "SKIPPED_BREAKER"
)

// Terminal reports whether no further transition is possible.
func (s CycleState) Terminal() bool {
	return s == StateLogged || s == StateSkippedClosed || s == StateSkippedBreaker
}

// Execution is one filled and settled order.
type Execution struct {
	TradeID     string            `json:"trade_id"`
	Symbol      string            `json:"symbol"`
	Side        models.Side       `json:"side"`
	Quantity    int               `json:"quantity"`
	Price       float64           `json:"price"`
	StopLoss    float64           `json:"stop_loss,omitempty"`
	OrderID     string            `json:"order_id"`
	PositionID  int64             `json:"position_id"`
	RealizedPnL float64           `json:"realized_pnl,omitempty"`
	ExitReason  models.ExitReason `json:"exit_reason,omitempty"`
}

// Rejection lists the rules an intent violated.
type Rejection struct {
	Symbol string           `json:"symbol"`
	Rules  []apperrors.Rule `json:"rules"`
}

// SymbolError is a collaborator failure that skipped one symbol.
type SymbolError struct {
	Symbol       string `json:"symbol"`
	Collaborator string `json:"collaborator"`
	Message      string `json:"message"`
}

// ProximityAlert flags a position trading just above its stop-loss.
type ProximityAlert struct {
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	StopLoss    float64 `json:"stop_loss"`
	DistancePct float64 `json:"distance_pct"`
}

// MonitorReport is the result of one monitoring pass.
type MonitorReport struct {
	StopLossExits  []Execution      `json:"stop_loss_exits"`
	Alerts         []ProximityAlert `json:"alerts"`
	Errors         []SymbolError    `json:"errors"`
	UnrealizedPnL  float64          `json:"unrealized_pnl"`
	BreakerTripped bool             `json:"breaker_tripped"`
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	ID         string                  `json:"id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	State      CycleState              `json:"state"`
	Reason     string                  `json:"reason,omitempty"`
	Decisions  []models.DecisionRecord `json:"decisions"`
	Executions []Execution             `json:"executions"`
	Rejections []Rejection             `json:"rejections"`
	Errors     []SymbolError           `json:"errors"`
	Monitor    MonitorReport           `json:"monitor"`
	Final      ledger.Snapshot         `json:"final"`
}

// CycleID formats the cycle identifier for now in IST.
func CycleID(now time.Time, loc *time.Location) string {
	return "C" + now.In(loc).Format("20060102_150405")
}
