// Package metrics exposes cycle, decision and trade counters for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the trading collectors on their own registry.
// Recording methods are no-ops on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	cycles             *prometheus.CounterVec
	decisions          *prometheus.CounterVec
	rejections         *prometheus.CounterVec
	trades             *prometheus.CounterVec
	collaboratorErrors *prometheus.CounterVec
	breakerTrips       prometheus.Counter
	cash               prometheus.Gauge
	openPositions      prometheus.Gauge
	dailyPnL           prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_cycles_total",
				Help: "Cycles run, by terminal state",
			},
			[]string{"state"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_decisions_total",
				Help: "Decisions synthesized, by decision and outcome",
			},
			[]string{"decision", "outcome"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_risk_rejections_total",
				Help: "Risk rule violations",
			},
			[]string{"rule"},
		),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_trades_total",
				Help: "Filled orders",
			},
			[]string{"side"},
		),
		collaboratorErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_collaborator_errors_total",
				Help: "Collaborator timeouts and failures",
			},
			[]string{"collaborator"},
		),
		breakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trading_circuit_breaker_trips_total",
			Help: "Daily loss circuit breaker trips",
		}),
		cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trading_cash",
			Help: "Ledger cash in INR",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trading_open_positions",
			Help: "Open positions",
		}),
		dailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trading_daily_pnl",
			Help: "Realized plus unrealized P&L for the current date",
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.decisions,
		m.rejections,
		m.trades,
		m.collaboratorErrors,
		m.breakerTrips,
		m.cash,
		m.openPositions,
		m.dailyPnL,
	)
	return m
}

// Registry returns the registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// RecordCycle counts a finished cycle.
func (m *Metrics) RecordCycle(state string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(state).Inc()
}

// RecordDecision counts a decision record.
func (m *Metrics) RecordDecision(decision, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision, outcome).Inc()
}

// RecordRejection counts one violated rule.
func (m *Metrics) RecordRejection(rule string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(rule).Inc()
}

// RecordTrade counts a fill.
func (m *Metrics) RecordTrade(side string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(side).Inc()
}

// RecordCollaboratorError counts a collaborator failure.
func (m *Metrics) RecordCollaboratorError(collaborator string) {
	if m == nil {
		return
	}
	m.collaboratorErrors.WithLabelValues(collaborator).Inc()
}

// RecordBreakerTrip counts a circuit breaker trip.
func (m *Metrics) RecordBreakerTrip() {
	if m == nil {
		return
	}
	m.breakerTrips.Inc()
}

// SetPortfolio updates the portfolio gauges.
func (m *Metrics) SetPortfolio(cash float64, open int, dailyPnL float64) {
	if m == nil {
		return
	}
	m.cash.Set(cash)
	m.openPositions.Set(float64(open))
	m.dailyPnL.Set(dailyPnL)
}
