// Package metrics exposes replay, ledger and pairs activity to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trading-replay/internal/model"
)

// Metrics holds every collector. It implements strategy.Observer and
// pairs.Observer.
type Metrics struct {
	Executions      *prometheus.CounterVec   // labels: strategy, action
	ExecutedVolume  *prometheus.CounterVec   // labels: strategy
	OrdersClosed    *prometheus.CounterVec   // labels: strategy, reason
	OrderProfitPct  *prometheus.HistogramVec // labels: strategy
	ExecutionErrors *prometheus.CounterVec   // labels: strategy, kind
	ReplayBars      *prometheus.CounterVec   // labels: strategy
	ReplayDur       *prometheus.HistogramVec // labels: strategy

	PairTransitions *prometheus.CounterVec // labels: from, to
	PairsOpen       prometheus.Gauge

	// Cycle bookkeeping for scheduled runs
	CycleDur    *prometheus.HistogramVec // labels: cycle
	CycleErrors *prometheus.CounterVec   // labels: cycle

	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_executions_total",
			Help: "Executions appended to the ledger",
		}, []string{"strategy", "action"}),
		ExecutedVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_executed_notional_total",
			Help: "Notional traded, summed over executions",
		}, []string{"strategy"}),
		OrdersClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_orders_closed_total",
			Help: "Orders closed by reason",
		}, []string{"strategy", "reason"}),
		OrderProfitPct: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "replay_order_profit_ratio",
			Help:    "Profit of closed orders as a fraction of entry notional",
			Buckets: []float64{-0.2, -0.1, -0.05, -0.02, -0.01, 0, 0.01, 0.02, 0.05, 0.1, 0.2},
		}, []string{"strategy"}),
		ExecutionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_execution_errors_total",
			Help: "Failed execution requests by error kind",
		}, []string{"strategy", "kind"}),
		ReplayBars: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_bars_total",
			Help: "Bars walked by the replay engine",
		}, []string{"strategy"}),
		ReplayDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "replay_duration_seconds",
			Help:    "Wall time of one replay",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"strategy"}),

		PairTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairs_transitions_total",
			Help: "Pair ledger status transitions",
		}, []string{"from", "to"}),
		PairsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pairs_open",
			Help: "Pair positions currently OPEN, as last observed",
		}),

		CycleDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cycle_duration_seconds",
			Help:    "Wall time of one scheduled cycle",
			Buckets: prometheus.DefBuckets,
		}, []string{"cycle"}),
		CycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cycle_errors_total",
			Help: "Scheduled cycles that returned an error",
		}, []string{"cycle"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.Executions,
		m.ExecutedVolume,
		m.OrdersClosed,
		m.OrderProfitPct,
		m.ExecutionErrors,
		m.ReplayBars,
		m.ReplayDur,
		m.PairTransitions,
		m.PairsOpen,
		m.CycleDur,
		m.CycleErrors,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)
	return m
}

// OnExecution implements strategy.Observer.
func (m *Metrics) OnExecution(strategy string, e model.Execution) {
	m.Executions.WithLabelValues(strategy, string(e.Action)).Inc()
	m.ExecutedVolume.WithLabelValues(strategy).Add(e.Notional)
}

// OnOrderClosed implements strategy.Observer.
func (m *Metrics) OnOrderClosed(strategy string, o model.OpenOrder) {
	reason := o.CloseReason
	if reason == "" {
		reason = "unknown"
	}
	m.OrdersClosed.WithLabelValues(strategy, reason).Inc()
	if o.ProfitPct != nil {
		m.OrderProfitPct.WithLabelValues(strategy).Observe(*o.ProfitPct)
	}
}

// OnExecutionError implements strategy.Observer.
func (m *Metrics) OnExecutionError(strategy, _ string, err error) {
	m.ExecutionErrors.WithLabelValues(strategy, errorKind(err)).Inc()
}

// OnReplay implements strategy.Observer.
func (m *Metrics) OnReplay(strategy, _ string, bars int, elapsed time.Duration) {
	m.ReplayBars.WithLabelValues(strategy).Add(float64(bars))
	m.ReplayDur.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// OnPairTransition implements pairs.Observer.
func (m *Metrics) OnPairTransition(p model.PairPosition, from model.PairStatus) {
	m.PairTransitions.WithLabelValues(string(from), string(p.Status)).Inc()
	switch {
	case p.Status == model.PairOpen && from != model.PairOpen:
		m.PairsOpen.Inc()
	case from == model.PairOpen && p.Status != model.PairOpen:
		m.PairsOpen.Dec()
	}
}

// SetPairsOpen resets the open gauge from a loaded ledger.
func (m *Metrics) SetPairsOpen(rows []model.PairPosition) {
	n := 0
	for _, r := range rows {
		if r.Status == model.PairOpen {
			n++
		}
	}
	m.PairsOpen.Set(float64(n))
}

// ObserveCycle records one scheduled cycle.
func (m *Metrics) ObserveCycle(name string, elapsed time.Duration, err error) {
	m.CycleDur.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		m.CycleErrors.WithLabelValues(name).Inc()
	}
}

// SetBreakerState records a circuit breaker transition; state follows the
// breaker's numbering and 1 means open.
func (m *Metrics) SetBreakerState(state int) {
	m.RedisCircuitBreakerState.Set(float64(state))
	if state == 1 {
		m.RedisCircuitBreakerTrips.Inc()
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrCapacity):
		return "capacity"
	case errors.Is(err, model.ErrValidation):
		return "validation"
	case errors.Is(err, model.ErrExecution):
		return "execution"
	default:
		return "other"
	}
}
