// Package metrics exposes the Prometheus counters/gauges the rest of the
// core increments as a side channel: event emission, order fills, risk-check
// failures, and scan duration. Nothing in the core reads these back — they
// exist for callers to scrape, the same role the teacher's breaker metrics
// play in internal/market/breaker.go.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	m    *registry
	once sync.Once
)

type registry struct {
	eventsTotal      *prometheus.CounterVec
	ordersFilled     *prometheus.CounterVec
	riskChecksFailed *prometheus.CounterVec
	scanDuration     *prometheus.HistogramVec
}

func get() *registry {
	once.Do(func() {
		m = &registry{
			eventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gushen_ledger_events_total",
				Help: "Total TradeEvents emitted by the ledger, by event type.",
			}, []string{"type"}),
			ordersFilled: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gushen_orders_filled_total",
				Help: "Total orders filled by the backtest engine, by symbol and side.",
			}, []string{"symbol", "side"}),
			riskChecksFailed: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gushen_risk_checks_failed_total",
				Help: "Total RiskManager.ValidateOrder checks that did not pass, by rule.",
			}, []string{"rule"}),
			scanDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "gushen_scan_duration_seconds",
				Help:    "SignalScanner.Scan wall-clock duration, by strategy id.",
				Buckets: prometheus.DefBuckets,
			}, []string{"strategy"}),
		}
	})
	return m
}

// RecordEvent increments the counter for one emitted TradeEvent.
func RecordEvent(eventType string) {
	get().eventsTotal.WithLabelValues(eventType).Inc()
}

// RecordOrderFilled increments the counter for one filled order.
func RecordOrderFilled(symbol, side string) {
	get().ordersFilled.WithLabelValues(symbol, side).Inc()
}

// RecordRiskCheckFailed increments the counter for one failed risk check.
func RecordRiskCheckFailed(rule string) {
	get().riskChecksFailed.WithLabelValues(rule).Inc()
}

// ObserveScanDuration records how long a Scan call took. Callers measure the
// duration themselves (e.g. via time.Since) and pass it in here; this
// package never reads the wall clock, keeping the core's own computations
// free of non-deterministic inputs.
func ObserveScanDuration(strategyID string, d time.Duration) {
	get().scanDuration.WithLabelValues(strategyID).Observe(d.Seconds())
}
