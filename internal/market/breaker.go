package market

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"github.com/gushen/quant-core/internal/gushenerr"
	"github.com/gushen/quant-core/pkg/kline"
)

// BreakerSettings configures the DataProvider circuit breaker. Defaults
// mirror the teacher's exchange breaker (quick-tripping, short recovery)
// since a bar feed's failure mode is closest to that profile of the three
// the teacher used to distinguish (exchange/LLM/database).
type BreakerSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// DefaultBreakerSettings matches the teacher's exchange breaker defaults.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:     5,
		FailureRatio:    0.6,
		OpenTimeout:     30 * time.Second,
		HalfOpenMaxReqs: 3,
		CountInterval:   10 * time.Second,
	}
}

var (
	breakerMetrics     *dataProviderMetrics
	breakerMetricsOnce sync.Once
)

type dataProviderMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
}

func initBreakerMetrics() {
	breakerMetricsOnce.Do(func() {
		breakerMetrics = &dataProviderMetrics{
			state: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "gushen_data_provider_breaker_state",
				Help: "DataProvider circuit breaker state (0=closed, 1=open, 2=half_open)",
			}, []string{"provider"}),
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gushen_data_provider_requests_total",
				Help: "Total DataProvider.GetBars calls through the circuit breaker",
			}, []string{"provider", "result"}),
		}
	})
}

// BreakerDataProvider wraps a DataProvider so repeated upstream failures trip
// a breaker instead of hammering a degraded feed (spec §6, grounded on the
// teacher's CircuitBreakerManager).
type BreakerDataProvider struct {
	name string
	inner DataProvider
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerDataProvider wraps inner with a named circuit breaker.
func NewBreakerDataProvider(name string, inner DataProvider, settings BreakerSettings) *BreakerDataProvider {
	initBreakerMetrics()
	w := &BreakerDataProvider{name: name, inner: inner}
	w.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.HalfOpenMaxReqs,
		Interval:    settings.CountInterval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= settings.MinRequests && failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(_ string, _ gobreaker.State, to gobreaker.State) {
			w.recordState(to)
		},
	})
	w.recordState(w.cb.State())
	return w
}

func (w *BreakerDataProvider) recordState(state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateOpen:
		v = 1
	case gobreaker.StateHalfOpen:
		v = 2
	}
	breakerMetrics.state.WithLabelValues(w.name).Set(v)
}

// GetBars implements DataProvider, routing the call through the breaker and
// translating a tripped-open breaker into a recoverable BT201 fetch failure.
func (w *BreakerDataProvider) GetBars(ctx context.Context, symbol string, start, end time.Time, timeframe kline.Timeframe) (*kline.Series, *gushenerr.Error) {
	result, err := w.cb.Execute(func() (interface{}, error) {
		series, gerr := w.inner.GetBars(ctx, symbol, start, end, timeframe)
		if gerr != nil {
			breakerMetrics.requests.WithLabelValues(w.name, "failure").Inc()
			return nil, gerr
		}
		breakerMetrics.requests.WithLabelValues(w.name, "success").Inc()
		return series, nil
	})
	if err != nil {
		if gerr, ok := err.(*gushenerr.Error); ok {
			return nil, gerr
		}
		return nil, gushenerr.New(gushenerr.CodeFetchFailure, "data provider circuit breaker open", gushenerr.SeverityWarning, true).
			Wrap(err).
			WithSuggestion("retry after the breaker's open timeout elapses")
	}
	return result.(*kline.Series), nil
}
