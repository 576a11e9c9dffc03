// Package market defines the injected capability contracts spec §6 requires
// the core to depend on polymorphically (DataProvider, HolidayProvider,
// InstrumentProvider), plus a circuit-breaker wrapper around DataProvider
// grounded on the teacher's CircuitBreakerManager.
package market

import (
	"context"
	"time"

	"github.com/gushen/quant-core/internal/calendar"
	"github.com/gushen/quant-core/internal/gushenerr"
	"github.com/gushen/quant-core/pkg/kline"
)

// FetchKind enumerates DataProvider's documented failure modes (spec §6).
type FetchKind string

const (
	FetchNetwork     FetchKind = "NETWORK"
	FetchNotFound    FetchKind = "NOT_FOUND"
	FetchRateLimited FetchKind = "RATE_LIMITED"
	FetchIntegrity   FetchKind = "INTEGRITY"
)

// DataProvider is the injected bar-fetching capability (spec §6).
type DataProvider interface {
	GetBars(ctx context.Context, symbol string, start, end time.Time, timeframe kline.Timeframe) (*kline.Series, *gushenerr.Error)
}

// HolidayProvider is re-exported from internal/calendar so callers assembling
// a component graph only need to import internal/market for every injected
// capability's type.
type HolidayProvider = calendar.HolidayProvider

// InstrumentProvider is the injected instrument metadata lookup (spec §6).
type InstrumentProvider interface {
	Lookup(symbol string) (kline.Instrument, bool)
}

// StaticInstrumentProvider is a trivial InstrumentProvider backed by an
// in-memory map, useful for tests and small deployments that don't need a
// live reference-data feed.
type StaticInstrumentProvider struct {
	instruments map[string]kline.Instrument
}

// NewStaticInstrumentProvider builds a StaticInstrumentProvider from a slice
// of instruments, keyed by symbol.
func NewStaticInstrumentProvider(instruments []kline.Instrument) *StaticInstrumentProvider {
	m := make(map[string]kline.Instrument, len(instruments))
	for _, inst := range instruments {
		m[inst.Symbol] = inst
	}
	return &StaticInstrumentProvider{instruments: m}
}

// Lookup implements InstrumentProvider.
func (p *StaticInstrumentProvider) Lookup(symbol string) (kline.Instrument, bool) {
	inst, ok := p.instruments[symbol]
	return inst, ok
}
