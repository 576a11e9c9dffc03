// Package kline implements the immutable OHLCV bar container (spec §3, §4.3)
// shared by value across the backtest/scanner/diagnostics core: consumers
// never mutate a KLineSeries they receive.
package kline

import "github.com/gushen/quant-core/internal/gushenerr"

// Timeframe names the bar interval a series is sampled at.
type Timeframe string

const (
	Timeframe1Day    Timeframe = "1d"
	Timeframe1Hour   Timeframe = "1h"
	Timeframe1Minute Timeframe = "1m"
)

// Seconds returns the expected spacing between consecutive bars of this
// timeframe, used by gap detection.
func (tf Timeframe) Seconds() int64 {
	switch tf {
	case Timeframe1Day:
		return 86400
	case Timeframe1Hour:
		return 3600
	case Timeframe1Minute:
		return 60
	default:
		return 0
	}
}

// Bar is a single OHLCV record, epoch-seconds UTC timestamped (spec §3).
type Bar struct {
	T      int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Amount float64 // turnover; 0 when not supplied
}

// validate checks the single-bar invariants from spec §3: low <= open,close
// <= high, and volume >= 0.
func (b Bar) validate() *gushenerr.Error {
	lo, hi := b.Low, b.High
	if lo > b.Open || b.Open > hi || lo > b.Close || b.Close > hi {
		return gushenerr.New(gushenerr.CodeDataQuality,
			"bar violates low <= open,close <= high", gushenerr.SeverityError, true).
			WithDetails(map[string]any{"bar": b})
	}
	if b.Volume < 0 {
		return gushenerr.New(gushenerr.CodeDataQuality,
			"bar has negative volume", gushenerr.SeverityError, true).
			WithDetails(map[string]any{"bar": b})
	}
	return nil
}

// Board names an A-share listing venue/segment, which determines the
// effective price-limit band (spec §4.2, §9: "never hardcodes" from symbol
// prefix — Instrument metadata carries it explicitly).
type Board string

const (
	BoardMain    Board = "main"
	BoardSTAR    Board = "star"    // 科创板, ±20%
	BoardChiNext Board = "chinext" // 创业板, ±20%
	BoardIndex   Board = "index"   // no price limit
)

// Instrument is immutable per backtest run (spec §3).
type Instrument struct {
	Symbol        string
	DisplayName   string
	ListingDate   int64 // epoch seconds
	LotSize       int   // default 100 for A-share
	PriceLimitPct float64
	IsST          bool
	Board         Board
}

// DefaultInstrument fills in the A-share defaults (spec §4.2): lot size 100,
// ±10% price limit, ±5% when ST, ±20% on STAR/ChiNext boards, 0 on indices.
func DefaultInstrument(symbol string) Instrument {
	return Instrument{
		Symbol:        symbol,
		DisplayName:   symbol,
		LotSize:       100,
		PriceLimitPct: 0.10,
		Board:         BoardMain,
	}
}

// EffectivePriceLimitPct resolves the instrument's price-limit band,
// honoring ST status and board overrides without ever inferring from the
// symbol string (spec §9 Open Question).
func (i Instrument) EffectivePriceLimitPct() float64 {
	switch {
	case i.Board == BoardIndex:
		return 0
	case i.IsST:
		return 0.05
	case i.Board == BoardSTAR || i.Board == BoardChiNext:
		return 0.20
	default:
		return i.PriceLimitPct
	}
}
