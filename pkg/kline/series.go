package kline

import (
	"fmt"
	"math"

	"github.com/gushen/quant-core/internal/gushenerr"
)

// Series is an immutable OHLCV bar container (spec §4.3). Construction
// validates bar integrity and strictly increasing, non-duplicate
// timestamps; it does not check bar spacing against the timeframe
// (DetectGaps reports spacing wider than one interval). Once built, a Series never
// mutates; slicing/viewing returns read-only derived views.
type Series struct {
	symbol     string
	timeframe  Timeframe
	instrument Instrument
	bars       []Bar
}

// New validates and constructs a Series. It rejects bar-invariant
// violations, non-monotonic or duplicate timestamps, per spec §3/§4.3.
func New(symbol string, timeframe Timeframe, instrument Instrument, bars []Bar) (*Series, *gushenerr.Error) {
	for i, b := range bars {
		if err := b.validate(); err != nil {
			return nil, err.WithDetails(map[string]any{"index": i})
		}
		if i > 0 && b.T <= bars[i-1].T {
			return nil, gushenerr.New(gushenerr.CodeDataQuality,
				fmt.Sprintf("bar timestamps must be strictly increasing: bar %d (t=%d) <= bar %d (t=%d)", i, b.T, i-1, bars[i-1].T),
				gushenerr.SeverityError, true)
		}
	}
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	return &Series{symbol: symbol, timeframe: timeframe, instrument: instrument, bars: cp}, nil
}

// Symbol returns the instrument symbol the series was built for.
func (s *Series) Symbol() string { return s.symbol }

// Timeframe returns the series's bar interval.
func (s *Series) Timeframe() Timeframe { return s.timeframe }

// Instrument returns the series's immutable instrument metadata.
func (s *Series) Instrument() Instrument { return s.instrument }

// Length returns the number of bars.
func (s *Series) Length() int { return len(s.bars) }

// At returns the bar at index i. Panics on out-of-range i, a programmer
// error per spec §7 (pure accessors raise on shape violations only).
func (s *Series) At(i int) Bar { return s.bars[i] }

// Slice returns a read-only copy of bars in [lo, hi).
func (s *Series) Slice(lo, hi int) []Bar {
	out := make([]Bar, hi-lo)
	copy(out, s.bars[lo:hi])
	return out
}

// Closes returns a lazily-materialized view of closing prices.
func (s *Series) Closes() []float64 { return s.column(func(b Bar) float64 { return b.Close }) }

// Opens returns a lazily-materialized view of opening prices.
func (s *Series) Opens() []float64 { return s.column(func(b Bar) float64 { return b.Open }) }

// Highs returns a lazily-materialized view of high prices.
func (s *Series) Highs() []float64 { return s.column(func(b Bar) float64 { return b.High }) }

// Lows returns a lazily-materialized view of low prices.
func (s *Series) Lows() []float64 { return s.column(func(b Bar) float64 { return b.Low }) }

// Volumes returns a lazily-materialized view of volumes.
func (s *Series) Volumes() []float64 { return s.column(func(b Bar) float64 { return b.Volume }) }

func (s *Series) column(f func(Bar) float64) []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = f(b)
	}
	return out
}

// Gap describes a detected missing-bar interval (spec §4.3).
type Gap struct {
	AfterIndex int   // gap occurs between bars[AfterIndex] and bars[AfterIndex+1]
	FromT      int64
	ToT        int64
	MissingBars int
}

// DetectGaps reports runs of bars whose spacing exceeds one expected
// interval for the series's timeframe.
func (s *Series) DetectGaps() []Gap {
	expected := s.timeframe.Seconds()
	if expected <= 0 || len(s.bars) < 2 {
		return nil
	}
	var gaps []Gap
	for i := 1; i < len(s.bars); i++ {
		delta := s.bars[i].T - s.bars[i-1].T
		if delta > expected {
			gaps = append(gaps, Gap{
				AfterIndex:  i - 1,
				FromT:       s.bars[i-1].T,
				ToT:         s.bars[i].T,
				MissingBars: int(delta/expected) - 1,
			})
		}
	}
	return gaps
}

// AnomalyKind classifies a detected price anomaly (spec §4.3).
type AnomalyKind string

const (
	AnomalySingleBarReturn AnomalyKind = "single_bar_return" // |return| > 25%, suspected adjustment
	AnomalyDayGap          AnomalyKind = "day_gap"           // gap beyond priceLimitPct+5%
)

// Anomaly is a flagged suspicious bar.
type Anomaly struct {
	Index int
	Kind  AnomalyKind
	T     int64
	Value float64 // the observed return/gap magnitude
}

// DetectAnomalies flags single-bar absolute returns over 25% (suspected
// forward/backward adjustment) and day-to-day gaps beyond the instrument's
// price-limit band plus 5 percentage points (spec §4.3).
func (s *Series) DetectAnomalies() []Anomaly {
	if len(s.bars) < 2 {
		return nil
	}
	limit := s.instrument.EffectivePriceLimitPct()
	var anomalies []Anomaly
	for i := 1; i < len(s.bars); i++ {
		prevClose := s.bars[i-1].Close
		if prevClose == 0 {
			continue
		}
		ret := (s.bars[i].Close - prevClose) / prevClose
		if math.Abs(ret) > 0.25 {
			anomalies = append(anomalies, Anomaly{Index: i, Kind: AnomalySingleBarReturn, T: s.bars[i].T, Value: ret})
		}
		gapOpen := (s.bars[i].Open - prevClose) / prevClose
		if math.Abs(gapOpen) > limit+0.05 {
			anomalies = append(anomalies, Anomaly{Index: i, Kind: AnomalyDayGap, T: s.bars[i].T, Value: gapOpen})
		}
	}
	return anomalies
}

// IsLimitUp reports whether the bar at index i closed at the instrument's
// upper price limit (spec §4.5 step 4: close == upper to 2 decimals).
func (s *Series) IsLimitUp(i int) bool {
	if i == 0 || s.instrument.EffectivePriceLimitPct() == 0 {
		return false
	}
	prevClose := s.bars[i-1].Close
	upper, _ := PriceLimits(s.instrument, prevClose)
	return round2(s.bars[i].Close) == round2(upper) && round2(s.bars[i].High) == round2(upper)
}

// IsLimitDown reports whether the bar at index i closed at the instrument's
// lower price limit.
func (s *Series) IsLimitDown(i int) bool {
	if i == 0 || s.instrument.EffectivePriceLimitPct() == 0 {
		return false
	}
	prevClose := s.bars[i-1].Close
	_, lower := PriceLimits(s.instrument, prevClose)
	return round2(s.bars[i].Close) == round2(lower) && round2(s.bars[i].Low) == round2(lower)
}

// IsSuspended reports whether the bar at index i has zero volume (spec
// §4.5 step 4: "volume==0 => suspended").
func (s *Series) IsSuspended(i int) bool {
	return s.bars[i].Volume == 0
}

// PriceLimits computes the ±pct price band off prevClose, rounded to 2
// decimals by the financial-regulator rule (spec §4.2):
// round(prevClose * (1+-pct), 2).
func PriceLimits(instrument Instrument, prevClose float64) (upper, lower float64) {
	pct := instrument.EffectivePriceLimitPct()
	if pct == 0 {
		return round2(prevClose), round2(prevClose)
	}
	return round2(prevClose * (1 + pct)), round2(prevClose * (1 - pct))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
