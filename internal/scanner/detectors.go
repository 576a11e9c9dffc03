package scanner

import (
	"math"

	"github.com/gushen/quant-core/pkg/kline"
)

// Detector is spec §4.5's detector contract: detect(series, i, indicators)
// -> null | Proto-signal. Implementations MUST return nil when a required
// indicator value is NaN (warmup) or when i==0 and the detector needs a
// prior bar, and MUST NOT read bar i+1 or beyond.
type Detector interface {
	ID() string
	// WarmupMin is the smallest bar index at which this detector can
	// produce a signal; the scan algorithm's warmupMin floor (60) is
	// relaxed to this value when it declares something smaller.
	WarmupMin() int
	Detect(s *kline.Series, ind *Indicators, i int) *ProtoSignal
}

// Registry returns the built-in detector set (spec §4.5 "initial strategy
// set").
func Registry() map[string]Detector {
	all := []Detector{
		maGoldenCross{}, maDeathCross{},
		macdGoldenCross{}, macdDeathCross{},
		rsiOversold{}, rsiOverbought{},
		bollLowerBreak{}, bollUpperBreak{},
		volumeBreakout{},
	}
	reg := make(map[string]Detector, len(all))
	for _, d := range all {
		reg[d.ID()] = d
	}
	return reg
}

func crossedUp(prevA, prevB, curA, curB float64) bool {
	if math.IsNaN(prevA) || math.IsNaN(prevB) || math.IsNaN(curA) || math.IsNaN(curB) {
		return false
	}
	return prevA <= prevB && curA > curB
}

func crossedDown(prevA, prevB, curA, curB float64) bool {
	if math.IsNaN(prevA) || math.IsNaN(prevB) || math.IsNaN(curA) || math.IsNaN(curB) {
		return false
	}
	return prevA >= prevB && curA < curB
}

type maGoldenCross struct{}

func (maGoldenCross) ID() string  { return "ma_golden_cross" }
func (maGoldenCross) WarmupMin() int { return 21 }
func (maGoldenCross) Detect(s *kline.Series, ind *Indicators, i int) *ProtoSignal {
	if i == 0 || i >= len(ind.SMA5) {
		return nil
	}
	if !crossedUp(ind.SMA5[i-1], ind.SMA10[i-1], ind.SMA5[i], ind.SMA10[i]) {
		return nil
	}
	strength := (ind.SMA5[i] - ind.SMA10[i]) / ind.SMA10[i] * 100
	return &ProtoSignal{Kind: KindBuy, Strength: math.Abs(strength)}
}

type maDeathCross struct{}

func (maDeathCross) ID() string  { return "ma_death_cross" }
func (maDeathCross) WarmupMin() int { return 21 }
func (maDeathCross) Detect(s *kline.Series, ind *Indicators, i int) *ProtoSignal {
	if i == 0 || i >= len(ind.SMA5) {
		return nil
	}
	if !crossedDown(ind.SMA5[i-1], ind.SMA10[i-1], ind.SMA5[i], ind.SMA10[i]) {
		return nil
	}
	strength := (ind.SMA10[i] - ind.SMA5[i]) / ind.SMA10[i] * 100
	return &ProtoSignal{Kind: KindSell, Strength: math.Abs(strength)}
}

type macdGoldenCross struct{}

func (macdGoldenCross) ID() string  { return "macd_golden_cross" }
func (macdGoldenCross) WarmupMin() int { return 36 }
func (macdGoldenCross) Detect(s *kline.Series, ind *Indicators, i int) *ProtoSignal {
	if i == 0 || i >= len(ind.MACD.DIF) {
		return nil
	}
	if !crossedUp(ind.MACD.DIF[i-1], ind.MACD.DEA[i-1], ind.MACD.DIF[i], ind.MACD.DEA[i]) {
		return nil
	}
	return &ProtoSignal{Kind: KindBuy, Strength: math.Abs(ind.MACD.Histogram[i])}
}

type macdDeathCross struct{}

func (macdDeathCross) ID() string  { return "macd_death_cross" }
func (macdDeathCross) WarmupMin() int { return 36 }
func (macdDeathCross) Detect(s *kline.Series, ind *Indicators, i int) *ProtoSignal {
	if i == 0 || i >= len(ind.MACD.DIF) {
		return nil
	}
	if !crossedDown(ind.MACD.DIF[i-1], ind.MACD.DEA[i-1], ind.MACD.DIF[i], ind.MACD.DEA[i]) {
		return nil
	}
	return &ProtoSignal{Kind: KindSell, Strength: math.Abs(ind.MACD.Histogram[i])}
}

type rsiOversold struct{}

func (rsiOversold) ID() string  { return "rsi_oversold" }
func (rsiOversold) WarmupMin() int { return 16 }
func (rsiOversold) Detect(s *kline.Series, ind *Indicators, i int) *ProtoSignal {
	if i == 0 || i >= len(ind.RSI14) {
		return nil
	}
	if math.IsNaN(ind.RSI14[i-1]) || math.IsNaN(ind.RSI14[i]) {
		return nil
	}
	if !(ind.RSI14[i-1] >= 30 && ind.RSI14[i] < 30) {
		return nil
	}
	return &ProtoSignal{Kind: KindBuy, Strength: 30 - ind.RSI14[i]}
}

type rsiOverbought struct{}

func (rsiOverbought) ID() string  { return "rsi_overbought" }
func (rsiOverbought) WarmupMin() int { return 16 }
func (rsiOverbought) Detect(s *kline.Series, ind *Indicators, i int) *ProtoSignal {
	if i == 0 || i >= len(ind.RSI14) {
		return nil
	}
	if math.IsNaN(ind.RSI14[i-1]) || math.IsNaN(ind.RSI14[i]) {
		return nil
	}
	if !(ind.RSI14[i-1] <= 70 && ind.RSI14[i] > 70) {
		return nil
	}
	return &ProtoSignal{Kind: KindSell, Strength: ind.RSI14[i] - 70}
}

type bollLowerBreak struct{}

func (bollLowerBreak) ID() string  { return "boll_lower_break" }
func (bollLowerBreak) WarmupMin() int { return 21 }
func (bollLowerBreak) Detect(s *kline.Series, ind *Indicators, i int) *ProtoSignal {
	if i == 0 || i >= len(ind.Bollinger.Lower) {
		return nil
	}
	closes := s.Closes()
	if math.IsNaN(ind.Bollinger.Lower[i-1]) || math.IsNaN(ind.Bollinger.Lower[i]) {
		return nil
	}
	if !(closes[i-1] >= ind.Bollinger.Lower[i-1] && closes[i] < ind.Bollinger.Lower[i]) {
		return nil
	}
	strength := (ind.Bollinger.Lower[i] - closes[i]) / ind.Bollinger.Lower[i] * 100
	return &ProtoSignal{Kind: KindBuy, Strength: math.Abs(strength)}
}

type bollUpperBreak struct{}

func (bollUpperBreak) ID() string  { return "boll_upper_break" }
func (bollUpperBreak) WarmupMin() int { return 21 }
func (bollUpperBreak) Detect(s *kline.Series, ind *Indicators, i int) *ProtoSignal {
	if i == 0 || i >= len(ind.Bollinger.Upper) {
		return nil
	}
	closes := s.Closes()
	if math.IsNaN(ind.Bollinger.Upper[i-1]) || math.IsNaN(ind.Bollinger.Upper[i]) {
		return nil
	}
	if !(closes[i-1] <= ind.Bollinger.Upper[i-1] && closes[i] > ind.Bollinger.Upper[i]) {
		return nil
	}
	strength := (closes[i] - ind.Bollinger.Upper[i]) / ind.Bollinger.Upper[i] * 100
	return &ProtoSignal{Kind: KindSell, Strength: math.Abs(strength)}
}

type volumeBreakout struct{}

func (volumeBreakout) ID() string  { return "volume_breakout" }
func (volumeBreakout) WarmupMin() int { return 21 }
func (volumeBreakout) Detect(s *kline.Series, ind *Indicators, i int) *ProtoSignal {
	if i == 0 || i >= len(ind.VolumeSMA20) {
		return nil
	}
	if math.IsNaN(ind.VolumeSMA20[i]) || ind.VolumeSMA20[i] == 0 {
		return nil
	}
	volumes := s.Volumes()
	closes := s.Closes()
	if volumes[i] <= ind.VolumeSMA20[i]*2 || closes[i] <= closes[i-1] {
		return nil
	}
	return &ProtoSignal{Kind: KindBuy, Strength: volumes[i] / ind.VolumeSMA20[i]}
}
