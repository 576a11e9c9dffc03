package scanner

import (
	"github.com/gushen/quant-core/internal/indicators"
	"github.com/gushen/quant-core/pkg/kline"
)

// Indicators bundles the precomputed arrays detectors read from, computed
// once per series so no detector recomputes an indicator per bar (spec
// §4.4/§4.5: IndicatorLib functions are pure and positional).
type Indicators struct {
	SMA5, SMA10, SMA20 []float64
	MACD               indicators.MACDResult
	RSI14              []float64
	Bollinger          indicators.BollingerResult
	VolumeSMA20        []float64
}

// ComputeIndicators runs IndicatorLib over a series' closes/volumes once.
func ComputeIndicators(s *kline.Series) *Indicators {
	closes := s.Closes()
	volumes := s.Volumes()
	return &Indicators{
		SMA5:        indicators.SMA(closes, 5),
		SMA10:       indicators.SMA(closes, 10),
		SMA20:       indicators.SMA(closes, 20),
		MACD:        indicators.MACD(closes, 12, 26, 9),
		RSI14:       indicators.RSI(closes, 14),
		Bollinger:   indicators.Bollinger(closes, 20, 2),
		VolumeSMA20: indicators.SMA(volumes, 20),
	}
}
