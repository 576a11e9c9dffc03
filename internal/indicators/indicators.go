// Package indicators implements IndicatorLib (spec §4.4): stateless pure
// functions over numeric arrays that return arrays of equal length,
// NaN-padded for warmup positions. Every function here is hand-rolled
// (no cinar/indicator channel pipeline) because that library's Compute()
// API silently drops warmup positions instead of emitting NaN sentinels,
// which breaks the "equal-length array, NaN for warmup" invariant spec §4.4
// requires.
package indicators

import "math"

// SMA computes the simple moving average over a trailing window. The first
// window-1 positions are NaN (spec §4.4).
func SMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	fillNaN(out)
	if window <= 0 || window > len(values) {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// EMA computes the exponential moving average, seeded with SMA over the
// first `window` positions, alpha = 2/(window+1) (spec §4.4).
func EMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	fillNaN(out)
	if window <= 0 || window > len(values) {
		return out
	}
	alpha := 2.0 / (float64(window) + 1.0)
	sma := SMA(values, window)
	seedIdx := window - 1
	out[seedIdx] = sma[seedIdx]
	for i := seedIdx + 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI computes the Relative Strength Index using Wilder's smoothing (spec
// §4.4). Values are in [0,100] after warmup.
func RSI(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	fillNaN(out)
	if window <= 0 || len(values) <= window {
		return out
	}
	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= window; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(window)
	avgLoss /= float64(window)
	out[window] = rsiFromAverages(avgGain, avgLoss)

	for i := window + 1; i < len(values); i++ {
		avgGain = (avgGain*float64(window-1) + gains[i]) / float64(window)
		avgLoss = (avgLoss*float64(window-1) + losses[i]) / float64(window)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDResult holds the three MACD output arrays (spec §4.4).
type MACDResult struct {
	DIF       []float64
	DEA       []float64
	Histogram []float64
}

// MACD computes dif = EMA(fast) - EMA(slow), dea = EMA(dif, signal),
// histogram = 2*(dif-dea) (spec §4.4, default periods 12/26/9).
func MACD(values []float64, fast, slow, signal int) MACDResult {
	n := len(values)
	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)

	dif := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(emaFast[i]) || math.IsNaN(emaSlow[i]) {
			dif[i] = math.NaN()
		} else {
			dif[i] = emaFast[i] - emaSlow[i]
		}
	}

	dea := emaOverSparse(dif, signal)

	histogram := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(dif[i]) || math.IsNaN(dea[i]) {
			histogram[i] = math.NaN()
		} else {
			histogram[i] = 2 * (dif[i] - dea[i])
		}
	}

	return MACDResult{DIF: dif, DEA: dea, Histogram: histogram}
}

// emaOverSparse computes an EMA(window) over a series that itself has a
// leading run of NaN, by treating the first non-NaN run as the warmup data.
func emaOverSparse(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	fillNaN(out)
	start := -1
	for i, v := range values {
		if !math.IsNaN(v) {
			start = i
			break
		}
	}
	if start == -1 || window <= 0 || len(values)-start < window {
		return out
	}
	tail := values[start:]
	emaTail := EMA(tail, window)
	copy(out[start:], emaTail)
	return out
}

// BollingerResult holds the three Bollinger Band output arrays.
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger computes {upper, middle, lower} bands; middle = SMA(window),
// band = middle +- stdDev*multiplier using population standard deviation
// over the trailing window (spec §4.4).
func Bollinger(values []float64, window int, multiplier float64) BollingerResult {
	n := len(values)
	middle := SMA(values, window)
	upper := make([]float64, n)
	lower := make([]float64, n)
	fillNaN(upper)
	fillNaN(lower)

	if window <= 0 || window > n {
		return BollingerResult{Upper: upper, Middle: middle, Lower: lower}
	}
	for i := window - 1; i < n; i++ {
		mean := middle[i]
		var sumSq float64
		for j := i - window + 1; j <= i; j++ {
			d := values[j] - mean
			sumSq += d * d
		}
		stdDev := math.Sqrt(sumSq / float64(window))
		upper[i] = mean + stdDev*multiplier
		lower[i] = mean - stdDev*multiplier
	}
	return BollingerResult{Upper: upper, Middle: middle, Lower: lower}
}

// ATR computes the Wilder-smoothed Average True Range over OHLC data (spec
// §4.4).
func ATR(highs, lows, closes []float64, window int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	fillNaN(out)
	if window <= 0 || n <= window {
		return out
	}
	tr := trueRange(highs, lows, closes)

	var sum float64
	for i := 1; i <= window; i++ {
		sum += tr[i]
	}
	atr := sum / float64(window)
	out[window] = atr
	for i := window + 1; i < n; i++ {
		atr = (atr*float64(window-1) + tr[i]) / float64(window)
		out[i] = atr
	}
	return out
}

func trueRange(highs, lows, closes []float64) []float64 {
	n := len(closes)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		tr[i] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}
	return tr
}

// KDJResult holds the K, D, J output arrays (spec §4.4).
type KDJResult struct {
	K []float64
	D []float64
	J []float64
}

// KDJ computes the stochastic oscillator's K/D/J lines with the given RSV
// window and K/D smoothing factors (default 9,3,3). K and D are seeded at
// 50 the first time they become defined, matching the conventional KDJ
// recurrence.
func KDJ(highs, lows, closes []float64, rsvWindow, kSmoothing, dSmoothing int) KDJResult {
	n := len(closes)
	k := make([]float64, n)
	d := make([]float64, n)
	j := make([]float64, n)
	fillNaN(k)
	fillNaN(d)
	fillNaN(j)
	if rsvWindow <= 0 || n < rsvWindow {
		return KDJResult{K: k, D: d, J: j}
	}

	prevK, prevD := 50.0, 50.0
	for i := rsvWindow - 1; i < n; i++ {
		hh := maxOf(highs[i-rsvWindow+1 : i+1])
		ll := minOf(lows[i-rsvWindow+1 : i+1])
		var rsv float64
		if hh == ll {
			rsv = 50
		} else {
			rsv = (closes[i] - ll) / (hh - ll) * 100
		}
		kk := (float64(kSmoothing-1)*prevK + rsv) / float64(kSmoothing)
		dd := (float64(dSmoothing-1)*prevD + kk) / float64(dSmoothing)
		k[i] = kk
		d[i] = dd
		j[i] = 3*kk - 2*dd
		prevK, prevD = kk, dd
	}
	return KDJResult{K: k, D: d, J: j}
}

func fillNaN(out []float64) {
	for i := range out {
		out[i] = math.NaN()
	}
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
