package indicators

import (
	"math"
	"testing"
)

func seqCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 10 + float64(i)*0.5
	}
	return out
}

func TestSMAWarmupAndValue(t *testing.T) {
	values := seqCloses(10)
	out := SMA(values, 3)
	for i := 0; i < 2; i++ {
		if !math.IsNaN(out[i]) {
			t.Fatalf("index %d should be NaN during warmup", i)
		}
	}
	want := (values[2] + values[1] + values[0]) / 3
	if out[2] != want {
		t.Fatalf("SMA[2] = %v, want %v", out[2], want)
	}
	last := len(values) - 1
	wantLast := (values[last] + values[last-1] + values[last-2]) / 3
	if math.Abs(out[last]-wantLast) > 1e-9 {
		t.Fatalf("SMA[last] = %v, want %v", out[last], wantLast)
	}
}

func TestSMAWindowLargerThanData(t *testing.T) {
	out := SMA(seqCloses(5), 10)
	for i, v := range out {
		if !math.IsNaN(v) {
			t.Fatalf("index %d should be NaN when window > data length, got %v", i, v)
		}
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	values := seqCloses(20)
	out := EMA(values, 5)
	sma := SMA(values, 5)
	if out[4] != sma[4] {
		t.Fatalf("EMA should be seeded with SMA at index window-1: got %v want %v", out[4], sma[4])
	}
	for i := 0; i < 4; i++ {
		if !math.IsNaN(out[i]) {
			t.Fatalf("EMA index %d should be NaN during warmup", i)
		}
	}
}

func TestRSIBounds(t *testing.T) {
	values := seqCloses(30)
	out := RSI(values, 14)
	for i := 14; i < len(out); i++ {
		if out[i] < 0 || out[i] > 100 {
			t.Fatalf("RSI[%d] = %v out of [0,100]", i, out[i])
		}
	}
	// Strictly increasing closes should push RSI to 100.
	if out[len(out)-1] != 100 {
		t.Fatalf("RSI of monotonically increasing series should reach 100, got %v", out[len(out)-1])
	}
}

func TestMACDHistogramIdentity(t *testing.T) {
	values := seqCloses(60)
	result := MACD(values, 12, 26, 9)
	for i := range values {
		if math.IsNaN(result.Histogram[i]) {
			continue
		}
		want := 2 * (result.DIF[i] - result.DEA[i])
		if math.Abs(result.Histogram[i]-want) > 1e-9 {
			t.Fatalf("histogram[%d] = %v, want %v", i, result.Histogram[i], want)
		}
	}
}

func TestBollingerMiddleIsSMA(t *testing.T) {
	values := seqCloses(30)
	bb := Bollinger(values, 20, 2)
	sma := SMA(values, 20)
	for i := range values {
		if math.IsNaN(sma[i]) {
			continue
		}
		if bb.Middle[i] != sma[i] {
			t.Fatalf("Bollinger middle[%d] = %v, want SMA %v", i, bb.Middle[i], sma[i])
		}
		if bb.Upper[i] < bb.Middle[i] || bb.Lower[i] > bb.Middle[i] {
			t.Fatalf("bands inverted at index %d", i)
		}
	}
}

func TestATRNonNegative(t *testing.T) {
	n := 30
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := seqCloses(n)
	for i := range closes {
		highs[i] = closes[i] + 0.2
		lows[i] = closes[i] - 0.2
	}
	out := ATR(highs, lows, closes, 14)
	for i := 14; i < n; i++ {
		if out[i] < 0 {
			t.Fatalf("ATR[%d] negative: %v", i, out[i])
		}
	}
}

func TestKDJRange(t *testing.T) {
	n := 40
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := seqCloses(n)
	for i := range closes {
		highs[i] = closes[i] + 0.3
		lows[i] = closes[i] - 0.3
	}
	kdj := KDJ(highs, lows, closes, 9, 3, 3)
	for i := 8; i < n; i++ {
		if math.IsNaN(kdj.K[i]) || math.IsNaN(kdj.D[i]) || math.IsNaN(kdj.J[i]) {
			t.Fatalf("KDJ should be defined by index %d", i)
		}
	}
}

func TestDeterministicRepeat(t *testing.T) {
	values := seqCloses(50)
	a := RSI(values, 14)
	b := RSI(values, 14)
	for i := range a {
		if math.IsNaN(a[i]) != math.IsNaN(b[i]) {
			t.Fatal("RSI should be deterministic across calls")
		}
		if !math.IsNaN(a[i]) && a[i] != b[i] {
			t.Fatal("RSI should be deterministic across calls")
		}
	}
}
