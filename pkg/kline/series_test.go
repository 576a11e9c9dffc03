package kline

import "testing"

func makeBars(n int) []Bar {
	bars := make([]Bar, n)
	for i := 0; i < n; i++ {
		c := 10.0 + float64(i)*0.1
		bars[i] = Bar{T: int64(i) * 86400, Open: c, High: c + 0.1, Low: c - 0.1, Close: c, Volume: 1000}
	}
	return bars
}

func TestNewRejectsBadBar(t *testing.T) {
	bars := makeBars(3)
	bars[1].High = bars[1].Low - 1 // low > high violation
	if _, err := New("000001.SZ", Timeframe1Day, DefaultInstrument("000001.SZ"), bars); err == nil {
		t.Fatal("expected invariant violation error")
	}
}

func TestNewRejectsNonMonotonicTime(t *testing.T) {
	bars := makeBars(3)
	bars[2].T = bars[0].T
	if _, err := New("000001.SZ", Timeframe1Day, DefaultInstrument("000001.SZ"), bars); err == nil {
		t.Fatal("expected strictly-increasing-time error")
	}
}

func TestColumnsMatchLength(t *testing.T) {
	s, err := New("000001.SZ", Timeframe1Day, DefaultInstrument("000001.SZ"), makeBars(10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(s.Closes()) != 10 || len(s.Highs()) != 10 || len(s.Lows()) != 10 || len(s.Volumes()) != 10 {
		t.Fatal("column views must match series length")
	}
}

func TestDetectGaps(t *testing.T) {
	bars := makeBars(5)
	// introduce a 3-day gap between bar 2 and 3
	for i := 3; i < len(bars); i++ {
		bars[i].T += 2 * 86400
	}
	s, err := New("000001.SZ", Timeframe1Day, DefaultInstrument("000001.SZ"), bars)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gaps := s.DetectGaps()
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	if gaps[0].MissingBars != 2 {
		t.Fatalf("expected 2 missing bars, got %d", gaps[0].MissingBars)
	}
}

func TestPriceLimitsMainBoard(t *testing.T) {
	inst := DefaultInstrument("600000.SH")
	upper, lower := PriceLimits(inst, 10.00)
	if upper != 11.00 || lower != 9.00 {
		t.Fatalf("got upper=%v lower=%v, want 11.00/9.00", upper, lower)
	}
}

func TestPriceLimitsST(t *testing.T) {
	inst := DefaultInstrument("600000.SH")
	inst.IsST = true
	upper, lower := PriceLimits(inst, 10.00)
	if upper != 10.50 || lower != 9.50 {
		t.Fatalf("got upper=%v lower=%v, want 10.50/9.50", upper, lower)
	}
}

func TestPriceLimitsSTAR(t *testing.T) {
	inst := DefaultInstrument("688000.SH")
	inst.Board = BoardSTAR
	upper, lower := PriceLimits(inst, 10.00)
	if upper != 12.00 || lower != 8.00 {
		t.Fatalf("got upper=%v lower=%v, want 12.00/8.00", upper, lower)
	}
}

func TestIsLimitUpDown(t *testing.T) {
	inst := DefaultInstrument("600000.SH")
	bars := []Bar{
		{T: 0, Open: 10, High: 10.1, Low: 9.9, Close: 10.00, Volume: 1000},
		{T: 86400, Open: 11, High: 11, Low: 11, Close: 11.00, Volume: 0},
	}
	s, err := New("600000.SH", Timeframe1Day, inst, bars)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !s.IsLimitUp(1) {
		t.Fatal("bar 1 should be limit-up")
	}
	if !s.IsSuspended(1) {
		t.Fatal("bar 1 should be suspended (volume=0)")
	}
}

func TestDetectAnomalies(t *testing.T) {
	bars := makeBars(5)
	bars[3].Close = bars[2].Close * 2 // >25% single bar jump
	bars[3].High = bars[3].Close + 0.1
	bars[3].Low = bars[2].Close - 0.1
	bars[3].Open = bars[2].Close
	s, err := New("000001.SZ", Timeframe1Day, DefaultInstrument("000001.SZ"), bars)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	anomalies := s.DetectAnomalies()
	found := false
	for _, a := range anomalies {
		if a.Kind == AnomalySingleBarReturn && a.Index == 3 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected single-bar-return anomaly at index 3")
	}
}
