package scanner

import (
	"testing"

	"github.com/gushen/quant-core/internal/config"
	"github.com/gushen/quant-core/pkg/kline"
)

func buildSeries(t *testing.T, closes []float64) *kline.Series {
	t.Helper()
	bars := make([]kline.Bar, len(closes))
	for i, c := range closes {
		bars[i] = kline.Bar{T: int64(i) * 86400, Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1000, Amount: c * 1000}
	}
	s, gerr := kline.New("600000.SH", kline.Timeframe1Day, kline.DefaultInstrument("600000.SH"), bars)
	if gerr != nil {
		t.Fatalf("failed to build series: %v", gerr)
	}
	return s
}

func buildSeriesWithVolumes(t *testing.T, closes []float64, volumeOverrides map[int]float64) *kline.Series {
	t.Helper()
	bars := make([]kline.Bar, len(closes))
	for i, c := range closes {
		vol := 1000.0
		if v, ok := volumeOverrides[i]; ok {
			vol = v
		}
		bars[i] = kline.Bar{T: int64(i) * 86400, Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: vol, Amount: c * vol}
	}
	s, gerr := kline.New("600000.SH", kline.Timeframe1Day, kline.DefaultInstrument("600000.SH"), bars)
	if gerr != nil {
		t.Fatalf("failed to build series: %v", gerr)
	}
	return s
}

func risingThenFlat(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 10 + float64(i)*0.1
	}
	return closes
}

func TestScanEmptySeriesBelowWarmupReturnsNoSignals(t *testing.T) {
	sc := New()
	closes := risingThenFlat(10)
	series := buildSeries(t, closes)
	result := sc.Scan(series, "ma_golden_cross", Options{HoldingDays: 5})
	if result.TotalSignals != 0 {
		t.Fatalf("expected 0 signals for a too-short series, got %d", result.TotalSignals)
	}
	if result.Error != "" {
		t.Fatalf("short series should not be an error, got %q", result.Error)
	}
}

func TestScanUnknownStrategyReturnsErrorAnnotation(t *testing.T) {
	sc := New()
	series := buildSeries(t, risingThenFlat(100))
	result := sc.Scan(series, "does_not_exist", Options{HoldingDays: 5})
	if result.Error == "" {
		t.Fatal("expected an error annotation for an unknown strategy")
	}
}

func TestScanIsDeterministic(t *testing.T) {
	sc := New()
	closes := make([]float64, 120)
	for i := range closes {
		// oscillate to produce crossovers
		if i%20 < 10 {
			closes[i] = 10 + float64(i%20)*0.3
		} else {
			closes[i] = 13 - float64(i%20-10)*0.3
		}
	}
	series := buildSeries(t, closes)
	opts := Options{HoldingDays: 5}
	r1 := sc.Scan(series, "ma_golden_cross", opts)
	r2 := sc.Scan(series, "ma_golden_cross", opts)
	if r1.TotalSignals != r2.TotalSignals {
		t.Fatalf("scan should be deterministic: got %d then %d signals", r1.TotalSignals, r2.TotalSignals)
	}
	for i := range r1.Signals {
		if r1.Signals[i].EntryBarIndex != r2.Signals[i].EntryBarIndex {
			t.Fatalf("signal %d entry index differs across runs", i)
		}
	}
}

func TestScanSuspendedExitSubstitutesLastNonSuspendedClose(t *testing.T) {
	sc := New()
	closes := make([]float64, 120)
	for i := range closes {
		if i%20 < 10 {
			closes[i] = 10 + float64(i%20)*0.3
		} else {
			closes[i] = 13 - float64(i%20-10)*0.3
		}
	}
	baseline := buildSeries(t, closes)
	result := sc.Scan(baseline, "ma_golden_cross", Options{HoldingDays: 5, DetectMarketStatus: true})
	if result.TotalSignals == 0 {
		t.Fatal("expected at least one signal from the oscillating series")
	}
	sig := result.Signals[0]
	exitIdx := sig.ExitBarIndex
	wantExitPrice := closes[exitIdx-1]

	suspended := buildSeriesWithVolumes(t, closes, map[int]float64{exitIdx: 0})
	suspResult := sc.Scan(suspended, "ma_golden_cross", Options{HoldingDays: 5, DetectMarketStatus: true})

	var found *Signal
	for i := range suspResult.Signals {
		if suspResult.Signals[i].EntryBarIndex == sig.EntryBarIndex {
			found = &suspResult.Signals[i]
			break
		}
	}
	if found == nil {
		t.Fatal("expected the same entry signal to still be present once its exit bar is suspended")
	}
	if found.Status != StatusSuspended {
		t.Fatalf("status = %s, want suspended", found.Status)
	}
	if found.ExitPrice != wantExitPrice {
		t.Fatalf("exit price = %v, want last non-suspended close %v", found.ExitPrice, wantExitPrice)
	}
}

func TestScanStrengthThresholdFiltersSignals(t *testing.T) {
	sc := New()
	closes := make([]float64, 120)
	for i := range closes {
		if i%20 < 10 {
			closes[i] = 10 + float64(i%20)*0.3
		} else {
			closes[i] = 13 - float64(i%20-10)*0.3
		}
	}
	series := buildSeries(t, closes)
	unfiltered := sc.Scan(series, "ma_golden_cross", Options{HoldingDays: 5})
	high := 1000.0
	filtered := sc.Scan(series, "ma_golden_cross", Options{HoldingDays: 5, StrengthThreshold: &config.StrengthThreshold{Max: &high}})
	if filtered.TotalSignals > unfiltered.TotalSignals {
		t.Fatalf("a strength threshold must never increase the signal count")
	}
}

func TestBatchScanContinuesPastFailures(t *testing.T) {
	sc := New()
	good := buildSeries(t, risingThenFlat(120))
	short := buildSeries(t, risingThenFlat(5))

	var progressCalls int
	results := sc.BatchScan([]*kline.Series{good, short}, "ma_golden_cross", Options{HoldingDays: 5}, func(completed, total int) {
		progressCalls++
		if total != 2 {
			t.Fatalf("expected total=2, got %d", total)
		}
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if progressCalls != 2 {
		t.Fatalf("expected progress callback twice, got %d", progressCalls)
	}
}

func TestDeduplicateKeepsStrongestPerGroup(t *testing.T) {
	signals := []Signal{
		{EntryBarIndex: 10, Strength: 1},
		{EntryBarIndex: 11, Strength: 5},
		{EntryBarIndex: 12, Strength: 2},
		{EntryBarIndex: 30, Strength: 3},
	}
	out := deduplicate(signals, config.Deduplication{MinGapDays: 3, KeepStrongest: true})
	if len(out) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(out))
	}
	if out[0].Strength != 5 {
		t.Fatalf("expected strongest signal (5) to survive its group, got %v", out[0].Strength)
	}
}
