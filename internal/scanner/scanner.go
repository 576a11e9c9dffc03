package scanner

import (
	"regexp"
	"sort"

	"github.com/gushen/quant-core/internal/config"
	"github.com/gushen/quant-core/pkg/kline"
)

const defaultWarmupMin = 60

var stNamePattern = regexp.MustCompile(`(?i)^\*?ST`)

// Options configures a single Scan call (spec §4.5, §6 scanner.*).
type Options struct {
	HoldingDays        int
	ExcludeST          bool
	MinListingDays     int
	DetectMarketStatus bool
	TransactionCosts   *config.TransactionCosts
	StrengthThreshold  *config.StrengthThreshold
	Deduplication      *config.Deduplication
}

// ScanResult is spec §4.5's {signals[], aggregate stats}.
type ScanResult struct {
	Symbol        string
	Signals       []Signal
	TotalSignals  int
	WinSignals    int
	WinRate       float64
	AvgReturn     float64
	MaxReturn     float64
	MinReturn     float64
	StatusCounts  map[SignalStatus]int
	Error         string // non-empty for the error-annotation case (spec §4.5 "Cross-stock scan")
}

// Scanner runs the detector registry over a series (spec §4.5).
type Scanner struct {
	registry map[string]Detector
}

// New builds a Scanner with the built-in detector registry.
func New() *Scanner {
	return &Scanner{registry: Registry()}
}

// Scan implements the full spec §4.5 algorithm for one series/strategy.
func (sc *Scanner) Scan(series *kline.Series, strategyID string, opts Options) ScanResult {
	result := ScanResult{Symbol: series.Symbol(), StatusCounts: map[SignalStatus]int{}}

	detector, ok := sc.registry[strategyID]
	if !ok {
		result.Error = "unknown strategy: " + strategyID
		return result
	}

	holdingDays := opts.HoldingDays
	if holdingDays <= 0 {
		holdingDays = 5
	}

	warmupMin := defaultWarmupMin
	if detector.WarmupMin() < warmupMin {
		warmupMin = detector.WarmupMin()
	}

	n := series.Length()
	if n < warmupMin+holdingDays {
		return result
	}

	inst := series.Instrument()
	if opts.ExcludeST && (inst.IsST || stNamePattern.MatchString(inst.DisplayName)) {
		return result
	}
	if opts.MinListingDays > 0 {
		firstBarT := series.At(0).T
		listingDays := int((firstBarT - inst.ListingDate) / 86400)
		if listingDays < opts.MinListingDays {
			return result
		}
	}

	ind := ComputeIndicators(series)
	closes := series.Closes()

	signals := make([]Signal, 0)
	for i := warmupMin; i <= n-1-holdingDays; i++ {
		proto := detector.Detect(series, ind, i)
		if proto == nil {
			continue
		}
		exitIdx := i + holdingDays
		sig := Signal{
			Kind:          proto.Kind,
			StrategyID:    strategyID,
			EntryBarIndex: i,
			ExitBarIndex:  exitIdx,
			EntryPrice:    closes[i],
			ExitPrice:     closes[exitIdx],
			Strength:      proto.Strength,
			Status:        StatusCompleted,
		}

		sig.IsLimitUp = series.IsLimitUp(i)
		sig.IsLimitDown = series.IsLimitDown(i)
		sig.IsSuspended = series.IsSuspended(i) || series.IsSuspended(exitIdx)

		if opts.DetectMarketStatus {
			entryLimitUp := series.IsLimitUp(i)
			exitLimitDown := series.IsLimitDown(exitIdx)
			if sig.IsSuspended {
				sig.Status = StatusSuspended
				if series.IsSuspended(exitIdx) {
					sig.ExitPrice = lastNonSuspendedClose(series, closes, exitIdx)
				}
			} else if sig.Kind == KindBuy && entryLimitUp {
				sig.Status = StatusCannotBuy
			} else if sig.Kind == KindSell && exitLimitDown {
				sig.Status = StatusCannotSell
			}
			if sig.Status == StatusCannotBuy || sig.Status == StatusCannotSell {
				continue // excluded from the result set, per spec §4.5 step 4
			}
		}

		sig.GrossReturnPct = grossReturn(sig.Kind, sig.EntryPrice, sig.ExitPrice)
		if opts.TransactionCosts != nil {
			net := netReturn(sig.Kind, sig.EntryPrice, sig.ExitPrice, *opts.TransactionCosts)
			sig.NetReturnPct = &net
		}

		signals = append(signals, sig)
	}

	if opts.StrengthThreshold != nil {
		signals = filterStrength(signals, *opts.StrengthThreshold)
	}

	if opts.Deduplication != nil {
		signals = deduplicate(signals, *opts.Deduplication)
	}

	result.Signals = signals
	result.TotalSignals = len(signals)
	if len(signals) == 0 {
		return result
	}

	var sum, max, min float64
	max = signals[0].GrossReturnPct
	min = signals[0].GrossReturnPct
	for _, s := range signals {
		sum += s.GrossReturnPct
		if s.GrossReturnPct > max {
			max = s.GrossReturnPct
		}
		if s.GrossReturnPct < min {
			min = s.GrossReturnPct
		}
		if s.GrossReturnPct > 0 {
			result.WinSignals++
		}
		result.StatusCounts[s.Status]++
	}
	result.AvgReturn = sum / float64(len(signals))
	result.MaxReturn = max
	result.MinReturn = min
	result.WinRate = float64(result.WinSignals) / float64(len(signals)) * 100

	return result
}

// BatchScan scans N instruments sequentially, reporting (completed, total)
// progress after every instrument via onProgress; a failure scanning one
// instrument yields an empty ScanResult with an error annotation for that
// symbol rather than halting the batch (spec §4.5 "Cross-stock scan").
func (sc *Scanner) BatchScan(seriesList []*kline.Series, strategyID string, opts Options, onProgress func(completed, total int)) []ScanResult {
	results := make([]ScanResult, 0, len(seriesList))
	for idx, series := range seriesList {
		func() {
			defer func() {
				if r := recover(); r != nil {
					results = append(results, ScanResult{Symbol: series.Symbol(), Error: "panic during scan"})
				}
			}()
			results = append(results, sc.Scan(series, strategyID, opts))
		}()
		if onProgress != nil {
			onProgress(idx+1, len(seriesList))
		}
	}
	return results
}

// lastNonSuspendedClose walks backward from a suspended exit bar to the most
// recent bar that was not itself suspended (spec §8 "exit price = last
// non-suspended close"). Falls back to the suspended bar's own close if the
// entire history up to it is suspended.
func lastNonSuspendedClose(series *kline.Series, closes []float64, exitIdx int) float64 {
	for j := exitIdx; j >= 0; j-- {
		if !series.IsSuspended(j) {
			return closes[j]
		}
	}
	return closes[exitIdx]
}

func grossReturn(kind SignalKind, entry, exit float64) float64 {
	if kind == KindSell {
		return (entry - exit) / entry * 100
	}
	return (exit - entry) / entry * 100
}

// netReturn deducts commission, stamp duty (sells only), transfer fee, and
// slippage once per round trip (spec §4.5 step 5).
func netReturn(kind SignalKind, entry, exit float64, costs config.TransactionCosts) float64 {
	gross := grossReturn(kind, entry, exit)
	feesPct := 2*costs.CommissionRate*100 + costs.TransferFeeRate*100 + costs.SlippageBps/100
	feesPct += costs.StampDutyRate * 100 // one leg of a round trip always sells
	return gross - feesPct
}

func filterStrength(signals []Signal, threshold config.StrengthThreshold) []Signal {
	out := make([]Signal, 0, len(signals))
	for _, s := range signals {
		if threshold.Min != nil && s.Strength < *threshold.Min {
			continue
		}
		if threshold.Max != nil && s.Strength > *threshold.Max {
			continue
		}
		out = append(out, s)
	}
	return out
}

// deduplicate partitions signals (already sorted by entry index ascending)
// into groups separated by >= minGapDays and keeps one representative per
// group (spec §4.5 step 7). Bar index is used as a proxy for day count,
// consistent with the daily timeframe the scanner is documented against.
func deduplicate(signals []Signal, dedup config.Deduplication) []Signal {
	if len(signals) == 0 || dedup.MinGapDays <= 0 {
		return signals
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i].EntryBarIndex < signals[j].EntryBarIndex })

	var groups [][]Signal
	current := []Signal{signals[0]}
	for _, s := range signals[1:] {
		last := current[len(current)-1]
		if s.EntryBarIndex-last.EntryBarIndex >= dedup.MinGapDays {
			groups = append(groups, current)
			current = []Signal{s}
		} else {
			current = append(current, s)
		}
	}
	groups = append(groups, current)

	out := make([]Signal, 0, len(groups))
	for _, g := range groups {
		if len(g) == 1 {
			out = append(out, g[0])
			continue
		}
		if dedup.KeepStrongest {
			best := g[0]
			for _, s := range g[1:] {
				if s.Strength > best.Strength {
					best = s
				}
			}
			out = append(out, best)
		} else {
			out = append(out, g[0]) // mergeConsecutive: keep first
		}
	}
	return out
}
