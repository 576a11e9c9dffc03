package backtest

import (
	"math"
	"time"

	"github.com/gushen/quant-core/internal/ledger"
	"github.com/gushen/quant-core/pkg/kline"
	"github.com/gushen/quant-core/pkg/money"
)

const tradingDaysPerYear = 252

// EquityPoint is one entry of the engine's equity curve (spec §4.8 step 5).
type EquityPoint struct {
	T      int64
	Equity float64
}

// ReturnMetrics is spec §4.8's return-side result computation.
type ReturnMetrics struct {
	TotalReturn       float64
	AnnualizedReturn  float64
	MonthlyReturns    map[string]float64 // "2026-07" -> return pct
	ReturnVolatility  float64
	MaxDrawdown       float64
	MaxDrawdownDuration int
	SharpeRatio       float64
	SortinoRatio      float64
	CalmarRatio       float64
	Alpha             *float64
}

// TradingMetrics summarizes closed-trade statistics (spec §4.8).
type TradingMetrics struct {
	TotalTrades          int
	WinningTrades        int
	LosingTrades         int
	WinRate              float64
	ProfitFactor         float64
	AvgWin               float64
	AvgLoss              float64
	AvgHoldingDays       float64
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	MaxSingleWin         float64
	MaxSingleLoss        float64
	TradingFrequency     float64 // closed trades per elapsed day
}

// DataQuality reports series completeness (spec §4.8).
type DataQuality struct {
	Coverage          float64
	MissingBarDates   []int64
	PriceAnomalyDates []int64
}

// Result is the BacktestEngine's top-level output (spec §4.8).
type Result struct {
	Symbol        string
	InitialEquity float64
	FinalEquity   float64
	EquityCurve   []EquityPoint
	Returns       ReturnMetrics
	Trading       TradingMetrics
	DataQuality   DataQuality
	Cancelled     bool

	// Events is the full ledger event log for the run, carried through so a
	// caller can reconstruct or audit the run without re-executing it.
	Events []ledger.TradeEvent
	// ConfigEcho is the Config the run was executed with, for reproducing
	// or diffing the run later.
	ConfigEcho Config
}

func dailyReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (curve[i].Equity-prev)/prev)
	}
	return out
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func downsideStddev(values []float64) float64 {
	var downside []float64
	for _, v := range values {
		if v < 0 {
			downside = append(downside, v)
		}
	}
	return stddev(downside)
}

// drawdownStats returns maxDrawdown (percent, peak to lowest-so-far) and
// maxDrawdownDuration: the longest run of consecutive bars setting a new
// low since the last peak (spec §4.8 S5 scenario). A bar that arrests the
// decline (equity rises from the prior bar) ends the run even if the bar is
// still below the running peak, since the drawdown is no longer deepening;
// a new peak also ends it.
func drawdownStats(curve []EquityPoint) (maxDD float64, maxDDRun int) {
	peak := curve[0].Equity
	troughSincePeak := curve[0].Equity
	var run int
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
			troughSincePeak = p.Equity
			run = 0
			continue
		}
		if p.Equity < troughSincePeak {
			troughSincePeak = p.Equity
			run++
		} else {
			run = 0
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
		if run > maxDDRun {
			maxDDRun = run
		}
	}
	return maxDD, maxDDRun
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeReturnMetrics implements spec §4.8's "Result computation" return
// section.
func computeReturnMetrics(curve []EquityPoint, initialCapital float64, riskFreeRate float64, benchmarkDailyReturns []float64) ReturnMetrics {
	var m ReturnMetrics
	if len(curve) == 0 {
		return m
	}
	finalEquity := curve[len(curve)-1].Equity
	m.TotalReturn = (finalEquity - initialCapital) / initialCapital

	elapsedDays := 1.0
	if len(curve) > 1 {
		elapsedSeconds := curve[len(curve)-1].T - curve[0].T
		elapsedDays = float64(elapsedSeconds) / 86400
		if elapsedDays < 1 {
			elapsedDays = 1
		}
	}
	m.AnnualizedReturn = math.Pow(1+m.TotalReturn, 365/elapsedDays) - 1

	m.MonthlyReturns = monthlyReturns(curve)

	rets := dailyReturns(curve)
	m.ReturnVolatility = stddev(rets) * math.Sqrt(tradingDaysPerYear)

	maxDD, maxDDRun := drawdownStats(curve)
	m.MaxDrawdown = maxDD
	m.MaxDrawdownDuration = maxDDRun

	sd := stddev(rets)
	if sd > 0 {
		m.SharpeRatio = (mean(rets) - riskFreeRate) / sd * math.Sqrt(tradingDaysPerYear)
	}
	dsd := downsideStddev(rets)
	if dsd > 0 {
		m.SortinoRatio = (mean(rets) - riskFreeRate) / dsd * math.Sqrt(tradingDaysPerYear)
	}
	if maxDD > 0 {
		m.CalmarRatio = m.AnnualizedReturn / (maxDD / 100)
	}

	if len(benchmarkDailyReturns) == len(rets) && len(rets) > 1 {
		alpha := regressionAlpha(rets, benchmarkDailyReturns)
		annualizedAlpha := alpha * tradingDaysPerYear
		m.Alpha = &annualizedAlpha
	}

	return m
}

func monthlyReturns(curve []EquityPoint) map[string]float64 {
	out := map[string]float64{}
	firstOfMonth := map[string]float64{}
	for _, p := range curve {
		key := time.Unix(p.T, 0).UTC().Format("2006-01")
		if _, ok := firstOfMonth[key]; !ok {
			firstOfMonth[key] = p.Equity
		}
		out[key] = (p.Equity - firstOfMonth[key]) / firstOfMonth[key] * 100
	}
	return out
}

// regressionAlpha returns the intercept of a simple OLS regression of
// dailyReturn on benchmarkDailyReturn (spec §4.8 "alpha optional").
func regressionAlpha(y, x []float64) float64 {
	n := float64(len(y))
	if n == 0 {
		return 0
	}
	meanX, meanY := mean(x), mean(y)
	var covXY, varX float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		covXY += dx * dy
		varX += dx * dx
	}
	if varX == 0 {
		return 0
	}
	beta := covXY / varX
	return meanY - beta*meanX
}

// computeTradingMetrics projects ledger.RiskMetrics (closed-trade stats)
// into the engine's TradingMetrics shape, supplementing it with figures that
// require walking the raw event log directly: holding duration and win/loss
// streaks pair each POSITION_CLOSED event back to its POSITION_OPENED event
// by PositionID; tradingFrequency normalizes trade count against the run's
// elapsed calendar days.
func computeTradingMetrics(r ledger.RiskMetrics, events []ledger.TradeEvent, elapsedDays float64) TradingMetrics {
	openedAt := make(map[string]int64)
	var holdingDays []float64
	var wins []bool

	for _, ev := range events {
		switch ev.Type {
		case ledger.EventPositionOpened:
			openedAt[ev.PositionID] = ev.Timestamp
		case ledger.EventPositionClosed:
			if opened, ok := openedAt[ev.PositionID]; ok {
				holdingDays = append(holdingDays, float64(ev.Timestamp-opened)/86400)
			}
			if raw, ok := ev.Data["realizedPnL"]; ok {
				if s, ok := raw.(string); ok {
					if pnl, err := money.FromString(money.Amount, s); err == nil {
						wins = append(wins, pnl.IsPositive())
					}
				}
			}
		}
	}

	var avgHoldingDays float64
	if len(holdingDays) > 0 {
		var sum float64
		for _, d := range holdingDays {
			sum += d
		}
		avgHoldingDays = sum / float64(len(holdingDays))
	}

	var maxConsecWins, maxConsecLosses, curWin, curLoss int
	for _, win := range wins {
		if win {
			curWin++
			curLoss = 0
		} else {
			curLoss++
			curWin = 0
		}
		if curWin > maxConsecWins {
			maxConsecWins = curWin
		}
		if curLoss > maxConsecLosses {
			maxConsecLosses = curLoss
		}
	}

	var tradingFrequency float64
	if elapsedDays > 0 {
		tradingFrequency = float64(r.TotalTrades) / elapsedDays
	}

	return TradingMetrics{
		TotalTrades:          r.TotalTrades,
		WinningTrades:        r.WinningTrades,
		LosingTrades:         r.LosingTrades,
		WinRate:              r.WinRate,
		ProfitFactor:         r.ProfitFactor,
		AvgWin:               r.AvgWin.ToFloat64(),
		AvgLoss:              r.AvgLoss.ToFloat64(),
		AvgHoldingDays:       avgHoldingDays,
		MaxConsecutiveWins:   maxConsecWins,
		MaxConsecutiveLosses: maxConsecLosses,
		MaxSingleWin:         r.LargestWin.ToFloat64(),
		MaxSingleLoss:        r.LargestLoss.ToFloat64(),
		TradingFrequency:     tradingFrequency,
	}
}

// computeDataQuality derives coverage and anomaly annotations from the
// series' own gap/anomaly detectors (spec §4.8 "dataQuality").
func computeDataQuality(series *kline.Series) DataQuality {
	gaps := series.DetectGaps()
	anomalies := series.DetectAnomalies()

	var missingBars int
	missingDates := make([]int64, 0)
	for _, g := range gaps {
		missingBars += g.MissingBars
		missingDates = append(missingDates, g.FromT)
	}
	expected := series.Length() + missingBars
	coverage := 1.0
	if expected > 0 {
		coverage = float64(series.Length()) / float64(expected)
	}

	anomalyDates := make([]int64, 0, len(anomalies))
	for _, a := range anomalies {
		anomalyDates = append(anomalyDates, a.T)
	}

	return DataQuality{Coverage: coverage, MissingBarDates: missingDates, PriceAnomalyDates: anomalyDates}
}
