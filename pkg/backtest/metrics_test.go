package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gushen/quant-core/internal/ledger"
	"github.com/gushen/quant-core/pkg/kline"
	"github.com/gushen/quant-core/pkg/money"
)

func curveFrom(values []float64) []EquityPoint {
	points := make([]EquityPoint, len(values))
	for i, v := range values {
		points[i] = EquityPoint{T: int64(i) * 86400, Equity: v}
	}
	return points
}

// TestComputeReturnMetricsDrawdownScenario pins down the literal S5 scenario:
// equity curve [100, 120, 90, 110] must yield a 25% max drawdown reached one
// bar after the peak, and a 10% final return.
func TestComputeReturnMetricsDrawdownScenario(t *testing.T) {
	curve := curveFrom([]float64{100, 120, 90, 110})
	m := computeReturnMetrics(curve, 100, 0, nil)

	assert.InDelta(t, 0.10, m.TotalReturn, 1e-9)
	assert.InDelta(t, 25.0, m.MaxDrawdown, 1e-9)
	assert.Equal(t, 1, m.MaxDrawdownDuration)
}

func TestComputeReturnMetricsEmptyCurveIsZeroValue(t *testing.T) {
	m := computeReturnMetrics(nil, 100, 0, nil)
	assert.Equal(t, ReturnMetrics{}, m)
}

func TestComputeReturnMetricsNoDrawdownOnMonotonicRise(t *testing.T) {
	curve := curveFrom([]float64{100, 105, 110, 115, 120})
	m := computeReturnMetrics(curve, 100, 0, nil)

	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.Equal(t, 0, m.MaxDrawdownDuration)
	assert.Greater(t, m.SharpeRatio, 0.0)
}

func TestComputeReturnMetricsDrawdownDurationResetsOnRecoveryStep(t *testing.T) {
	// Two separate one-bar declines, separated by a new high: the longest
	// run must still be 1, not the sum of both declines.
	curve := curveFrom([]float64{100, 90, 130, 100, 140})
	m := computeReturnMetrics(curve, 100, 0, nil)

	assert.Equal(t, 1, m.MaxDrawdownDuration)
}

func TestComputeReturnMetricsSortinoIsZeroWithNoDownsideDeviation(t *testing.T) {
	// Every bar gains, by varying amounts: Sharpe reacts to that volatility,
	// but Sortino's downside deviation is zero with no losing day, so it
	// stays at its zero value rather than computing a div-by-zero ratio.
	curve := curveFrom([]float64{100, 105, 115, 120, 135})
	m := computeReturnMetrics(curve, 100, 0, nil)

	assert.NotEqual(t, 0.0, m.SharpeRatio)
	assert.Equal(t, 0.0, m.SortinoRatio)
}

func TestComputeReturnMetricsCalmarMatchesAnnualizedOverDrawdown(t *testing.T) {
	curve := curveFrom([]float64{100, 120, 90, 110})
	m := computeReturnMetrics(curve, 100, 0, nil)

	require.Greater(t, m.MaxDrawdown, 0.0)
	assert.InDelta(t, m.AnnualizedReturn/(m.MaxDrawdown/100), m.CalmarRatio, 1e-9)
}

func TestComputeReturnMetricsAlphaOmittedOnBenchmarkLengthMismatch(t *testing.T) {
	curve := curveFrom([]float64{100, 101, 102, 103})
	m := computeReturnMetrics(curve, 100, 0, []float64{0.01})
	assert.Nil(t, m.Alpha)
}

func TestComputeReturnMetricsAlphaPresentWhenBenchmarkAligned(t *testing.T) {
	curve := curveFrom([]float64{100, 101, 102, 103})
	benchmark := []float64{0.01, 0.01, 0.01}
	m := computeReturnMetrics(curve, 100, 0, benchmark)
	assert.NotNil(t, m.Alpha)
}

func TestRegressionAlphaZeroBenchmarkVarianceReturnsZero(t *testing.T) {
	y := []float64{0.01, 0.02, 0.03}
	x := []float64{0, 0, 0} // zero variance: beta is undefined, alpha defaults to 0
	assert.Equal(t, 0.0, regressionAlpha(y, x))
}

func TestRegressionAlphaMatchesOLSIntercept(t *testing.T) {
	// y = 2x + 0.01 exactly, for every point: the regression recovers the
	// intercept exactly regardless of beta.
	x := []float64{0.01, 0.02, 0.03, 0.04}
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = 2*xi + 0.01
	}
	assert.InDelta(t, 0.01, regressionAlpha(y, x), 1e-9)
}

func closedTradeEvent(positionID string, openedAt, closedAt int64, realizedPnL string) []ledger.TradeEvent {
	return []ledger.TradeEvent{
		{Type: ledger.EventPositionOpened, Timestamp: openedAt, PositionID: positionID},
		{Type: ledger.EventPositionClosed, Timestamp: closedAt, PositionID: positionID,
			Data: map[string]any{"realizedPnL": realizedPnL}},
	}
}

func TestComputeTradingMetricsMapsLargestWinAndLoss(t *testing.T) {
	risk := ledger.RiskMetrics{
		TotalTrades: 2, WinningTrades: 1, LosingTrades: 1,
		LargestWin:  mustMoney(t, "500.00"),
		LargestLoss: mustMoney(t, "200.00"),
	}
	tm := computeTradingMetrics(risk, nil, 10)
	assert.Equal(t, 500.0, tm.MaxSingleWin)
	assert.Equal(t, 200.0, tm.MaxSingleLoss)
}

func TestComputeTradingMetricsAvgHoldingDaysFromEventPairs(t *testing.T) {
	var events []ledger.TradeEvent
	events = append(events, closedTradeEvent("p1", 0, 2*86400, "100.00")...)
	events = append(events, closedTradeEvent("p2", 2*86400, 6*86400, "100.00")...)

	tm := computeTradingMetrics(ledger.RiskMetrics{TotalTrades: 2}, events, 10)
	assert.InDelta(t, 3.0, tm.AvgHoldingDays, 1e-9) // (2 + 4) / 2
}

func TestComputeTradingMetricsConsecutiveWinLossStreaks(t *testing.T) {
	var events []ledger.TradeEvent
	events = append(events, closedTradeEvent("p1", 0, 86400, "100.00")...)  // win
	events = append(events, closedTradeEvent("p2", 86400, 2*86400, "50.00")...) // win
	events = append(events, closedTradeEvent("p3", 2*86400, 3*86400, "-20.00")...) // loss
	events = append(events, closedTradeEvent("p4", 3*86400, 4*86400, "-10.00")...) // loss
	events = append(events, closedTradeEvent("p5", 4*86400, 5*86400, "-5.00")...)  // loss

	tm := computeTradingMetrics(ledger.RiskMetrics{TotalTrades: 5}, events, 10)
	assert.Equal(t, 2, tm.MaxConsecutiveWins)
	assert.Equal(t, 3, tm.MaxConsecutiveLosses)
}

func TestComputeTradingMetricsTradingFrequencyNormalizesByElapsedDays(t *testing.T) {
	tm := computeTradingMetrics(ledger.RiskMetrics{TotalTrades: 10}, nil, 5)
	assert.InDelta(t, 2.0, tm.TradingFrequency, 1e-9)
}

func TestComputeTradingMetricsZeroElapsedDaysYieldsZeroFrequency(t *testing.T) {
	tm := computeTradingMetrics(ledger.RiskMetrics{TotalTrades: 10}, nil, 0)
	assert.Equal(t, 0.0, tm.TradingFrequency)
}

func mustMoney(t *testing.T, s string) money.Money {
	t.Helper()
	m, err := money.FromString(money.Amount, s)
	require.NoError(t, err)
	return m
}

func TestComputeDataQualityReportsFullCoverageForGaplessSeries(t *testing.T) {
	bars := make([]kline.Bar, 30)
	for i := range bars {
		c := 10.0 + float64(i)*0.01
		bars[i] = kline.Bar{T: int64(i) * 86400, Open: c, High: c + 0.1, Low: c - 0.1, Close: c, Volume: 1000, Amount: c * 1000}
	}
	series, gerr := kline.New("600000.SH", kline.Timeframe1Day, kline.DefaultInstrument("600000.SH"), bars)
	require.Nil(t, gerr)

	dq := computeDataQuality(series)
	assert.InDelta(t, 1.0, dq.Coverage, 1e-9)
	assert.Empty(t, dq.MissingBarDates)
}
