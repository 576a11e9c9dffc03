// Package backtest implements BacktestEngine (spec §4.8): a deterministic,
// sequential replay of a KLineSeries against TradingLedger, RiskManager, and
// SignalScanner, producing a BacktestResult of return/risk/trading metrics.
package backtest

import (
	"time"

	"github.com/gushen/quant-core/internal/config"
	"github.com/gushen/quant-core/internal/gushenerr"
	"github.com/gushen/quant-core/internal/ledger"
	"github.com/gushen/quant-core/internal/risk"
	"github.com/gushen/quant-core/internal/scanner"
	"github.com/gushen/quant-core/pkg/kline"
)

// SignalSource is either a detector registry strategy or an externally
// supplied signal list (spec §4.8 "signalSource").
type SignalSource struct {
	StrategyID      string
	ExternalSignals []scanner.Signal
}

// Config is spec §4.8's BacktestEngine configuration surface.
type Config struct {
	Symbol          string
	StartTime       time.Time
	EndTime         time.Time
	InitialCapital  float64
	CommissionRate  float64
	StampDutyRate   float64
	TransferFeeRate float64
	Slippage        config.SlippageConfig
	LotSize         int
	PriceLimitPct   float64
	AllowShortSell  bool
	BenchmarkSymbol string
	HoldingDays     int
	SignalSource    SignalSource
	SameBarFill     bool
	ReportEveryNBars int
	RiskLimits      risk.RiskLimits

	// EntryOrderType selects how signal-driven orders are placed (spec
	// §4.8 step 2): ledger.OrderMarket (the default, "typically market at
	// next bar"), ledger.OrderLimit, or ledger.OrderStop. LimitOffsetPct
	// derives the limit/trigger price from the signal bar's close: a buy
	// limit sits offset below close, a buy stop offset above; a sell limit
	// sits offset above close, a sell stop offset below.
	EntryOrderType ledger.OrderType
	LimitOffsetPct float64
}

// validate runs the spec §4.8 "Preflight validation" required checks.
func (c Config) validate(series *kline.Series) *gushenerr.Error {
	if c.InitialCapital <= 0 {
		return gushenerr.New(gushenerr.CodeInvalidCapital, "initial capital must be positive", gushenerr.SeverityError, true)
	}
	if !c.EndTime.After(c.StartTime) {
		return gushenerr.New(gushenerr.CodeInvalidDateRange, "endTime must be after startTime", gushenerr.SeverityError, true)
	}
	if c.Symbol == "" {
		return gushenerr.New(gushenerr.CodeInvalidSymbol, "symbol is required", gushenerr.SeverityError, true)
	}
	if series == nil || series.Length() == 0 {
		return gushenerr.New(gushenerr.CodeSeriesEmpty, "k-line series must be non-empty", gushenerr.SeverityError, true)
	}
	if series.Timeframe() != kline.Timeframe1Day && c.HoldingDays > 0 {
		// Sub-day timeframes measuring "holding days" in bars is still
		// coherent; only reject timeframes with no fixed bar duration.
		if series.Timeframe().Seconds() == 0 {
			return gushenerr.New(gushenerr.CodeInvalidDateRange, "series timeframe is incompatible with holdingDays", gushenerr.SeverityError, true)
		}
	}
	return nil
}
