// Backtest Runner CLI
// Replays a k-line series from a CSV file through BacktestEngine and prints
// the resulting return/risk/trading metrics.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	gushenconfig "github.com/gushen/quant-core/internal/config"
	"github.com/gushen/quant-core/internal/diagnostics"
	"github.com/gushen/quant-core/internal/risk"
	"github.com/gushen/quant-core/pkg/backtest"
	"github.com/gushen/quant-core/pkg/kline"
)

var (
	symbol       = flag.String("symbol", "", "Instrument symbol (required)")
	dataPath     = flag.String("data", "", "Path to a CSV file of bars: timestamp,open,high,low,close,volume (required)")
	strategyID   = flag.String("strategy", "ma_golden_cross", "Signal-scanner detector id")
	startDate    = flag.String("start", "", "Start date (YYYY-MM-DD), inclusive; empty means the CSV's earliest bar")
	endDate      = flag.String("end", "", "End date (YYYY-MM-DD), inclusive; empty means the CSV's latest bar")
	capital      = flag.Float64("capital", 1_000_000, "Initial capital")
	commission   = flag.Float64("commission", 0.0003, "Commission rate")
	riskProfile  = flag.String("risk-profile", "moderate", "Risk profile: conservative, moderate, aggressive")
	sameBarFill  = flag.Bool("same-bar-fill", false, "Fill orders against the signal bar's own close instead of the next bar's open")
	verbose      = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	gushenconfig.InitLogger(gushenconfig.LoggerConfig{Level: zerolog.GlobalLevel().String(), Format: "console"})

	if *symbol == "" || *dataPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -symbol and -data are required")
		flag.Usage()
		os.Exit(1)
	}

	bars, err := loadBarsCSV(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dataPath).Msg("failed to load bars")
	}
	bars, err = filterDateRange(bars, *startDate, *endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid date range")
	}
	if len(bars) == 0 {
		log.Fatal().Str("path", *dataPath).Msg("no bars in the requested range")
	}

	series, gerr := kline.New(*symbol, kline.Timeframe1Day, kline.DefaultInstrument(*symbol), bars)
	if gerr != nil {
		log.Fatal().Err(gerr).Msg("failed to build k-line series")
	}

	profile := risk.Profile(*riskProfile)
	limits := risk.BundledLimits(profile)
	manager := risk.NewManager(limits)
	manager.SetOnRiskAlert(func(check risk.RiskCheck) {
		log.Warn().Str("rule", check.Rule).Str("message", check.Message).Msg("risk alert")
	})

	cfg := backtest.Config{
		Symbol:           *symbol,
		StartTime:        time.Unix(bars[0].T, 0),
		EndTime:          time.Unix(bars[len(bars)-1].T, 0),
		InitialCapital:   *capital,
		CommissionRate:   *commission,
		StampDutyRate:    0.001,
		TransferFeeRate:  0.00002,
		LotSize:          100,
		HoldingDays:      5,
		SignalSource:     backtest.SignalSource{StrategyID: *strategyID},
		SameBarFill:      *sameBarFill,
		ReportEveryNBars: 50,
		RiskLimits:       limits,
	}

	engine, gerr := backtest.NewEngine(cfg, series, manager)
	if gerr != nil {
		log.Fatal().Err(gerr).Msg("failed to construct backtest engine")
	}

	log.Info().Str("symbol", *symbol).Int("bars", series.Length()).Str("strategy", *strategyID).Msg("starting backtest")

	result, gerr := engine.Run(context.Background(), func(p backtest.Progress) bool {
		log.Debug().Int("bar", p.BarIndex).Int("total", p.TotalBars).Float64("equity", p.Equity).Msg("progress")
		return false
	})
	if gerr != nil {
		log.Fatal().Err(gerr).Msg("backtest run failed")
	}

	printReport(result)

	report := diagnostics.Generate(result, time.Now().Unix())
	printDiagnostics(report)
}

func printReport(r *backtest.Result) {
	fmt.Printf("Symbol:              %s\n", r.Symbol)
	fmt.Printf("Initial Equity:      %.2f\n", r.InitialEquity)
	fmt.Printf("Final Equity:        %.2f\n", r.FinalEquity)
	fmt.Printf("Total Return:        %.2f%%\n", r.Returns.TotalReturn*100)
	fmt.Printf("Annualized Return:   %.2f%%\n", r.Returns.AnnualizedReturn*100)
	fmt.Printf("Max Drawdown:        %.2f%%\n", r.Returns.MaxDrawdown)
	fmt.Printf("Sharpe Ratio:        %.2f\n", r.Returns.SharpeRatio)
	fmt.Printf("Sortino Ratio:       %.2f\n", r.Returns.SortinoRatio)
	fmt.Printf("Calmar Ratio:        %.2f\n", r.Returns.CalmarRatio)
	fmt.Printf("Total Trades:        %d\n", r.Trading.TotalTrades)
	fmt.Printf("Win Rate:            %.2f%%\n", r.Trading.WinRate)
	fmt.Printf("Profit Factor:       %.2f\n", r.Trading.ProfitFactor)
	fmt.Printf("Data Coverage:       %.2f%%\n", r.DataQuality.Coverage*100)
	if r.Cancelled {
		fmt.Println("Run was cancelled before reaching the end of the series.")
	}
}

func printDiagnostics(r diagnostics.Report) {
	fmt.Printf("\nOverall Score:       %.0f/100\n", r.OverallScore)
	fmt.Printf("Risk Level:          %s\n", r.RiskLevel)
	for _, issue := range r.Issues {
		fmt.Printf("[%s] %s: %s (%s)\n", issue.Severity, issue.RuleID, issue.Message, issue.Value)
	}
	for _, h := range r.Highlights {
		fmt.Printf("[highlight] %s: %s (%s)\n", h.RuleID, h.Message, h.Value)
	}
}

// loadBarsCSV reads "timestamp,open,high,low,close,volume" rows, epoch
// seconds in the first column.
func loadBarsCSV(path string) ([]kline.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var bars []kline.Bar
	lineNo := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", lineNo, err)
		}
		lineNo++
		if lineNo == 1 && !isNumeric(record[0]) {
			continue // header row
		}
		if len(record) < 6 {
			return nil, fmt.Errorf("csv: line %d: expected 6 fields, got %d", lineNo, len(record))
		}
		bar, err := parseBarRecord(record)
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", lineNo, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRecord(record []string) (kline.Bar, error) {
	t, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return kline.Bar{}, fmt.Errorf("timestamp: %w", err)
	}
	open, err := strconv.ParseFloat(record[1], 64)
	if err != nil {
		return kline.Bar{}, fmt.Errorf("open: %w", err)
	}
	high, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return kline.Bar{}, fmt.Errorf("high: %w", err)
	}
	low, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return kline.Bar{}, fmt.Errorf("low: %w", err)
	}
	closePrice, err := strconv.ParseFloat(record[4], 64)
	if err != nil {
		return kline.Bar{}, fmt.Errorf("close: %w", err)
	}
	volume, err := strconv.ParseFloat(record[5], 64)
	if err != nil {
		return kline.Bar{}, fmt.Errorf("volume: %w", err)
	}
	return kline.Bar{T: t, Open: open, High: high, Low: low, Close: closePrice, Volume: volume}, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// filterDateRange trims bars to [start, end] when either bound is given
// (YYYY-MM-DD); an empty bound leaves that side unbounded.
func filterDateRange(bars []kline.Bar, start, end string) ([]kline.Bar, error) {
	if start == "" && end == "" {
		return bars, nil
	}
	var startT, endT int64 = 0, 1<<62
	if start != "" {
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		startT = t.Unix()
	}
	if end != "" {
		t, err := time.Parse("2006-01-02", end)
		if err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}
		endT = t.AddDate(0, 0, 1).Unix() - 1
	}
	out := make([]kline.Bar, 0, len(bars))
	for _, b := range bars {
		if b.T >= startT && b.T <= endT {
			out = append(out, b)
		}
	}
	return out, nil
}
