package backtest

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gushen/quant-core/internal/config"
	"github.com/gushen/quant-core/internal/gushenerr"
	"github.com/gushen/quant-core/internal/ledger"
	"github.com/gushen/quant-core/internal/metrics"
	"github.com/gushen/quant-core/internal/risk"
	"github.com/gushen/quant-core/internal/scanner"
	"github.com/gushen/quant-core/pkg/kline"
	"github.com/gushen/quant-core/pkg/money"
)

// Progress is reported to an Observer every ReportEveryNBars (spec §4.8
// step 5), or on the final bar.
type Progress struct {
	BarIndex  int
	TotalBars int
	Equity    float64
}

// Observer is called during Run; returning true cancels the remainder of
// the run (spec §4.8 "cancellation sentinel").
type Observer func(Progress) bool

// Engine is BacktestEngine (spec §4.8): a deterministic, single-symbol,
// sequential replay of a k-line series against a TradingLedger, gated by a
// RiskManager, consuming signals from a SignalScanner strategy or an
// externally supplied signal list.
type Engine struct {
	cfg     Config
	series  *kline.Series
	account *ledger.Account
	riskMgr *risk.Manager
	logger  zerolog.Logger

	signals []scanner.Signal
	pending []pendingOrder
}

// NewEngine validates cfg against series, resolves the signal source (a
// registered detector strategy or an externally supplied list), and
// constructs the ledger the run will mutate. A nil riskMgr builds one from
// cfg.RiskLimits.
func NewEngine(cfg Config, series *kline.Series, riskMgr *risk.Manager) (*Engine, *gushenerr.Error) {
	if err := cfg.validate(series); err != nil {
		return nil, err
	}
	if riskMgr == nil {
		riskMgr = risk.NewManager(cfg.RiskLimits)
	}

	signals, err := resolveSignals(cfg, series)
	if err != nil {
		return nil, err
	}

	initialBalance, merr := money.FromFloatRounded(money.Amount, cfg.InitialCapital)
	if merr != nil {
		return nil, gushenerr.New(gushenerr.CodeInvalidCapital, "initial capital is not a valid amount", gushenerr.SeverityError, true).Wrap(merr)
	}
	minCommission, _ := money.FromFloatRounded(money.Amount, 5)
	account := ledger.New(initialBalance, ledger.CommissionPolicy{Rate: cfg.CommissionRate, MinCommission: minCommission})

	lotSize := cfg.LotSize
	if lotSize <= 0 {
		lotSize = 100
	}
	cfg.LotSize = lotSize

	return &Engine{
		cfg:     cfg,
		series:  series,
		account: account,
		riskMgr: riskMgr,
		logger:  config.NewRunLogger("backtest.engine", uuid.NewString()),
		signals: signals,
	}, nil
}

func resolveSignals(cfg Config, series *kline.Series) ([]scanner.Signal, *gushenerr.Error) {
	var signals []scanner.Signal
	if cfg.SignalSource.StrategyID != "" {
		sc := scanner.New()
		scanStart := time.Now()
		result := sc.Scan(series, cfg.SignalSource.StrategyID, scanner.Options{HoldingDays: cfg.HoldingDays, ExcludeST: true, DetectMarketStatus: true})
		metrics.ObserveScanDuration(cfg.SignalSource.StrategyID, time.Since(scanStart))
		if result.Error != "" {
			return nil, gushenerr.New(gushenerr.CodeUnknownEnum, "signal source strategy: "+result.Error, gushenerr.SeverityError, true)
		}
		signals = result.Signals
	} else {
		signals = append(signals, cfg.SignalSource.ExternalSignals...)
	}
	sort.SliceStable(signals, func(i, j int) bool { return signals[i].EntryBarIndex < signals[j].EntryBarIndex })
	return signals, nil
}

// Account exposes the engine's ledger for callers that need post-run
// inspection beyond the summarized Result (e.g. diagnostics, reporting).
func (e *Engine) Account() *ledger.Account { return e.account }

// Run executes the spec §4.8 per-bar loop to the end of the series (or
// until the observer cancels), then closes out any still-open position and
// computes the final Result.
func (e *Engine) Run(ctx context.Context, observer Observer) (*Result, *gushenerr.Error) {
	n := e.series.Length()
	reportEvery := e.cfg.ReportEveryNBars
	if reportEvery <= 0 {
		reportEvery = 100
	}

	curve := make([]EquityPoint, 0, n)
	sigIdx := 0
	cancelled := false

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		bar := e.series.At(i)

		e.markToMarket(bar)
		e.processPending(i, bar)

		for sigIdx < len(e.signals) && e.signals[sigIdx].EntryBarIndex == i {
			e.consumeSignal(e.signals[sigIdx], i, bar)
			sigIdx++
		}

		equity := e.account.Equity().ToFloat64()
		curve = append(curve, EquityPoint{T: bar.T, Equity: equity})

		if observer != nil && (i%reportEvery == 0 || i == n-1) {
			if observer(Progress{BarIndex: i, TotalBars: n, Equity: equity}) {
				cancelled = true
				break
			}
		}
	}

	e.closeAllPositions()
	if len(curve) > 0 {
		curve[len(curve)-1].Equity = e.account.Equity().ToFloat64()
	}

	elapsedDays := 1.0
	if len(curve) > 1 {
		elapsedDays = float64(curve[len(curve)-1].T-curve[0].T) / 86400
		if elapsedDays < 1 {
			elapsedDays = 1
		}
	}

	result := &Result{
		Symbol:        e.cfg.Symbol,
		InitialEquity: e.cfg.InitialCapital,
		FinalEquity:   e.account.Equity().ToFloat64(),
		EquityCurve:   curve,
		Returns:       computeReturnMetrics(curve, e.cfg.InitialCapital, 0, nil),
		Trading:       computeTradingMetrics(e.account.Risk(), e.account.Events(), elapsedDays),
		DataQuality:   computeDataQuality(e.series),
		Cancelled:     cancelled,
		Events:        e.account.Events(),
		ConfigEcho:    e.cfg,
	}
	return result, nil
}

func (e *Engine) markToMarket(bar kline.Bar) {
	price, err := money.FromFloatRounded(money.Price, bar.Close)
	if err != nil {
		return
	}
	e.account.UpdateAllPrices(map[string]money.Money{e.cfg.Symbol: price}, bar.T)
}

// processPending checks pending orders against this bar's trading range for
// limit/stop triggers (spec §4.8 step 2): a market order fills at this
// bar's open; a limit order fills via clampLimitFill if its price is
// touched, otherwise stays pending; a stop order first waits for its
// trigger to be crossed, then fills at the following bar's open like a
// market order.
func (e *Engine) processPending(i int, bar kline.Bar) {
	remaining := e.pending[:0]
	for _, p := range e.pending {
		if p.submittedAtBar >= i {
			remaining = append(remaining, p)
			continue
		}
		order, ok := e.account.Order(p.orderID)
		if !ok || order.Status.IsTerminal() {
			continue
		}

		switch order.Type {
		case ledger.OrderLimit:
			fillPrice, filled := clampLimitFill(order.Side, order.Price.ToFloat64(), bar)
			if !filled {
				remaining = append(remaining, p)
				continue
			}
			e.settleOrder(order, i, bar, fillPrice)
		case ledger.OrderStop:
			if !p.triggered {
				if !stopTriggered(order, bar) {
					remaining = append(remaining, p)
					continue
				}
				p.triggered = true
				remaining = append(remaining, p)
				continue
			}
			e.settleOrder(order, i, bar, bar.Open)
		default:
			e.settleOrder(order, i, bar, bar.Open)
		}
	}
	e.pending = remaining
}

// settleOrder applies the microstructure gate, fills the order at
// referencePrice, and mutates the position the fill implies (open on a
// buy, close on a sell).
func (e *Engine) settleOrder(order ledger.Order, i int, bar kline.Bar, referencePrice float64) {
	if order.Side == ledger.SideBuy {
		if blocked, reason := microstructureBlocksBuy(e.series, i); blocked {
			e.rejectPendingOrder(order.ID, reason, bar.T)
			return
		}
	} else {
		if blocked, reason := microstructureBlocksSell(e.series, i); blocked {
			e.rejectPendingOrder(order.ID, reason, bar.T)
			return
		}
	}

	e.fillMarketOrder(order, bar, referencePrice)
	filled, ok := e.account.Order(order.ID)
	if !ok || filled.Status != ledger.OrderFilled {
		return
	}
	metrics.RecordOrderFilled(filled.Symbol, string(filled.Side))

	if filled.Side == ledger.SideBuy {
		commission := filled.Commission
		if _, gerr := e.account.OpenPosition(ledger.OpenPositionParams{
			Symbol:     filled.Symbol,
			Side:       ledger.PositionLong,
			Size:       filled.Filled,
			EntryPrice: filled.AveragePrice,
			Commission: &commission,
			Timestamp:  bar.T,
		}); gerr != nil {
			e.logger.Warn().Err(gerr).Str("order_id", filled.ID).Msg("failed to open position on fill")
		}
		return
	}

	pos, ok := e.account.PositionBySymbol(filled.Symbol)
	if !ok {
		return
	}
	commission := filled.Commission
	if gerr := e.account.ClosePosition(pos.ID, filled.AveragePrice, &commission); gerr != nil {
		e.logger.Warn().Err(gerr).Str("position_id", pos.ID).Msg("failed to close position on fill")
	}
}

// consumeSignal implements spec §4.8 step 4: a buy signal opens a new long
// position sized within risk limits and available cash; a sell signal
// closes an existing long. Short entries are not generated (allowShortSell
// is dormant in cash-equity mode, spec §9 Open Question).
func (e *Engine) consumeSignal(sig scanner.Signal, i int, bar kline.Bar) {
	switch sig.Kind {
	case scanner.KindBuy:
		e.consumeBuySignal(i, bar)
	case scanner.KindSell:
		e.consumeSellSignal(i, bar)
	}
}

func (e *Engine) consumeBuySignal(i int, bar kline.Bar) {
	if _, exists := e.account.PositionBySymbol(e.cfg.Symbol); exists {
		return
	}
	if blocked, _ := microstructureBlocksBuy(e.series, i); blocked {
		return
	}

	availableCash := e.account.Balance().Sub(e.account.MarginUsed()).ToFloat64()
	if availableCash <= 0 || bar.Close <= 0 {
		return
	}
	rawSize := int64(availableCash / bar.Close)
	size := roundToLot(rawSize, e.cfg.LotSize)
	if size <= 0 {
		return
	}
	orderValue := bar.Close * float64(size)

	allowed, checks, _, _ := e.riskMgr.ValidateOrder(
		risk.CandidateOrder{Symbol: e.cfg.Symbol, Size: size, OrderValue: orderValue},
		e.portfolioState(),
	)
	if !allowed {
		e.logger.Info().Str("symbol", e.cfg.Symbol).Interface("checks", checks).Msg("buy signal blocked by risk manager")
		return
	}

	orderType, orderPrice, triggerPrice := e.resolveEntryOrder(ledger.SideBuy, bar)
	orderID, gerr := e.account.PlaceOrder(ledger.PlaceOrderParams{
		Symbol: e.cfg.Symbol, Side: ledger.SideBuy, Type: orderType,
		Price: orderPrice, TriggerPrice: triggerPrice, Size: size, Timestamp: bar.T,
	})
	if gerr != nil {
		return
	}
	e.dispatchOrder(orderID, i, bar)
}

func (e *Engine) consumeSellSignal(i int, bar kline.Bar) {
	pos, exists := e.account.PositionBySymbol(e.cfg.Symbol)
	if !exists {
		return
	}
	if blocked, _ := microstructureBlocksSell(e.series, i); blocked {
		return
	}

	orderType, orderPrice, triggerPrice := e.resolveEntryOrder(ledger.SideSell, bar)
	orderID, gerr := e.account.PlaceOrder(ledger.PlaceOrderParams{
		Symbol: e.cfg.Symbol, Side: ledger.SideSell, Type: orderType,
		Price: orderPrice, TriggerPrice: triggerPrice, Size: pos.Size, Timestamp: bar.T,
	})
	if gerr != nil {
		return
	}
	e.dispatchOrder(orderID, i, bar)
}

// resolveEntryOrder builds the order type/price/trigger for a new
// signal-driven order (spec §4.8 step 4 "place order per config"). The
// default is a plain market order priced at the signal bar's close, which
// settles at the next bar's open (or at that close under SameBarFill); EntryOrderType
// selects limit or stop, with LimitOffsetPct deriving the limit/trigger
// price from that close.
func (e *Engine) resolveEntryOrder(side ledger.OrderSide, bar kline.Bar) (ledger.OrderType, money.Money, *money.Money) {
	basePrice, err := money.FromFloatRounded(money.Price, bar.Close)
	if err != nil {
		return ledger.OrderMarket, money.Money{}, nil
	}

	switch e.cfg.EntryOrderType {
	case ledger.OrderLimit:
		offset := bar.Close * e.cfg.LimitOffsetPct
		limit := bar.Close - offset
		if side == ledger.SideSell {
			limit = bar.Close + offset
		}
		limitPrice, err := money.FromFloatRounded(money.Price, limit)
		if err != nil {
			return ledger.OrderMarket, basePrice, nil
		}
		return ledger.OrderLimit, limitPrice, nil
	case ledger.OrderStop:
		offset := bar.Close * e.cfg.LimitOffsetPct
		trigger := bar.Close + offset
		if side == ledger.SideSell {
			trigger = bar.Close - offset
		}
		triggerPrice, err := money.FromFloatRounded(money.Price, trigger)
		if err != nil {
			return ledger.OrderMarket, basePrice, nil
		}
		return ledger.OrderStop, basePrice, &triggerPrice
	default:
		return ledger.OrderMarket, basePrice, nil
	}
}

// dispatchOrder settles an order immediately when SameBarFill is set,
// otherwise queues it for settlement at the next bar's open.
func (e *Engine) dispatchOrder(orderID string, i int, bar kline.Bar) {
	if e.cfg.SameBarFill {
		order, ok := e.account.Order(orderID)
		if !ok {
			return
		}
		e.settleOrder(order, i, bar, bar.Close)
		return
	}
	e.pending = append(e.pending, pendingOrder{orderID: orderID, submittedAtBar: i})
}

// portfolioState snapshots the ledger into the risk manager's input shape
// (spec §4.6: risk never reaches into the ledger directly).
func (e *Engine) portfolioState() risk.PortfolioState {
	positions := e.account.Positions()
	var totalExposure float64
	var existingValue float64
	for _, p := range positions {
		value := p.CurrentPrice.ToFloat64() * float64(p.Size)
		totalExposure += value
		if p.Symbol == e.cfg.Symbol {
			existingValue = value
		}
	}
	_, hasExisting := e.account.PositionBySymbol(e.cfg.Symbol)

	return risk.PortfolioState{
		Equity:                e.account.Equity().ToFloat64(),
		MarginAvailable:       e.account.Balance().Sub(e.account.MarginUsed()).ToFloat64(),
		DailyPnL:              e.account.DailyPnL().ToFloat64(),
		TotalExposure:         totalExposure,
		OpenPositions:         len(positions),
		HasExistingPosition:   hasExisting,
		ExistingPositionValue: existingValue,
	}
}

// closeAllPositions liquidates every still-open position at the series'
// final close (spec §4.8 "end-of-series closeout").
func (e *Engine) closeAllPositions() {
	if e.series.Length() == 0 {
		return
	}
	last := e.series.At(e.series.Length() - 1)
	closePrice, err := money.FromFloatRounded(money.Price, last.Close)
	if err != nil {
		return
	}
	for _, pos := range e.account.Positions() {
		_ = e.account.ClosePosition(pos.ID, closePrice, nil)
	}
}
