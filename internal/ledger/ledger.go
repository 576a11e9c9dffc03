package ledger

import (
	"github.com/gushen/quant-core/internal/gushenerr"
	"github.com/gushen/quant-core/internal/metrics"
	"github.com/gushen/quant-core/pkg/money"
)

const defaultMaxHistorySize = 10_000

// CommissionPolicy computes the commission for a fill when the caller does
// not supply an explicit amount (spec §4.7 "defaultRate or explicit").
type CommissionPolicy struct {
	Rate          float64
	MinCommission money.Money
}

func (p CommissionPolicy) compute(price money.Money, size int64) money.Money {
	raw := price.MulInt(size).Mul(p.Rate)
	if raw.Compare(p.MinCommission) < 0 {
		return p.MinCommission
	}
	return raw
}

// Account is the concrete TradingLedger implementation (spec §4.7): the
// exclusive mutator of positions, orders, event history, and balance.
type Account struct {
	initialBalance money.Money
	balance        money.Money
	marginUsed     money.Money

	commission CommissionPolicy

	positions map[string]*Position
	orders    map[string]*Order
	events    []TradeEvent

	maxHistorySize int

	dailyStartBalance money.Money
	dailyStartDate    string // YYYY-MM-DD, trading-date granularity

	mutationToken uint64
	cachedAt      uint64
	cachedSummary *AccountSummary
	cachedRisk    *RiskMetrics
}

// New constructs an Account with the given starting cash balance and
// commission policy.
func New(initialBalance money.Money, commission CommissionPolicy) *Account {
	return &Account{
		initialBalance:    initialBalance,
		balance:           initialBalance,
		marginUsed:        money.Zero(money.Amount),
		commission:        commission,
		positions:         make(map[string]*Position),
		orders:            make(map[string]*Order),
		maxHistorySize:    defaultMaxHistorySize,
		dailyStartBalance: initialBalance,
	}
}

func (a *Account) bump() {
	a.mutationToken++
}

func (a *Account) emit(ev TradeEvent) {
	ev.ID = newID()
	a.events = append(a.events, ev)
	if len(a.events) > a.maxHistorySize {
		a.events = a.events[len(a.events)-a.maxHistorySize:]
	}
	a.bump()
	metrics.RecordEvent(string(ev.Type))
}

// Balance returns the current cash balance.
func (a *Account) Balance() money.Money { return a.balance }

// MarginUsed returns the sum of marginUsed across open positions (spec §4.7
// invariant I4).
func (a *Account) MarginUsed() money.Money { return a.marginUsed }

// Equity returns balance + sum(unrealized PnL) across open positions.
func (a *Account) Equity() money.Money {
	eq := a.balance
	for _, p := range a.positions {
		eq = eq.Add(p.UnrealizedPnL)
	}
	return eq
}

// Events returns a read-only copy of the event history (callers never
// mutate ledger-owned state, spec §3 Ownership).
func (a *Account) Events() []TradeEvent {
	out := make([]TradeEvent, len(a.events))
	copy(out, a.events)
	return out
}

// Position looks up an open position by ID.
func (a *Account) Position(id string) (Position, bool) {
	p, ok := a.positions[id]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// PositionBySymbol finds the open position for a symbol, if any.
func (a *Account) PositionBySymbol(symbol string) (Position, bool) {
	for _, p := range a.positions {
		if p.Symbol == symbol {
			return *p, true
		}
	}
	return Position{}, false
}

// Positions returns a read-only snapshot of all open positions.
func (a *Account) Positions() []Position {
	out := make([]Position, 0, len(a.positions))
	for _, p := range a.positions {
		out = append(out, *p)
	}
	return out
}

// Order looks up an order by ID.
func (a *Account) Order(id string) (Order, bool) {
	o, ok := a.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// OpenPositionParams configures Account.OpenPosition.
type OpenPositionParams struct {
	Symbol         string
	Side           PositionSide
	Size           int64
	EntryPrice     money.Money
	Commission     *money.Money // explicit override of the commission policy
	MarginRequired *money.Money // defaults to entryPrice*size for cash equity
	Timestamp      int64
}

// OpenPosition computes commission (policy default or explicit), deducts it
// plus margin from balance, emits POSITION_OPENED, and invalidates caches
// (spec §4.7).
func (a *Account) OpenPosition(p OpenPositionParams) (string, *gushenerr.Error) {
	if p.Size <= 0 {
		return "", gushenerr.New(gushenerr.CodeBadLotSize, "position size must be positive", gushenerr.SeverityError, true)
	}
	comm := a.commission.compute(projectAmount(p.EntryPrice), p.Size)
	if p.Commission != nil {
		comm = *p.Commission
	}

	margin := money.Project(money.Amount, p.EntryPrice.Decimal()).MulInt(p.Size)
	if p.MarginRequired != nil {
		margin = *p.MarginRequired
	}

	cost := margin.Add(comm)
	a.balance = a.balance.Sub(cost)
	a.marginUsed = a.marginUsed.Add(margin)

	id := newID()
	pos := &Position{
		ID:           id,
		Symbol:       p.Symbol,
		Side:         p.Side,
		Size:         p.Size,
		EntryPrice:   p.EntryPrice,
		CurrentPrice: p.EntryPrice,
		AverageCost:  p.EntryPrice,
		Commission:   comm,
		MarginUsed:   margin,
		OpenedAt:     p.Timestamp,
		UpdatedAt:    p.Timestamp,
	}
	a.positions[id] = pos

	a.emit(TradeEvent{Type: EventPositionOpened, Timestamp: p.Timestamp, PositionID: id, Symbol: p.Symbol,
		Data: map[string]any{"size": p.Size, "entryPrice": p.EntryPrice.String(), "commission": comm.String()}})
	a.emit(TradeEvent{Type: EventBalanceUpdated, Timestamp: p.Timestamp,
		Data: map[string]any{"delta": cost.Neg().String(), "balance": a.balance.String()}})

	return id, nil
}

// ClosePosition computes realizedPnL = side*(closePrice-entryPrice)*size,
// credits balance += marginUsed + realizedPnL - closeCommission, deletes
// the position, and emits POSITION_CLOSED (spec §4.7 I5).
func (a *Account) ClosePosition(id string, closePrice money.Money, commission *money.Money) *gushenerr.Error {
	pos, ok := a.positions[id]
	if !ok {
		return gushenerr.New(gushenerr.CodePositionNotFound, "position not found", gushenerr.SeverityError, true)
	}

	comm := a.commission.compute(projectAmount(closePrice), pos.Size)
	if commission != nil {
		comm = *commission
	}

	sideMul := int64(1)
	if pos.Side == PositionShort {
		sideMul = -1
	}
	priceDelta := money.Project(money.Amount, closePrice.Decimal()).Sub(money.Project(money.Amount, pos.EntryPrice.Decimal()))
	realized := priceDelta.MulInt(sideMul).MulInt(pos.Size).Sub(comm)

	a.balance = a.balance.Add(pos.MarginUsed).Add(realized)
	a.marginUsed = a.marginUsed.Sub(pos.MarginUsed)
	delete(a.positions, id)

	ts := pos.UpdatedAt
	a.emit(TradeEvent{Type: EventPositionClosed, Timestamp: ts, PositionID: id, Symbol: pos.Symbol,
		Data: map[string]any{
			"realizedPnL": realized.String(),
			"closePrice":  closePrice.String(),
			"entryPrice":  pos.EntryPrice.String(),
			"size":        pos.Size,
		}})
	a.emit(TradeEvent{Type: EventBalanceUpdated, Timestamp: ts,
		Data: map[string]any{"delta": pos.MarginUsed.Add(realized).String(), "balance": a.balance.String()}})

	return nil
}

// UpdatePositionPrice recomputes unrealizedPnL/equity for one position.
func (a *Account) UpdatePositionPrice(id string, price money.Money, timestamp int64) *gushenerr.Error {
	pos, ok := a.positions[id]
	if !ok {
		return gushenerr.New(gushenerr.CodePositionNotFound, "position not found", gushenerr.SeverityError, true)
	}
	a.applyPrice(pos, price, timestamp)
	a.bump()
	return nil
}

// UpdateAllPrices marks every matching open position to the given
// symbol->price map (spec §4.8 step 1: mark-to-market each bar).
func (a *Account) UpdateAllPrices(prices map[string]money.Money, timestamp int64) {
	for _, pos := range a.positions {
		if price, ok := prices[pos.Symbol]; ok {
			a.applyPrice(pos, price, timestamp)
		}
	}
	a.bump()
}

func (a *Account) applyPrice(pos *Position, price money.Money, timestamp int64) {
	sideMul := int64(1)
	if pos.Side == PositionShort {
		sideMul = -1
	}
	priceDelta := money.Project(money.Amount, price.Decimal()).Sub(money.Project(money.Amount, pos.EntryPrice.Decimal()))
	pos.CurrentPrice = price
	pos.UnrealizedPnL = priceDelta.MulInt(sideMul).MulInt(pos.Size)
	entryValue := money.Project(money.Amount, pos.EntryPrice.Decimal()).MulInt(pos.Size)
	if !entryValue.IsZero() {
		ratio, _ := pos.UnrealizedPnL.Div(entryValue.ToFloat64())
		pos.UnrealizedPnLPct = money.Project(money.Ratio, ratio.Decimal()).Mul(100)
	}
	pos.UpdatedAt = timestamp

	a.emit(TradeEvent{Type: EventPositionUpdated, Timestamp: timestamp, PositionID: pos.ID, Symbol: pos.Symbol,
		Data: map[string]any{"currentPrice": price.String(), "unrealizedPnL": pos.UnrealizedPnL.String()}})
}

// PlaceOrderParams configures Account.PlaceOrder.
type PlaceOrderParams struct {
	Symbol       string
	Side         OrderSide
	Type         OrderType
	Price        money.Money
	TriggerPrice *money.Money
	Size         int64
	Timestamp    int64
}

// PlaceOrder records an order in pending status (spec §4.7).
func (a *Account) PlaceOrder(p PlaceOrderParams) (string, *gushenerr.Error) {
	if p.Size <= 0 {
		return "", gushenerr.New(gushenerr.CodeBadLotSize, "order size must be positive", gushenerr.SeverityError, true)
	}
	id := newID()
	order := &Order{
		ID:           id,
		Symbol:       p.Symbol,
		Side:         p.Side,
		Type:         p.Type,
		Price:        p.Price,
		TriggerPrice: p.TriggerPrice,
		Size:         p.Size,
		Remaining:    p.Size,
		AveragePrice: money.Zero(money.Price),
		Commission:   money.Zero(money.Amount),
		Status:       OrderPending,
		CreatedAt:    p.Timestamp,
		UpdatedAt:    p.Timestamp,
	}
	a.orders[id] = order
	a.emit(TradeEvent{Type: EventOrderPlaced, Timestamp: p.Timestamp, OrderID: id, Symbol: p.Symbol,
		Data: map[string]any{"side": p.Side, "type": p.Type, "size": p.Size}})
	a.bump()
	return id, nil
}

// FillOrder applies a weighted-average price over cumulative filled size,
// promotes status to partial or filled, and is a no-op on terminal orders
// (spec §4.7). fillSize defaults to the order's remaining size.
func (a *Account) FillOrder(id string, fillPrice money.Money, fillSize *int64, commission *money.Money, timestamp int64) *gushenerr.Error {
	order, ok := a.orders[id]
	if !ok {
		return gushenerr.New(gushenerr.CodeOrderNotFound, "order not found", gushenerr.SeverityError, true)
	}
	if order.Status.IsTerminal() {
		return nil // no-op, spec §4.7
	}

	size := order.Remaining
	if fillSize != nil {
		size = *fillSize
	}
	if size > order.Remaining {
		size = order.Remaining
	}
	if size <= 0 {
		return nil
	}

	comm := a.commission.compute(projectAmount(fillPrice), size)
	if commission != nil {
		comm = *commission
	}

	prevFilled := order.Filled
	newFilled := prevFilled + size
	// weighted-average price over cumulative filled.
	weightedPrev := order.AveragePrice.MulInt(prevFilled)
	weightedNew := fillPrice.MulInt(size)
	order.AveragePrice = money.Project(money.Price, weightedPrev.Add(weightedNew).Decimal())
	if newFilled > 0 {
		avg, _ := order.AveragePrice.Div(float64(newFilled))
		order.AveragePrice = money.Project(money.Price, avg.Decimal())
	}
	order.Filled = newFilled
	order.Remaining -= size
	order.Commission = order.Commission.Add(comm)
	order.UpdatedAt = timestamp
	if order.Remaining == 0 {
		order.Status = OrderFilled
	} else {
		order.Status = OrderPartial
	}

	a.emit(TradeEvent{Type: EventOrderFilled, Timestamp: timestamp, OrderID: id, Symbol: order.Symbol,
		Data: map[string]any{"fillPrice": fillPrice.String(), "fillSize": size, "commission": comm.String(), "status": order.Status}})
	return nil
}

// CancelOrder marks a non-terminal order cancelled; no-op on terminal
// orders (spec §4.7).
func (a *Account) CancelOrder(id string, timestamp int64) *gushenerr.Error {
	order, ok := a.orders[id]
	if !ok {
		return gushenerr.New(gushenerr.CodeOrderNotFound, "order not found", gushenerr.SeverityError, true)
	}
	if order.Status.IsTerminal() {
		return nil
	}
	order.Status = OrderCancelled
	order.UpdatedAt = timestamp
	a.emit(TradeEvent{Type: EventOrderCancelled, Timestamp: timestamp, OrderID: id, Symbol: order.Symbol})
	return nil
}

// RejectOrder marks a pending order rejected (used by the engine's
// microstructure gates — limit-up/down blocks, suspension, sub-lot sizing)
// and emits a RISK_WARNING with the given reason (spec §4.8 step 3, S2).
func (a *Account) RejectOrder(id, reason string, timestamp int64) *gushenerr.Error {
	order, ok := a.orders[id]
	if !ok {
		return gushenerr.New(gushenerr.CodeOrderNotFound, "order not found", gushenerr.SeverityError, true)
	}
	if order.Status.IsTerminal() {
		return nil
	}
	order.Status = OrderRejected
	order.UpdatedAt = timestamp
	a.emit(TradeEvent{Type: EventOrderCancelled, Timestamp: timestamp, OrderID: id, Symbol: order.Symbol,
		Data: map[string]any{"reason": reason}})
	a.emit(TradeEvent{Type: EventRiskWarning, Timestamp: timestamp, OrderID: id, Symbol: order.Symbol,
		Data: map[string]any{"reason": reason}})
	return nil
}

// Deposit adds funds to the cash balance.
func (a *Account) Deposit(amount money.Money, timestamp int64) {
	a.balance = a.balance.Add(amount)
	a.emit(TradeEvent{Type: EventBalanceUpdated, Timestamp: timestamp, Data: map[string]any{"delta": amount.String(), "balance": a.balance.String()}})
}

// Withdraw removes funds, refusing when amount exceeds balance-marginUsed
// (spec §4.7).
func (a *Account) Withdraw(amount money.Money, timestamp int64) bool {
	available := a.balance.Sub(a.marginUsed)
	if amount.Compare(available) > 0 {
		return false
	}
	a.balance = a.balance.Sub(amount)
	a.emit(TradeEvent{Type: EventBalanceUpdated, Timestamp: timestamp, Data: map[string]any{"delta": amount.Neg().String(), "balance": a.balance.String()}})
	return true
}

// ResetDailyStats snapshots dailyStartBalance = equity and dailyStartDate =
// today (spec §4.7).
func (a *Account) ResetDailyStats(tradingDate string) {
	a.dailyStartBalance = a.Equity()
	a.dailyStartDate = tradingDate
	a.bump()
}

// EnsureDailyBoundary resets the daily snapshot if tradingDate has rolled
// over since the last reset, guaranteeing dailyPnL resets across
// rehydration (spec §4.7 "Daily boundary").
func (a *Account) EnsureDailyBoundary(tradingDate string) {
	if a.dailyStartDate != tradingDate {
		a.ResetDailyStats(tradingDate)
	}
}

// DailyPnL returns equity - dailyStartBalance.
func (a *Account) DailyPnL() money.Money {
	return a.Equity().Sub(a.dailyStartBalance)
}

// InitialBalance returns the balance the ledger was constructed with.
func (a *Account) InitialBalance() money.Money { return a.initialBalance }

// projectAmount converts a Price-class Money into Amount class for use in
// commission/margin arithmetic (an explicit projection, spec §4.1).
func projectAmount(p money.Money) money.Money {
	return money.Project(money.Amount, p.Decimal())
}
