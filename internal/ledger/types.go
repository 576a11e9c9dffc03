// Package ledger implements TradingLedger (spec §4.7): the sole owner of
// positions, orders, balance, and the append-only trade-event history.
// Every other component (BacktestEngine, RiskManager, diagnostics) reads
// through a Ledger's derived getters but never mutates the structures it
// returns (spec §3 "Ownership").
package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/gushen/quant-core/pkg/money"
)

// OrderSide mirrors spec §3.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType mirrors spec §3.
type OrderType string

const (
	OrderMarket     OrderType = "market"
	OrderLimit      OrderType = "limit"
	OrderStop       OrderType = "stop"
	OrderStopLimit  OrderType = "stop_limit"
)

// OrderStatus mirrors spec §3's transition table:
// pending -> {partial, filled, cancelled, rejected};
// partial -> {filled, cancelled}; filled/cancelled/rejected are terminal.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPartial   OrderStatus = "partial"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
)

// IsTerminal reports whether an order in this status can never transition
// again (spec §4.7 "refuses to fill/cancel terminal orders").
func (s OrderStatus) IsTerminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderRejected
}

// Order is spec §3's Order record.
type Order struct {
	ID            string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Price         money.Money // limit/stop-limit reference price; zero for market
	TriggerPrice  *money.Money
	Size          int64 // shares, expected multiple of lot size
	Filled        int64
	Remaining     int64
	AveragePrice  money.Money
	Commission    money.Money
	Status        OrderStatus
	CreatedAt     int64 // epoch seconds
	UpdatedAt     int64
}

// PositionSide mirrors spec §3; the core trades long-only A-share cash
// equity (spec §9 Open Question: allowShortSell is dormant in cash mode).
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// Position is spec §3's Position record.
type Position struct {
	ID               string
	Symbol           string
	Side             PositionSide
	Size             int64
	EntryPrice       money.Money
	CurrentPrice     money.Money
	AverageCost      money.Money
	RealizedPnL      money.Money
	UnrealizedPnL    money.Money
	UnrealizedPnLPct money.Money // Ratio class
	Commission       money.Money
	MarginUsed       money.Money
	OpenedAt         int64
	UpdatedAt        int64
}

// EventType enumerates the TradeEvent kinds (spec §3).
type EventType string

const (
	EventPositionOpened EventType = "POSITION_OPENED"
	EventPositionClosed EventType = "POSITION_CLOSED"
	EventPositionUpdated EventType = "POSITION_UPDATED"
	EventOrderPlaced    EventType = "ORDER_PLACED"
	EventOrderFilled    EventType = "ORDER_FILLED"
	EventOrderCancelled EventType = "ORDER_CANCELLED"
	EventBalanceUpdated EventType = "BALANCE_UPDATED"
	EventPriceAlert     EventType = "PRICE_ALERT"
	EventRiskWarning    EventType = "RISK_WARNING"
)

// TradeEvent is spec §3's append-only event record: the source of truth
// every derived aggregate (AccountSummary, RiskMetrics) is computed from.
type TradeEvent struct {
	ID         string
	Type       EventType
	Timestamp  int64
	Data       map[string]any
	PositionID string
	OrderID    string
	Symbol     string
}

func newID() string { return uuid.NewString() }
