package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gushen/quant-core/pkg/money"
)

func mustAmount(t *testing.T, s string) money.Money {
	t.Helper()
	m, err := money.FromString(money.Amount, s)
	require.NoError(t, err)
	return m
}

func mustPrice(t *testing.T, s string) money.Money {
	t.Helper()
	m, err := money.FromString(money.Price, s)
	require.NoError(t, err)
	return m
}

func newTestAccount(t *testing.T) *Account {
	t.Helper()
	initial := mustAmount(t, "1000000.00")
	policy := CommissionPolicy{Rate: 0.0003, MinCommission: mustAmount(t, "5.00")}
	return New(initial, policy)
}

func TestOpenPositionDeductsMarginAndCommission(t *testing.T) {
	acc := newTestAccount(t)
	id, gerr := acc.OpenPosition(OpenPositionParams{
		Symbol:     "600000.SH",
		Side:       PositionLong,
		Size:       1000,
		EntryPrice: mustPrice(t, "10.0000"),
		Timestamp:  1,
	})
	require.Nil(t, gerr)

	pos, ok := acc.Position(id)
	require.True(t, ok)
	assert.Equal(t, int64(1000), pos.Size)

	// margin = 10.00*1000 = 10000.00, commission = max(5, 10000*0.0003=3.00) = 5.00
	wantBalance := mustAmount(t, "989995.00")
	assert.True(t, acc.Balance().Compare(wantBalance) == 0, "balance = %s want %s", acc.Balance(), wantBalance)
}

func TestUpdateAllPricesEmitsPositionUpdatedEvent(t *testing.T) {
	acc := newTestAccount(t)
	id, gerr := acc.OpenPosition(OpenPositionParams{
		Symbol: "600000.SH", Side: PositionLong, Size: 1000,
		EntryPrice: mustPrice(t, "10.0000"), Timestamp: 1,
	})
	require.Nil(t, gerr)

	acc.UpdateAllPrices(map[string]money.Money{"600000.SH": mustPrice(t, "10.5000")}, 2)

	pos, ok := acc.Position(id)
	require.True(t, ok)
	assert.False(t, pos.UnrealizedPnL.IsZero())

	var found bool
	for _, ev := range acc.Events() {
		if ev.Type == EventPositionUpdated && ev.PositionID == id {
			found = true
			assert.Equal(t, int64(2), ev.Timestamp)
		}
	}
	assert.True(t, found, "UpdateAllPrices must emit a POSITION_UPDATED event")
}

func TestOpenPositionRejectsNonPositiveSize(t *testing.T) {
	acc := newTestAccount(t)
	_, gerr := acc.OpenPosition(OpenPositionParams{Symbol: "600000.SH", Side: PositionLong, Size: 0, EntryPrice: mustPrice(t, "10.00")})
	require.NotNil(t, gerr)
	assert.Equal(t, "BT104", gerr.Code)
}

func TestClosePositionRealizesPnLAndFreesMargin(t *testing.T) {
	acc := newTestAccount(t)
	id, gerr := acc.OpenPosition(OpenPositionParams{
		Symbol:     "600000.SH",
		Side:       PositionLong,
		Size:       1000,
		EntryPrice: mustPrice(t, "10.0000"),
		Timestamp:  1,
	})
	require.Nil(t, gerr)

	balanceAfterOpen := acc.Balance()

	gerr = acc.ClosePosition(id, mustPrice(t, "11.0000"), nil)
	require.Nil(t, gerr)

	_, stillOpen := acc.Position(id)
	assert.False(t, stillOpen, "position must be deleted on close (invariant I5)")

	// realized = (11-10)*1000 - commission(11000*0.0003=3.30, raised to the 5.00 minimum) = 1000 - comm
	summary := acc.Summary()
	assert.True(t, summary.RealizedPnL.IsPositive(), "expected positive realized PnL, got %s", summary.RealizedPnL)
	assert.True(t, acc.Balance().Compare(balanceAfterOpen) > 0, "balance should grow after a profitable close")
}

func TestClosePositionUnknownIDErrors(t *testing.T) {
	acc := newTestAccount(t)
	gerr := acc.ClosePosition("does-not-exist", mustPrice(t, "1.00"), nil)
	require.NotNil(t, gerr)
	assert.Equal(t, "BT303", gerr.Code)
}

func TestPlaceOrderThenFillOrderUpdatesWeightedAverage(t *testing.T) {
	acc := newTestAccount(t)
	orderID, gerr := acc.PlaceOrder(PlaceOrderParams{
		Symbol: "600000.SH", Side: SideBuy, Type: OrderLimit,
		Price: mustPrice(t, "10.00"), Size: 1000, Timestamp: 1,
	})
	require.Nil(t, gerr)

	fillSize1 := int64(400)
	gerr = acc.FillOrder(orderID, mustPrice(t, "10.00"), &fillSize1, nil, 2)
	require.Nil(t, gerr)

	order, ok := acc.Order(orderID)
	require.True(t, ok)
	assert.Equal(t, OrderPartial, order.Status)
	assert.Equal(t, int64(400), order.Filled)
	assert.Equal(t, int64(600), order.Remaining)

	fillSize2 := int64(600)
	gerr = acc.FillOrder(orderID, mustPrice(t, "11.00"), &fillSize2, nil, 3)
	require.Nil(t, gerr)

	order, ok = acc.Order(orderID)
	require.True(t, ok)
	assert.Equal(t, OrderFilled, order.Status)
	// weighted avg = (400*10 + 600*11)/1000 = 10.60
	want := mustPrice(t, "10.6000")
	assert.True(t, order.AveragePrice.Compare(want) == 0, "avg price = %s want %s", order.AveragePrice, want)
}

func TestFillOrderIsNoOpOnTerminalOrder(t *testing.T) {
	acc := newTestAccount(t)
	orderID, _ := acc.PlaceOrder(PlaceOrderParams{Symbol: "600000.SH", Side: SideBuy, Type: OrderMarket, Size: 100, Timestamp: 1})
	require.Nil(t, acc.CancelOrder(orderID, 2))

	gerr := acc.FillOrder(orderID, mustPrice(t, "10.00"), nil, nil, 3)
	assert.Nil(t, gerr, "filling a cancelled order must be a silent no-op, not an error")

	order, _ := acc.Order(orderID)
	assert.Equal(t, OrderCancelled, order.Status, "terminal status must not regress")
}

func TestCancelOrderIsNoOpOnTerminalOrder(t *testing.T) {
	acc := newTestAccount(t)
	orderID, _ := acc.PlaceOrder(PlaceOrderParams{Symbol: "600000.SH", Side: SideBuy, Type: OrderMarket, Size: 100, Timestamp: 1})
	fillSize := int64(100)
	require.Nil(t, acc.FillOrder(orderID, mustPrice(t, "10.00"), &fillSize, nil, 2))

	gerr := acc.CancelOrder(orderID, 3)
	assert.Nil(t, gerr)
	order, _ := acc.Order(orderID)
	assert.Equal(t, OrderFilled, order.Status, "cancelling a filled order must not change its status")
}

func TestWithdrawRefusesBeyondAvailableBalance(t *testing.T) {
	acc := newTestAccount(t)
	_, gerr := acc.OpenPosition(OpenPositionParams{Symbol: "600000.SH", Side: PositionLong, Size: 1000, EntryPrice: mustPrice(t, "10.00"), Timestamp: 1})
	require.Nil(t, gerr)

	ok := acc.Withdraw(acc.Balance().Add(mustAmount(t, "1.00")), 2)
	assert.False(t, ok, "must refuse withdrawal beyond balance")

	ok = acc.Withdraw(mustAmount(t, "1.00"), 2)
	assert.True(t, ok)
}

func TestDailyPnLResetsAtBoundary(t *testing.T) {
	acc := newTestAccount(t)
	acc.ResetDailyStats("2026-07-27")
	assert.True(t, acc.DailyPnL().IsZero())

	_, gerr := acc.OpenPosition(OpenPositionParams{Symbol: "600000.SH", Side: PositionLong, Size: 1000, EntryPrice: mustPrice(t, "10.00"), Timestamp: 1})
	require.Nil(t, gerr)
	acc.UpdateAllPrices(map[string]money.Money{"600000.SH": mustPrice(t, "11.00")}, 2)
	assert.True(t, acc.DailyPnL().IsPositive())

	acc.EnsureDailyBoundary("2026-07-28")
	assert.True(t, acc.DailyPnL().IsZero(), "daily PnL must reset to zero at a new trading day")
}

// TestRiskMetricsWinRateAndProfitFactor exercises the win-rate/profit-factor
// scenario: three winning trades and two losing trades should produce
// winRate=60% and a profit factor equal to grossProfit/grossLoss.
func TestRiskMetricsWinRateAndProfitFactor(t *testing.T) {
	acc := newTestAccount(t)
	trades := []struct {
		entry, exit string
	}{
		{"10.00", "12.00"}, // win
		{"10.00", "11.00"}, // win
		{"10.00", "13.00"}, // win
		{"10.00", "9.00"},  // loss
		{"10.00", "8.00"},  // loss
	}

	for i, tr := range trades {
		id, gerr := acc.OpenPosition(OpenPositionParams{
			Symbol: "600000.SH", Side: PositionLong, Size: 100,
			EntryPrice: mustPrice(t, tr.entry), Timestamp: int64(i * 2),
		})
		require.Nil(t, gerr)
		gerr = acc.ClosePosition(id, mustPrice(t, tr.exit), nil)
		require.Nil(t, gerr)
	}

	risk := acc.Risk()
	assert.Equal(t, 5, risk.TotalTrades)
	assert.Equal(t, 3, risk.WinningTrades)
	assert.Equal(t, 2, risk.LosingTrades)
	assert.InDelta(t, 60.0, risk.WinRate, 0.01)
	assert.True(t, risk.ProfitFactor > 1, "profit factor should exceed 1 when gross profit exceeds gross loss")
}

func TestEventHistoryTrimsToMaxSize(t *testing.T) {
	acc := newTestAccount(t)
	acc.maxHistorySize = 10
	for i := 0; i < 20; i++ {
		acc.Deposit(mustAmount(t, "1.00"), int64(i))
	}
	assert.LessOrEqual(t, len(acc.Events()), 10, "event history must be trimmed to maxHistorySize (FIFO)")
}

func TestSummaryCacheInvalidatesOnMutation(t *testing.T) {
	acc := newTestAccount(t)
	s1 := acc.Summary()
	acc.Deposit(mustAmount(t, "100.00"), 1)
	s2 := acc.Summary()
	assert.False(t, s1.Balance.Compare(s2.Balance) == 0, "cached summary must invalidate after a mutation")
}
