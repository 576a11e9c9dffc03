package backtest

import (
	"math"

	"github.com/gushen/quant-core/internal/ledger"
	"github.com/gushen/quant-core/pkg/kline"
	"github.com/gushen/quant-core/pkg/money"
)

// pendingOrder tracks a ledger order still awaiting a fill, plus the bar
// index it was submitted at (spec §4.8 step 2). triggered marks a stop
// order whose trigger price has already been crossed on a prior bar, so the
// next bar's open fills it unconditionally (spec §4.8 "becomes an immediate
// market fill next bar").
type pendingOrder struct {
	orderID        string
	submittedAtBar int
	triggered      bool
}

// roundToLot rounds size DOWN to the nearest multiple of lotSize (spec
// §4.8 step 3 "Lot rule"). Returns 0 if the result is below one lot.
func roundToLot(size int64, lotSize int) int64 {
	if lotSize <= 1 {
		return size
	}
	lots := size / int64(lotSize)
	return lots * int64(lotSize)
}

// slippageAmount implements spec §4.8 step 2's per-fill slippage model.
func slippageAmount(kind slippageKind, price, value float64, size int64, bar kline.Bar) float64 {
	switch kind {
	case slippageFixedBps:
		return price * value / 10000
	case slippageVolumePct:
		if bar.Volume <= 0 {
			return 0
		}
		return price * value / 10000 * (float64(size) / bar.Volume)
	default:
		return 0
	}
}

type slippageKind string

const (
	slippageNone      slippageKind = "none"
	slippageFixedBps  slippageKind = "fixedBps"
	slippageVolumePct slippageKind = "volumePct"
)

// computeCommission implements "Commission = max(minCommission, price*size*
// commissionRate)" (spec §4.8 step 2).
func computeCommission(priceAmount money.Money, size int64, rate float64, minCommission money.Money) money.Money {
	raw := priceAmount.MulInt(size).Mul(rate)
	if raw.Compare(minCommission) < 0 {
		return minCommission
	}
	return raw
}

// fillMarketOrder fills a market order at the given reference price (next
// bar's open, or the current bar's close under SameBarFill), applying
// slippage, commission, and stamp duty (sells only).
func (e *Engine) fillMarketOrder(order ledger.Order, bar kline.Bar, referencePrice float64) {
	price := referencePrice
	slip := slippageAmount(slippageKind(e.cfg.Slippage.Kind), price, e.cfg.Slippage.Value, order.Remaining, bar)
	if order.Side == ledger.SideBuy {
		price += slip
	} else {
		price -= slip
	}

	fillPrice, err := money.FromFloatRounded(money.Price, price)
	if err != nil {
		return
	}
	priceAmount := money.Project(money.Amount, fillPrice.Decimal())
	minCommission, _ := money.FromFloatRounded(money.Amount, 5)
	commission := computeCommission(priceAmount, order.Remaining, e.cfg.CommissionRate, minCommission)
	if order.Side == ledger.SideSell {
		stampDuty := priceAmount.MulInt(order.Remaining).Mul(e.cfg.StampDutyRate)
		commission = commission.Add(stampDuty)
	}
	transferFee := priceAmount.MulInt(order.Remaining).Mul(e.cfg.TransferFeeRate)
	commission = commission.Add(transferFee)

	size := order.Remaining
	e.account.FillOrder(order.ID, fillPrice, &size, &commission, bar.T)
}

func (e *Engine) rejectPendingOrder(orderID, reason string, ts int64) {
	e.account.RejectOrder(orderID, reason, ts)
}

// microstructureBlocksBuy reports whether a new buy (or a buy fill) must be
// rejected at this bar: limit-up (cannot buy) or suspension.
func microstructureBlocksBuy(series *kline.Series, i int) (bool, string) {
	if series.IsSuspended(i) {
		return true, "suspended"
	}
	if series.IsLimitUp(i) {
		return true, "limit_up_cannot_buy"
	}
	return false, ""
}

// microstructureBlocksSell reports whether a new sell (or a sell fill) must
// be rejected at this bar: limit-down (cannot sell) or suspension.
func microstructureBlocksSell(series *kline.Series, i int) (bool, string) {
	if series.IsSuspended(i) {
		return true, "suspended"
	}
	if series.IsLimitDown(i) {
		return true, "limit_down_cannot_sell"
	}
	return false, ""
}

// stopTriggered reports whether bar's trading range crosses order's trigger
// price (spec §4.8 "stop triggers intrabar when price crosses triggerPrice").
func stopTriggered(order ledger.Order, bar kline.Bar) bool {
	if order.TriggerPrice == nil {
		return false
	}
	trigger := order.TriggerPrice.ToFloat64()
	switch order.Side {
	case ledger.SideBuy:
		return bar.High >= trigger
	case ledger.SideSell:
		return bar.Low <= trigger
	default:
		return false
	}
}

// clampLimitFill implements spec §4.8's limit-order fill rule:
// limit buy fills at min(limitPrice, bar.high) if bar.low <= limitPrice;
// limit sell fills at max(limitPrice, bar.low) if bar.high >= limitPrice.
func clampLimitFill(side ledger.OrderSide, limitPrice float64, bar kline.Bar) (fillPrice float64, filled bool) {
	switch side {
	case ledger.SideBuy:
		if bar.Low <= limitPrice {
			return math.Min(limitPrice, bar.High), true
		}
	case ledger.SideSell:
		if bar.High >= limitPrice {
			return math.Max(limitPrice, bar.Low), true
		}
	}
	return 0, false
}
