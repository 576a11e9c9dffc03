package ledger

import (
	"math"

	"github.com/gushen/quant-core/pkg/money"
)

// AccountSummary is a derived snapshot of ledger state (spec §4.7): callers
// must never mutate positions/events directly to affect it, only through
// the Account's own operations.
type AccountSummary struct {
	Balance          money.Money
	Equity           money.Money
	MarginUsed       money.Money
	UnrealizedPnL    money.Money
	RealizedPnL      money.Money
	TotalPnL         money.Money
	TotalPnLPct      money.Money
	OpenPositions    int
	DailyPnL         money.Money
	DailyPnLPct      money.Money
}

// RiskMetrics are pure functions of {balance, positions, events, dailyStart}
// (spec §4.7), derived from the closed-trade history recorded in events.
type RiskMetrics struct {
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float64
	GrossProfit    money.Money
	GrossLoss      money.Money
	ProfitFactor   float64
	AvgWin         money.Money
	AvgLoss        money.Money
	LargestWin     money.Money
	LargestLoss    money.Money
}

// Summary computes (or returns a cached) AccountSummary. The cache is
// invalidated whenever mutationToken advances (spec §9 design note).
func (a *Account) Summary() AccountSummary {
	if a.cachedSummary != nil && a.cachedAt == a.mutationToken {
		return *a.cachedSummary
	}
	s := a.computeSummary()
	if a.cachedAt != a.mutationToken {
		a.cachedRisk = nil
	}
	a.cachedSummary = &s
	a.cachedAt = a.mutationToken
	return s
}

func (a *Account) computeSummary() AccountSummary {
	unrealized := money.Zero(money.Amount)
	for _, p := range a.positions {
		unrealized = unrealized.Add(p.UnrealizedPnL)
	}
	realized := a.realizedPnLFromEvents()
	equity := a.Equity()
	totalPnL := equity.Sub(a.initialBalance)
	var totalPnLPct money.Money
	if !a.initialBalance.IsZero() {
		ratio, err := totalPnL.Div(a.initialBalance.ToFloat64())
		if err == nil {
			totalPnLPct = money.Project(money.Ratio, ratio.Decimal()).Mul(100)
		}
	}
	dailyPnL := a.DailyPnL()
	var dailyPnLPct money.Money
	if !a.dailyStartBalance.IsZero() {
		ratio, err := dailyPnL.Div(a.dailyStartBalance.ToFloat64())
		if err == nil {
			dailyPnLPct = money.Project(money.Ratio, ratio.Decimal()).Mul(100)
		}
	}

	return AccountSummary{
		Balance:       a.balance,
		Equity:        equity,
		MarginUsed:    a.marginUsed,
		UnrealizedPnL: unrealized,
		RealizedPnL:   realized,
		TotalPnL:      totalPnL,
		TotalPnLPct:   totalPnLPct,
		OpenPositions: len(a.positions),
		DailyPnL:      dailyPnL,
		DailyPnLPct:   dailyPnLPct,
	}
}

func (a *Account) realizedPnLFromEvents() money.Money {
	total := money.Zero(money.Amount)
	for _, ev := range a.events {
		if ev.Type != EventPositionClosed {
			continue
		}
		raw, ok := ev.Data["realizedPnL"]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		m, err := money.FromString(money.Amount, s)
		if err != nil {
			continue
		}
		total = total.Add(m)
	}
	return total
}

// Risk computes (or returns a cached) RiskMetrics derived from the closed
// trade history (spec §4.7).
func (a *Account) Risk() RiskMetrics {
	if a.cachedRisk != nil && a.cachedAt == a.mutationToken {
		return *a.cachedRisk
	}
	r := a.computeRisk()
	if a.cachedAt != a.mutationToken {
		a.cachedSummary = nil
	}
	a.cachedRisk = &r
	a.cachedAt = a.mutationToken
	return r
}

func (a *Account) computeRisk() RiskMetrics {
	grossProfit := money.Zero(money.Amount)
	grossLoss := money.Zero(money.Amount)
	largestWin := money.Zero(money.Amount)
	largestLoss := money.Zero(money.Amount)
	winning, losing := 0, 0

	for _, ev := range a.events {
		if ev.Type != EventPositionClosed {
			continue
		}
		raw, ok := ev.Data["realizedPnL"]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		pnl, err := money.FromString(money.Amount, s)
		if err != nil {
			continue
		}
		switch {
		case pnl.IsPositive():
			winning++
			grossProfit = grossProfit.Add(pnl)
			if pnl.Compare(largestWin) > 0 {
				largestWin = pnl
			}
		case pnl.IsNegative():
			losing++
			grossLoss = grossLoss.Add(pnl.Neg())
			if pnl.Neg().Compare(largestLoss) > 0 {
				largestLoss = pnl.Neg()
			}
		}
	}

	total := winning + losing
	var winRate float64
	if total > 0 {
		winRate = float64(winning) / float64(total) * 100
	}

	var profitFactor float64
	if !grossLoss.IsZero() {
		profitFactor = grossProfit.ToFloat64() / grossLoss.ToFloat64()
	} else if !grossProfit.IsZero() {
		profitFactor = math.Inf(1)
	}

	avgWin := money.Zero(money.Amount)
	if winning > 0 {
		avgWin, _ = grossProfit.Div(float64(winning))
	}
	avgLoss := money.Zero(money.Amount)
	if losing > 0 {
		avgLoss, _ = grossLoss.Div(float64(losing))
	}

	return RiskMetrics{
		TotalTrades:   total,
		WinningTrades: winning,
		LosingTrades:  losing,
		WinRate:       winRate,
		GrossProfit:   grossProfit,
		GrossLoss:     grossLoss,
		ProfitFactor:  profitFactor,
		AvgWin:        avgWin,
		AvgLoss:       avgLoss,
		LargestWin:    largestWin,
		LargestLoss:   largestLoss,
	}
}
