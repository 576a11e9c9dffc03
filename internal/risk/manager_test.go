package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateOrderWithinLimitsIsAllowed(t *testing.T) {
	m := NewManager(BundledLimits(Moderate))
	order := CandidateOrder{Symbol: "600000.SH", Size: 1000, OrderValue: 10_000}
	portfolio := PortfolioState{Equity: 1_000_000, MarginAvailable: 900_000, TotalExposure: 50_000, OpenPositions: 2}

	allowed, checks, blockedBy, score := m.ValidateOrder(order, portfolio)
	assert.True(t, allowed)
	assert.Empty(t, blockedBy)
	assert.NotEmpty(t, checks)
	assert.Less(t, score, 50.0)
}

func TestValidateOrderBelowMinSizeIsBlocked(t *testing.T) {
	m := NewManager(BundledLimits(Moderate))
	order := CandidateOrder{Symbol: "600000.SH", Size: 10, OrderValue: 100}
	portfolio := PortfolioState{Equity: 1_000_000, MarginAvailable: 900_000}

	allowed, _, blockedBy, _ := m.ValidateOrder(order, portfolio)
	assert.False(t, allowed)
	assert.Contains(t, blockedBy, "MIN_ORDER_SIZE")
}

func TestValidateOrderExceedingMaxPositionValueIsBlocked(t *testing.T) {
	limits := BundledLimits(Moderate)
	m := NewManager(limits)
	order := CandidateOrder{Symbol: "600000.SH", Size: 100_000, OrderValue: limits.MaxPositionValue * 2}
	portfolio := PortfolioState{Equity: 10_000_000, MarginAvailable: 9_000_000}

	allowed, checks, blockedBy, _ := m.ValidateOrder(order, portfolio)
	assert.False(t, allowed)
	assert.Contains(t, blockedBy, "MAX_POSITION_VALUE")

	var found bool
	for _, c := range checks {
		if c.Rule == "MAX_POSITION_VALUE" {
			found = true
			assert.Equal(t, SeverityCritical, c.Severity)
		}
	}
	assert.True(t, found)
}

func TestValidateOrderNonPositiveEquityFailsPercentChecksCritically(t *testing.T) {
	m := NewManager(BundledLimits(Moderate))
	order := CandidateOrder{Symbol: "600000.SH", Size: 1000, OrderValue: 10_000}
	portfolio := PortfolioState{Equity: 0, MarginAvailable: 0}

	allowed, _, blockedBy, _ := m.ValidateOrder(order, portfolio)
	assert.False(t, allowed)
	assert.Contains(t, blockedBy, "MAX_POSITION_PERCENT")
	assert.Contains(t, blockedBy, "MAX_EXPOSURE_PERCENT")
}

func TestValidateOrderDuplicatePositionWarnsButDoesNotBlock(t *testing.T) {
	m := NewManager(BundledLimits(Moderate))
	order := CandidateOrder{Symbol: "600000.SH", Size: 1000, OrderValue: 10_000}
	portfolio := PortfolioState{Equity: 1_000_000, MarginAvailable: 900_000, HasExistingPosition: true, ExistingPositionValue: 50_000}

	allowed, checks, _, _ := m.ValidateOrder(order, portfolio)
	assert.True(t, allowed)

	var dup RiskCheck
	for _, c := range checks {
		if c.Rule == "DUPLICATE_POSITION" {
			dup = c
		}
	}
	assert.True(t, dup.Passed)
	assert.Equal(t, SeverityWarning, dup.Severity)
}

func TestValidateOrderFiresOnRiskAlertForCriticalFailures(t *testing.T) {
	m := NewManager(BundledLimits(Conservative))
	var fired []RiskCheck
	m.SetOnRiskAlert(func(c RiskCheck) { fired = append(fired, c) })

	order := CandidateOrder{Symbol: "600000.SH", Size: 1, OrderValue: 10}
	portfolio := PortfolioState{Equity: 1_000_000, MarginAvailable: 900_000}

	allowed, _, blockedBy, _ := m.ValidateOrder(order, portfolio)
	assert.False(t, allowed)
	assert.NotEmpty(t, blockedBy)
	assert.NotEmpty(t, fired)
}

func TestPortfolioScoreRampsWithLeverage(t *testing.T) {
	m := NewManager(BundledLimits(Moderate))
	low := m.PortfolioScore(PortfolioState{Equity: 1_000_000, MarginAvailable: 900_000, TotalExposure: 100_000}, 0.1)
	high := m.PortfolioScore(PortfolioState{Equity: 1_000_000, MarginAvailable: 900_000, TotalExposure: 100_000}, 3.0)
	assert.Less(t, low, high)
}

func TestApplyOverridesMergesSparseFields(t *testing.T) {
	base := BundledLimits(Moderate)
	overridden := ApplyOverrides(base, map[string]interface{}{"max_open_positions": float64(5)})
	assert.Equal(t, 5, overridden.MaxOpenPositions)
	assert.Equal(t, base.MaxPositionValue, overridden.MaxPositionValue)
}
