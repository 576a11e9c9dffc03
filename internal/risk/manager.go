package risk

import (
	"fmt"

	"github.com/gushen/quant-core/internal/metrics"
)

// CheckSeverity mirrors spec §4.6's severity ladder: critical blocks,
// warning marks proximity to a limit (>80% of threshold), info is well
// within bounds.
type CheckSeverity string

const (
	SeverityInfo     CheckSeverity = "info"
	SeverityWarning  CheckSeverity = "warning"
	SeverityCritical CheckSeverity = "critical"
)

// RiskCheck is one rule's verdict (spec §4.6).
type RiskCheck struct {
	Rule         string
	Passed       bool
	Severity     CheckSeverity
	Message      string
	CurrentValue float64
	LimitValue   float64
}

// CandidateOrder is the pre-trade order under evaluation.
type CandidateOrder struct {
	Symbol     string
	Size       int64
	OrderValue float64 // price * size, already projected to the account's currency
}

// PortfolioState is the subset of ledger-derived figures ValidateOrder needs.
// Callers build this from an *ledger.Account snapshot; risk never reaches
// into the ledger directly, matching the teacher's calculator/service split
// between pure math and data access.
type PortfolioState struct {
	Equity                float64
	MarginAvailable       float64
	DailyPnL              float64
	TotalExposure         float64
	OpenPositions         int
	HasExistingPosition   bool
	ExistingPositionValue float64
}

// Manager is RiskManager (spec §4.6).
type Manager struct {
	limits      RiskLimits
	onRiskAlert func(RiskCheck)
}

// NewManager constructs a Manager bound to a RiskLimits bundle.
func NewManager(limits RiskLimits) *Manager {
	return &Manager{limits: limits}
}

// SetOnRiskAlert registers a callback fired once per critical failure
// (spec §4.6 "Callbacks").
func (m *Manager) SetOnRiskAlert(fn func(RiskCheck)) { m.onRiskAlert = fn }

// Limits returns the bound RiskLimits.
func (m *Manager) Limits() RiskLimits { return m.limits }

// ValidateOrder runs the full rule set against a candidate order and
// portfolio snapshot (spec §4.6). allowed is true iff no check failed with
// CheckSeverity critical; blockedBy lists the rule names that failed.
func (m *Manager) ValidateOrder(order CandidateOrder, portfolio PortfolioState) (allowed bool, checks []RiskCheck, blockedBy []string, score float64) {
	l := m.limits

	checks = append(checks, boolCheck("MIN_ORDER_SIZE", order.Size >= l.MinOrderSize,
		fmt.Sprintf("order size %d below minimum %d", order.Size, l.MinOrderSize),
		float64(order.Size), float64(l.MinOrderSize)))

	checks = append(checks, boolCheck("MAX_ORDER_SIZE", order.Size <= l.MaxOrderSize,
		fmt.Sprintf("order size %d exceeds maximum %d", order.Size, l.MaxOrderSize),
		float64(order.Size), float64(l.MaxOrderSize)))

	newPositionValue := portfolio.ExistingPositionValue + order.OrderValue
	checks = append(checks, ratioCheck("MAX_POSITION_VALUE", newPositionValue, l.MaxPositionValue,
		"position value"))

	if portfolio.Equity <= 0 {
		checks = append(checks, RiskCheck{Rule: "MAX_POSITION_PERCENT", Passed: false, Severity: SeverityCritical,
			Message: "equity is non-positive", CurrentValue: newPositionValue, LimitValue: l.MaxPositionPercent})
	} else {
		checks = append(checks, ratioCheck("MAX_POSITION_PERCENT", newPositionValue/portfolio.Equity, l.MaxPositionPercent,
			"position as % of equity"))
	}

	newTotalExposure := portfolio.TotalExposure + order.OrderValue
	checks = append(checks, ratioCheck("MAX_TOTAL_EXPOSURE", newTotalExposure, l.MaxTotalExposure, "total exposure"))

	if portfolio.Equity <= 0 {
		checks = append(checks, RiskCheck{Rule: "MAX_EXPOSURE_PERCENT", Passed: false, Severity: SeverityCritical,
			Message: "equity is non-positive", CurrentValue: newTotalExposure, LimitValue: l.MaxExposurePercent})
	} else {
		checks = append(checks, ratioCheck("MAX_EXPOSURE_PERCENT", newTotalExposure/portfolio.Equity, l.MaxExposurePercent,
			"total exposure as % of equity"))
	}

	var concentration float64
	if newTotalExposure > 0 {
		concentration = newPositionValue / newTotalExposure
	}
	checks = append(checks, ratioCheck("MAX_CONCENTRATION", concentration, l.MaxConcentration, "symbol concentration"))

	newOpenCount := portfolio.OpenPositions
	if !portfolio.HasExistingPosition {
		newOpenCount++
	}
	checks = append(checks, boolCheck("MAX_OPEN_POSITIONS", newOpenCount <= l.MaxOpenPositions,
		fmt.Sprintf("open position count %d would exceed maximum %d", newOpenCount, l.MaxOpenPositions),
		float64(newOpenCount), float64(l.MaxOpenPositions)))

	checks = append(checks, boolCheck("MARGIN_AVAILABLE", order.OrderValue <= portfolio.MarginAvailable,
		fmt.Sprintf("order value %.2f exceeds available margin %.2f", order.OrderValue, portfolio.MarginAvailable),
		order.OrderValue, portfolio.MarginAvailable))

	lossSoFar := 0.0
	if portfolio.DailyPnL < 0 {
		lossSoFar = -portfolio.DailyPnL
	}
	checks = append(checks, ratioCheck("MAX_DAILY_LOSS", lossSoFar, l.MaxDailyLoss, "daily loss"))
	if portfolio.Equity > 0 {
		checks = append(checks, ratioCheck("MAX_DAILY_LOSS_PERCENT", lossSoFar/portfolio.Equity, l.MaxDailyLossPercent, "daily loss as % of equity"))
	}

	dup := RiskCheck{Rule: "DUPLICATE_POSITION", Passed: true, Severity: SeverityInfo,
		Message: "no existing position in this symbol", CurrentValue: 0, LimitValue: 0}
	if portfolio.HasExistingPosition {
		dup.Severity = SeverityWarning
		dup.Message = fmt.Sprintf("position already open in %s", order.Symbol)
	}
	checks = append(checks, dup)

	for _, c := range checks {
		if !c.Passed {
			metrics.RecordRiskCheckFailed(c.Rule)
		}
		if !c.Passed && c.Severity == SeverityCritical {
			blockedBy = append(blockedBy, c.Rule)
			if m.onRiskAlert != nil {
				m.onRiskAlert(c)
			}
		}
	}

	return len(blockedBy) == 0, checks, blockedBy, scoreChecks(checks, newPositionValue, portfolio.Equity)
}

// ratioCheck builds a RiskCheck using the proximity ramp: failed (critical)
// above 100% of limit, warning above 80%, info otherwise. A non-positive
// limit means the rule is unconfigured and always passes.
func ratioCheck(rule string, current, limit float64, label string) RiskCheck {
	if limit <= 0 {
		return RiskCheck{Rule: rule, Passed: true, Severity: SeverityInfo, CurrentValue: current, LimitValue: limit,
			Message: fmt.Sprintf("%s unconfigured", label)}
	}
	ratio := current / limit
	switch {
	case ratio > 1:
		return RiskCheck{Rule: rule, Passed: false, Severity: SeverityCritical, CurrentValue: current, LimitValue: limit,
			Message: fmt.Sprintf("%s %.4f exceeds limit %.4f", label, current, limit)}
	case ratio > 0.8:
		return RiskCheck{Rule: rule, Passed: true, Severity: SeverityWarning, CurrentValue: current, LimitValue: limit,
			Message: fmt.Sprintf("%s %.4f is approaching limit %.4f", label, current, limit)}
	default:
		return RiskCheck{Rule: rule, Passed: true, Severity: SeverityInfo, CurrentValue: current, LimitValue: limit,
			Message: fmt.Sprintf("%s %.4f within limit %.4f", label, current, limit)}
	}
}

func boolCheck(rule string, passed bool, failMessage string, current, limit float64) RiskCheck {
	if passed {
		return RiskCheck{Rule: rule, Passed: true, Severity: SeverityInfo, CurrentValue: current, LimitValue: limit, Message: "ok"}
	}
	return RiskCheck{Rule: rule, Passed: false, Severity: SeverityCritical, CurrentValue: current, LimitValue: limit, Message: failMessage}
}

// scoreChecks implements spec §4.6's risk score: critical-fail x30,
// warning-fail x15, warning-pass x5, plus a position-to-equity ramp
// (10%/20%/30% -> +5/+10/+20), clamped to 100.
func scoreChecks(checks []RiskCheck, newPositionValue, equity float64) float64 {
	var score float64
	for _, c := range checks {
		switch {
		case !c.Passed && c.Severity == SeverityCritical:
			score += 30
		case !c.Passed && c.Severity == SeverityWarning:
			score += 15
		case c.Passed && c.Severity == SeverityWarning:
			score += 5
		}
	}
	if equity > 0 {
		pct := newPositionValue / equity
		switch {
		case pct >= 0.30:
			score += 20
		case pct >= 0.20:
			score += 10
		case pct >= 0.10:
			score += 5
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// PortfolioScore aggregates leverage, daily-loss%, concentration, position
// count, and margin utilization into a single 0-100 portfolio-level risk
// score using the same proximity ramps as per-order scoring (spec §4.6
// "Portfolio-level score aggregates ... by analogous ramps").
func (m *Manager) PortfolioScore(portfolio PortfolioState, leverage float64) float64 {
	l := m.limits
	var score float64

	ramp := func(ratio float64) float64 {
		switch {
		case ratio > 1:
			return 30
		case ratio > 0.8:
			return 15
		default:
			return 0
		}
	}

	if l.MaxLeverage > 0 {
		score += ramp(leverage / l.MaxLeverage)
	}
	if l.MaxDailyLossPercent > 0 && portfolio.Equity > 0 {
		loss := 0.0
		if portfolio.DailyPnL < 0 {
			loss = -portfolio.DailyPnL
		}
		score += ramp((loss / portfolio.Equity) / l.MaxDailyLossPercent)
	}
	if l.MaxExposurePercent > 0 && portfolio.Equity > 0 {
		score += ramp((portfolio.TotalExposure / portfolio.Equity) / l.MaxExposurePercent)
	}
	if l.MaxOpenPositions > 0 {
		score += ramp(float64(portfolio.OpenPositions) / float64(l.MaxOpenPositions))
	}
	if portfolio.Equity > 0 && portfolio.MarginAvailable >= 0 {
		utilization := 1 - portfolio.MarginAvailable/portfolio.Equity
		score += ramp(utilization)
	}

	if score > 100 {
		score = 100
	}
	return score
}
