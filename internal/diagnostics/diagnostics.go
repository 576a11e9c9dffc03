// Package diagnostics implements DiagnosticsEngine (spec §4.9): a fixed
// declarative rule table evaluated once over a finished backtest.Result,
// producing a report of issues, highlights, an overall score and a risk
// level. It never fails on missing or zero-valued metrics: an absent
// signal just produces fewer issues, the same "never fails on metrics"
// contract the risk package's rule table follows for pre-trade checks.
package diagnostics

import (
	"fmt"
	"sort"

	"github.com/gushen/quant-core/pkg/backtest"
)

// Severity orders issues for display; lower value sorts first.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Category groups a rule by the metric family it inspects.
type Category string

const (
	CategoryReturn   Category = "return"
	CategoryRisk     Category = "risk"
	CategoryTrading  Category = "trading"
	CategoryGeneral  Category = "general"
)

// RiskLevel is the report's coarse overall-risk verdict.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Finding is one rule's output, shared by issues and highlights.
type Finding struct {
	RuleID     string
	Category   Category
	Severity   Severity
	Message    string
	Value      string
	Suggestion string
}

// Report is DiagnosticReport (spec §4.9).
type Report struct {
	Issues       []Finding
	Highlights   []Finding
	OverallScore float64
	RiskLevel    RiskLevel
	Timestamp    int64
}

// rule is one row of the declarative table: condition gates whether the
// rule fires, message/getValue/suggestion describe the finding when it does.
type rule struct {
	id         string
	category   Category
	severity   Severity
	condition  func(*backtest.Result) bool
	message    string
	getValue   func(*backtest.Result) string
	suggestion string
}

// issueRules mirrors spec §4.9's examples: negative_return, high_drawdown,
// very_high_drawdown, negative_sharpe, few_trades, overfit_risk,
// low_profit_factor.
var issueRules = []rule{
	{
		id: "negative_return", category: CategoryReturn, severity: SeverityWarning,
		condition:  func(r *backtest.Result) bool { return r.Returns.TotalReturn < 0 },
		message:    "total return is negative",
		getValue:   func(r *backtest.Result) string { return pct(r.Returns.TotalReturn) },
		suggestion: "review entry/exit rules and transaction cost assumptions",
	},
	{
		id: "high_drawdown", category: CategoryRisk, severity: SeverityWarning,
		condition:  func(r *backtest.Result) bool { return r.Returns.MaxDrawdown > 25 && r.Returns.MaxDrawdown <= 40 },
		message:    "max drawdown exceeds 25%",
		getValue:   func(r *backtest.Result) string { return fmt.Sprintf("%.2f%%", r.Returns.MaxDrawdown) },
		suggestion: "consider tighter position sizing or stop-loss rules",
	},
	{
		id: "very_high_drawdown", category: CategoryRisk, severity: SeverityError,
		condition:  func(r *backtest.Result) bool { return r.Returns.MaxDrawdown > 40 },
		message:    "max drawdown exceeds 40%",
		getValue:   func(r *backtest.Result) string { return fmt.Sprintf("%.2f%%", r.Returns.MaxDrawdown) },
		suggestion: "strategy risk profile is likely unsuitable for live capital",
	},
	{
		id: "negative_sharpe", category: CategoryRisk, severity: SeverityWarning,
		condition:  func(r *backtest.Result) bool { return r.Returns.SharpeRatio < 0 },
		message:    "sharpe ratio is negative",
		getValue:   func(r *backtest.Result) string { return fmt.Sprintf("%.2f", r.Returns.SharpeRatio) },
		suggestion: "risk-adjusted return is worse than the risk-free rate",
	},
	{
		id: "few_trades", category: CategoryTrading, severity: SeverityInfo,
		condition:  func(r *backtest.Result) bool { return r.Trading.TotalTrades < 20 },
		message:    "fewer than 20 trades; metrics may not be statistically meaningful",
		getValue:   func(r *backtest.Result) string { return fmt.Sprintf("%d", r.Trading.TotalTrades) },
		suggestion: "extend the backtest window or loosen signal filters for a larger sample",
	},
	{
		id: "overfit_risk", category: CategoryGeneral, severity: SeverityWarning,
		condition: func(r *backtest.Result) bool {
			return r.Returns.SharpeRatio > 2.5 && r.Trading.TotalTrades < 20
		},
		message:    "unusually high sharpe ratio on a small trade sample",
		getValue:   func(r *backtest.Result) string { return fmt.Sprintf("sharpe=%.2f trades=%d", r.Returns.SharpeRatio, r.Trading.TotalTrades) },
		suggestion: "validate on an out-of-sample period before trusting this result",
	},
	{
		id: "low_profit_factor", category: CategoryTrading, severity: SeverityWarning,
		condition:  func(r *backtest.Result) bool { return r.Trading.TotalTrades > 0 && r.Trading.ProfitFactor < 1 },
		message:    "profit factor below 1.0: losing trades outweigh winners",
		getValue:   func(r *backtest.Result) string { return fmt.Sprintf("%.2f", r.Trading.ProfitFactor) },
		suggestion: "review the exit rule or cost assumptions driving losing trades",
	},
}

// highlightRules are the positive-signal analogues of issueRules.
var highlightRules = []rule{
	{
		id: "excellent_sharpe", category: CategoryRisk, severity: SeverityInfo,
		condition:  func(r *backtest.Result) bool { return r.Returns.SharpeRatio >= 1.5 },
		message:    "strong risk-adjusted return",
		getValue:   func(r *backtest.Result) string { return fmt.Sprintf("%.2f", r.Returns.SharpeRatio) },
		suggestion: "",
	},
	{
		id: "good_drawdown_control", category: CategoryRisk, severity: SeverityInfo,
		condition:  func(r *backtest.Result) bool { return r.Returns.MaxDrawdown <= 10 },
		message:    "drawdown stayed within 10%",
		getValue:   func(r *backtest.Result) string { return fmt.Sprintf("%.2f%%", r.Returns.MaxDrawdown) },
		suggestion: "",
	},
	{
		id: "high_win_rate", category: CategoryTrading, severity: SeverityInfo,
		condition:  func(r *backtest.Result) bool { return r.Trading.TotalTrades > 0 && r.Trading.WinRate >= 60 },
		message:    "win rate at or above 60%",
		getValue:   func(r *backtest.Result) string { return fmt.Sprintf("%.2f%%", r.Trading.WinRate) },
		suggestion: "",
	},
	{
		id: "strong_profit_factor", category: CategoryTrading, severity: SeverityInfo,
		condition:  func(r *backtest.Result) bool { return r.Trading.TotalTrades > 0 && r.Trading.ProfitFactor >= 2 },
		message:    "profit factor at or above 2.0",
		getValue:   func(r *backtest.Result) string { return fmt.Sprintf("%.2f", r.Trading.ProfitFactor) },
		suggestion: "",
	},
	{
		id: "full_data_coverage", category: CategoryGeneral, severity: SeverityInfo,
		condition:  func(r *backtest.Result) bool { return r.DataQuality.Coverage >= 0.99 },
		message:    "input data had no material gaps",
		getValue:   func(r *backtest.Result) string { return fmt.Sprintf("%.2f%%", r.DataQuality.Coverage*100) },
		suggestion: "",
	},
}

// Generate evaluates the rule table against result and returns the full
// report. at is the caller-supplied report timestamp (epoch seconds); the
// engine never reads the wall clock itself, so the caller stamps it.
func Generate(result *backtest.Result, at int64) Report {
	issues := evaluate(issueRules, result)
	highlights := evaluate(highlightRules, result)

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Severity.rank() < issues[j].Severity.rank() })

	return Report{
		Issues:       issues,
		Highlights:   highlights,
		OverallScore: overallScore(result),
		RiskLevel:    riskLevel(result),
		Timestamp:    at,
	}
}

func evaluate(rules []rule, result *backtest.Result) []Finding {
	var out []Finding
	for _, r := range rules {
		if !r.condition(result) {
			continue
		}
		out = append(out, Finding{
			RuleID:     r.id,
			Category:   r.category,
			Severity:   r.severity,
			Message:    r.message,
			Value:      r.getValue(result),
			Suggestion: r.suggestion,
		})
	}
	return out
}

// overallScore starts at 70 and applies additive bands per metric family,
// clamped to [0,100] (spec §4.9).
func overallScore(r *backtest.Result) float64 {
	score := 70.0

	switch {
	case r.Returns.TotalReturn >= 0.30:
		score += 15
	case r.Returns.TotalReturn >= 0.10:
		score += 8
	case r.Returns.TotalReturn >= 0:
		score += 2
	case r.Returns.TotalReturn >= -0.10:
		score -= 8
	default:
		score -= 15
	}

	switch {
	case r.Returns.MaxDrawdown <= 10:
		score += 10
	case r.Returns.MaxDrawdown <= 25:
		score += 2
	case r.Returns.MaxDrawdown <= 40:
		score -= 10
	default:
		score -= 20
	}

	switch {
	case r.Returns.SharpeRatio >= 2:
		score += 10
	case r.Returns.SharpeRatio >= 1:
		score += 5
	case r.Returns.SharpeRatio >= 0:
		score += 0
	default:
		score -= 10
	}

	if r.Trading.TotalTrades > 0 {
		switch {
		case r.Trading.WinRate >= 60:
			score += 5
		case r.Trading.WinRate < 35:
			score -= 5
		}

		switch {
		case r.Trading.ProfitFactor >= 2:
			score += 5
		case r.Trading.ProfitFactor < 1:
			score -= 8
		}
	}

	if r.Trading.TotalTrades < 20 {
		score -= 5
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// riskLevel counts how many of the five danger signals fire (spec §4.9):
// high at >=3, low at 0, medium otherwise.
func riskLevel(r *backtest.Result) RiskLevel {
	danger := 0
	if r.Returns.MaxDrawdown > 25 {
		danger++
	}
	if r.Returns.SharpeRatio < 0 {
		danger++
	}
	if r.Trading.TotalTrades > 0 && r.Trading.WinRate < 35 {
		danger++
	}
	if r.Returns.TotalReturn < 0 {
		danger++
	}
	if r.Trading.TotalTrades > 0 && r.Trading.ProfitFactor < 1 {
		danger++
	}

	switch {
	case danger >= 3:
		return RiskHigh
	case danger == 0:
		return RiskLow
	default:
		return RiskMedium
	}
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
