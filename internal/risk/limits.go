// Package risk implements RiskManager (spec §4.6): a pre-trade validation
// gate that checks a candidate order against a RiskLimits bundle and scores
// portfolio-level risk. It reads ledger state through the ledger package's
// derived getters but never mutates it, matching the division of
// responsibility the teacher's service.go draws between calculation and
// ownership.
package risk

// RiskLimits is the enumerated limit set spec §4.6 defines. Money-valued
// limits (MaxPositionValue, MaxTotalExposure, MaxDailyLoss) are plain
// float64 in the same currency unit as the account balance: these are
// configuration thresholds compared against derived ledger figures, not
// ledger-owned monetary state, so they don't carry money.Money's
// class-mismatch guard.
type RiskLimits struct {
	MaxPositionValue    float64
	MaxPositionPercent  float64
	MaxTotalExposure    float64
	MaxExposurePercent  float64
	MaxDailyLoss        float64
	MaxDailyLossPercent float64
	MaxDrawdown         float64
	MaxLeverage         float64
	MaxConcentration    float64
	MinOrderSize        int64
	MaxOrderSize        int64
	MaxOpenPositions    int
}

// Profile names one of the three bundled RiskLimits presets (spec §4.6).
type Profile string

const (
	Conservative Profile = "conservative"
	Moderate     Profile = "moderate"
	Aggressive   Profile = "aggressive"
)

// BundledLimits returns the stock RiskLimits for a named profile. Unknown
// profiles fall back to Moderate.
func BundledLimits(p Profile) RiskLimits {
	switch p {
	case Conservative:
		return RiskLimits{
			MaxPositionValue:    100_000,
			MaxPositionPercent:  0.10,
			MaxTotalExposure:    500_000,
			MaxExposurePercent:  0.50,
			MaxDailyLoss:        20_000,
			MaxDailyLossPercent: 0.02,
			MaxDrawdown:         0.15,
			MaxLeverage:         1.0,
			MaxConcentration:    0.15,
			MinOrderSize:        100,
			MaxOrderSize:        50_000,
			MaxOpenPositions:    10,
		}
	case Aggressive:
		return RiskLimits{
			MaxPositionValue:    400_000,
			MaxPositionPercent:  0.35,
			MaxTotalExposure:    1_500_000,
			MaxExposurePercent:  1.0,
			MaxDailyLoss:        80_000,
			MaxDailyLossPercent: 0.08,
			MaxDrawdown:         0.35,
			MaxLeverage:         2.0,
			MaxConcentration:    0.40,
			MinOrderSize:        100,
			MaxOrderSize:        300_000,
			MaxOpenPositions:    30,
		}
	default: // Moderate
		return RiskLimits{
			MaxPositionValue:    200_000,
			MaxPositionPercent:  0.20,
			MaxTotalExposure:    800_000,
			MaxExposurePercent:  0.70,
			MaxDailyLoss:        40_000,
			MaxDailyLossPercent: 0.04,
			MaxDrawdown:         0.25,
			MaxLeverage:         1.5,
			MaxConcentration:    0.25,
			MinOrderSize:        100,
			MaxOrderSize:        100_000,
			MaxOpenPositions:    20,
		}
	}
}

// ApplyOverrides merges a sparse override map (matching
// config.RiskConfig.Overrides' keys) onto a bundled RiskLimits. Unknown keys
// are ignored; this mirrors the teacher's parseLimits tolerance for unknown
// map entries.
func ApplyOverrides(base RiskLimits, overrides map[string]interface{}) RiskLimits {
	out := base
	if v, ok := overrides["max_position_value"].(float64); ok {
		out.MaxPositionValue = v
	}
	if v, ok := overrides["max_position_percent"].(float64); ok {
		out.MaxPositionPercent = v
	}
	if v, ok := overrides["max_total_exposure"].(float64); ok {
		out.MaxTotalExposure = v
	}
	if v, ok := overrides["max_exposure_percent"].(float64); ok {
		out.MaxExposurePercent = v
	}
	if v, ok := overrides["max_daily_loss"].(float64); ok {
		out.MaxDailyLoss = v
	}
	if v, ok := overrides["max_daily_loss_percent"].(float64); ok {
		out.MaxDailyLossPercent = v
	}
	if v, ok := overrides["max_drawdown"].(float64); ok {
		out.MaxDrawdown = v
	}
	if v, ok := overrides["max_leverage"].(float64); ok {
		out.MaxLeverage = v
	}
	if v, ok := overrides["max_concentration"].(float64); ok {
		out.MaxConcentration = v
	}
	if v, ok := overrides["min_order_size"].(float64); ok {
		out.MinOrderSize = int64(v)
	}
	if v, ok := overrides["max_order_size"].(float64); ok {
		out.MaxOrderSize = int64(v)
	}
	if v, ok := overrides["max_open_positions"].(float64); ok {
		out.MaxOpenPositions = int(v)
	}
	return out
}
