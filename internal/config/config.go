// Package config loads the caller-supplied configuration surface for the
// backtest/scan/risk core (spec §6) using the same viper + mapstructure
// pattern the rest of this codebase uses for service configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// SlippageKind selects how per-fill slippage is modeled.
type SlippageKind string

const (
	SlippageNone      SlippageKind = "none"
	SlippageFixedBps  SlippageKind = "fixedBps"
	SlippageVolumePct SlippageKind = "volumePct"
)

// SlippageConfig describes the engine's slippage model.
type SlippageConfig struct {
	Kind  SlippageKind `mapstructure:"kind"`
	Value float64      `mapstructure:"value"`
}

// EngineConfig is the §6 `engine.*` configuration surface.
type EngineConfig struct {
	InitialCapital  float64        `mapstructure:"initial_capital"`
	CommissionRate  float64        `mapstructure:"commission_rate"`
	StampDutyRate   float64        `mapstructure:"stamp_duty_rate"`
	TransferFeeRate float64        `mapstructure:"transfer_fee_rate"`
	MinCommission   float64        `mapstructure:"min_commission"`
	Slippage        SlippageConfig `mapstructure:"slippage"`
}

// MicrostructureConfig is the §6 `microstructure.*` configuration surface.
type MicrostructureConfig struct {
	LotSize        int     `mapstructure:"lot_size"`
	PriceLimitPct  float64 `mapstructure:"price_limit_pct"`
	AllowShortSell bool    `mapstructure:"allow_short_sell"`
}

// ScannerConfig is the §6 `scanner.*` configuration surface.
type ScannerConfig struct {
	HoldingDays        int                `mapstructure:"holding_days"`
	ExcludeST          bool               `mapstructure:"exclude_st"`
	MinListingDays     int                `mapstructure:"min_listing_days"`
	DetectMarketStatus bool               `mapstructure:"detect_market_status"`
	TransactionCosts   *TransactionCosts  `mapstructure:"transaction_costs"`
	StrengthThreshold  *StrengthThreshold `mapstructure:"strength_threshold"`
	Deduplication      *Deduplication     `mapstructure:"deduplication"`
}

// TransactionCosts mirrors spec §4.5 step 5.
type TransactionCosts struct {
	CommissionRate  float64 `mapstructure:"commission_rate"`
	StampDutyRate   float64 `mapstructure:"stamp_duty_rate"`
	TransferFeeRate float64 `mapstructure:"transfer_fee_rate"`
	SlippageBps     float64 `mapstructure:"slippage_bps"`
}

// StrengthThreshold filters detected signals by strength.
type StrengthThreshold struct {
	Min *float64 `mapstructure:"min"`
	Max *float64 `mapstructure:"max"`
}

// Deduplication mirrors spec §4.5 step 7.
type Deduplication struct {
	MinGapDays      int  `mapstructure:"min_gap_days"`
	MergeConsecutive bool `mapstructure:"merge_consecutive"`
	KeepStrongest    bool `mapstructure:"keep_strongest"`
}

// RiskProfile names one of the three bundled RiskLimits bundles (spec §4.6).
type RiskProfile string

const (
	RiskConservative RiskProfile = "conservative"
	RiskModerate     RiskProfile = "moderate"
	RiskAggressive   RiskProfile = "aggressive"
)

// RiskConfig is the §6 `risk.*` configuration surface: a named profile plus
// any subset of RiskLimits field overrides.
type RiskConfig struct {
	Profile   RiskProfile            `mapstructure:"profile"`
	Overrides map[string]interface{} `mapstructure:"overrides"`
}

// ObserverConfig is the §6 `observer.*` configuration surface.
type ObserverConfig struct {
	ReportEveryNBars int `mapstructure:"report_every_n_bars"`
}

// Config is the root configuration object assembled by viper.
type Config struct {
	Engine          EngineConfig         `mapstructure:"engine"`
	Microstructure  MicrostructureConfig `mapstructure:"microstructure"`
	Scanner         ScannerConfig        `mapstructure:"scanner"`
	Risk            RiskConfig           `mapstructure:"risk"`
	Observer        ObserverConfig       `mapstructure:"observer"`
	LogLevel        string               `mapstructure:"log_level"`
	LogFormat       string               `mapstructure:"log_format"`
}

// Defaults returns a Config populated with the spec's documented defaults.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			InitialCapital:  1_000_000,
			CommissionRate:  0.0003,
			StampDutyRate:   0.001,
			TransferFeeRate: 0.00002,
			MinCommission:   5,
			Slippage:        SlippageConfig{Kind: SlippageNone},
		},
		Microstructure: MicrostructureConfig{
			LotSize:       100,
			PriceLimitPct: 0.10,
		},
		Scanner: ScannerConfig{
			HoldingDays: 5,
		},
		Risk: RiskConfig{
			Profile: RiskModerate,
		},
		Observer: ObserverConfig{
			ReportEveryNBars: 100,
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads configuration from the named file (any format viper supports:
// yaml, json, toml) layered over Defaults(), with GUSHEN_-prefixed
// environment variables taking precedence, matching the viper wiring the
// rest of this codebase uses for its own service configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GUSHEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal defaults: %w", err)
	}

	if path == "" {
		return &cfg, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	return &cfg, nil
}
