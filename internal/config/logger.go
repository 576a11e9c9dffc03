package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerConfig controls the process-wide logger InitLogger installs. Format
// is "json" (machine-consumable, the default for unattended runs) or
// "console" (colorized, for interactive use at a terminal). Output defaults
// to stdout when nil.
type LoggerConfig struct {
	Level      string
	Format     string
	TimeFormat string
	Output     io.Writer
}

// InitLogger installs the global zerolog logger a run uses for the rest of
// its lifetime: BacktestEngine, TradingLedger, RiskManager and
// SignalScanner all log through loggers derived from it via NewLogger/
// NewRunLogger, never configuring zerolog themselves.
func InitLogger(cfg LoggerConfig) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()

	log.Info().
		Str("level", logLevel.String()).
		Str("format", cfg.Format).
		Msg("logger initialized")
}

// NewLogger creates a component-scoped logger (e.g. "backtest.engine",
// "risk.manager") off the global logger InitLogger installed.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewRunLogger scopes a logger to a single backtest/scan run (runID is a
// uuid, matching the ids TradingLedger assigns to orders/positions) so every
// line emitted during that run can be correlated across a shared log stream.
func NewRunLogger(component, runID string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Str("run_id", runID).
		Logger()
}
