// Package scanner implements SignalScanner (spec §4.5): a plug-in registry
// of pure detectors run over a KLineSeries' indicator arrays to produce
// entry/exit signals, enriched with market-status flags and transaction-cost
// aware return metrics.
package scanner

// SignalKind mirrors spec §3.
type SignalKind string

const (
	KindBuy  SignalKind = "buy"
	KindSell SignalKind = "sell"
)

// SignalStatus mirrors spec §3.
type SignalStatus string

const (
	StatusCompleted  SignalStatus = "completed"
	StatusHolding    SignalStatus = "holding"
	StatusSuspended  SignalStatus = "suspended"
	StatusCannotBuy  SignalStatus = "cannot_buy"
	StatusCannotSell SignalStatus = "cannot_sell"
)

// Signal is spec §3's Signal record.
type Signal struct {
	Kind          SignalKind
	StrategyID    string
	EntryBarIndex int
	ExitBarIndex  int
	EntryPrice    float64
	ExitPrice     float64
	Strength      float64
	Status        SignalStatus
	GrossReturnPct float64
	NetReturnPct   *float64
	IsLimitUp     bool
	IsLimitDown   bool
	IsSuspended   bool
}

// ProtoSignal is what a Detector emits before the scan algorithm fills in
// entry/exit indices, prices, market-status, and return (spec §4.5).
type ProtoSignal struct {
	Kind     SignalKind
	Strength float64
}
