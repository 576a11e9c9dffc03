// Package money implements fixed-precision decimal arithmetic for every
// monetary value flowing through the backtest/ledger/risk core (spec §4.1).
// It wraps github.com/shopspring/decimal the way the rest of this corpus
// wraps exchange SDK types: a thin, validated domain type instead of a bare
// float64, so that 100.1 + 100.2 is exactly 200.30 and never 200.29999...
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Class names a monetary category and fixes its canonical scale (decimal
// places). Mixing classes without an explicit projection is a programmer
// error and panics, per spec §4.1's "mixing classes requires explicit
// projection" invariant.
type Class int

const (
	// Price is a per-share price, scale 4 (A-share prices quote to 0.001,
	// four decimals gives headroom for derived per-share math).
	Price Class = iota
	// Amount is a cash amount (balances, PnL, commission), scale 2.
	Amount
	// Ratio is a dimensionless ratio/percentage, scale 6.
	Ratio
)

func (c Class) scale() int32 {
	switch c {
	case Price:
		return 4
	case Amount:
		return 2
	case Ratio:
		return 6
	default:
		panic(fmt.Sprintf("money: unknown class %d", c))
	}
}

func (c Class) String() string {
	switch c {
	case Price:
		return "price"
	case Amount:
		return "amount"
	case Ratio:
		return "ratio"
	default:
		return "unknown"
	}
}

// Money is a decimal value pinned to the canonical scale of its Class.
// The zero value is class Price with value 0 (a non-class, no-op default
// that callers should never rely on — always construct explicitly).
type Money struct {
	class Class
	val   decimal.Decimal
}

// Kind enumerates Money's own failure modes (spec §4.1: FORMAT,
// DIV_BY_ZERO).
type Kind string

const (
	KindFormat     Kind = "FORMAT"
	KindDivByZero  Kind = "DIV_BY_ZERO"
	KindClassMismatch Kind = "CLASS_MISMATCH"
)

// Error is the error type returned by Money's fallible constructors and by
// Div. Money's other arithmetic methods (Add, Sub, Mul, Neg, Compare) are
// pure functions that panic on programmer-shape errors (mismatched class)
// per spec §7 ("pure functions raise on programmer errors only"); only
// construction from untrusted input and division by zero return an error.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("money: %s: %s", e.Kind, e.Message) }

// Zero returns the zero value of the given class.
func Zero(class Class) Money {
	return Money{class: class, val: decimal.Zero.Round(class.scale())}
}

// New builds a Money from an integer number of minor units is not how this
// type works; New builds a Money directly from a decimal.Decimal, rounding
// to the class's canonical scale with banker's rounding (round-half-to-even),
// per spec §4.1.
func New(class Class, d decimal.Decimal) Money {
	return Money{class: class, val: d.RoundBank(class.scale())}
}

// FromString parses a canonical decimal string ("200.30", "-12.5"). It
// rejects NaN/Infinity and non-decimal representations with Kind FORMAT,
// per spec §4.1.
func FromString(class Class, s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &Error{Kind: KindFormat, Message: fmt.Sprintf("invalid decimal %q: %v", s, err)}
	}
	return New(class, d), nil
}

// FromFloatRounded is the ONLY sanctioned path from a binary float into
// Money (spec §4.1: "Never constructed from binary floats without an
// explicit fromFloatRounded conversion"). It rounds to the class's
// canonical scale with banker's rounding.
func FromFloatRounded(class Class, f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, &Error{Kind: KindFormat, Message: "NaN/Inf is not a valid money value"}
	}
	return New(class, decimal.NewFromFloat(f)), nil
}

// Class reports the Money's monetary class.
func (m Money) Class() Class { return m.class }

// Decimal exposes the underlying shopspring/decimal value, for explicit
// class projection through Project and for handing the value to another
// library (e.g. a persistence layer).
func (m Money) Decimal() decimal.Decimal { return m.val }

func (m Money) requireSameClass(other Money) {
	if m.class != other.class {
		panic(fmt.Sprintf("money: class mismatch: %s vs %s", m.class, other.class))
	}
}

// Add returns m + other. Both operands must share a class; mixing classes
// panics (programmer error, spec §4.1).
func (m Money) Add(other Money) Money {
	m.requireSameClass(other)
	return New(m.class, m.val.Add(other.val))
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	m.requireSameClass(other)
	return New(m.class, m.val.Sub(other.val))
}

// Mul returns m * scalar, preserving m's scale with banker's rounding.
// scalar is a dimensionless float64 multiplier (e.g. a commission rate or a
// quantity), never another Money — mixing two Moneys via Mul would change
// units and is exactly the "explicit projection" spec §4.1 calls out.
func (m Money) Mul(scalar float64) Money {
	return New(m.class, m.val.Mul(decimal.NewFromFloat(scalar)))
}

// MulInt returns m * n for an integer scalar (e.g. share count), exact with
// no intermediate float64 conversion.
func (m Money) MulInt(n int64) Money {
	return New(m.class, m.val.Mul(decimal.NewFromInt(n)))
}

// Div returns m / scalar, preserving m's scale with banker's rounding. Div
// by zero returns a KindDivByZero error per spec §4.1 rather than panicking,
// since the divisor is runtime data, not a shape invariant.
func (m Money) Div(scalar float64) (Money, error) {
	if scalar == 0 {
		return Money{}, &Error{Kind: KindDivByZero, Message: "division by zero"}
	}
	return New(m.class, m.val.Div(decimal.NewFromFloat(scalar))), nil
}

// Neg returns -m.
func (m Money) Neg() Money {
	return New(m.class, m.val.Neg())
}

// Compare returns -1, 0, or 1 per the usual comparator contract. Both
// operands must share a class.
func (m Money) Compare(other Money) int {
	m.requireSameClass(other)
	return m.val.Cmp(other.val)
}

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool { return m.val.IsZero() }

// IsNegative reports whether m is strictly less than zero.
func (m Money) IsNegative() bool { return m.val.IsNegative() }

// IsPositive reports whether m is strictly greater than zero.
func (m Money) IsPositive() bool { return m.val.IsPositive() }

// Round returns m rounded to the given number of digits using banker's
// rounding, re-pinned to the class's canonical scale if digits exceeds it.
func (m Money) Round(digits int32) Money {
	scale := m.class.scale()
	if digits > scale {
		digits = scale
	}
	return New(m.class, m.val.RoundBank(digits))
}

// ToFloat64 projects out of Money for display/telemetry purposes only; it
// must never feed back into a monetary computation.
func (m Money) ToFloat64() float64 {
	f, _ := m.val.Float64()
	return f
}

// String formats m at its canonical scale.
func (m Money) String() string {
	return m.val.StringFixed(m.class.scale())
}

// ToString formats m with the given number of digits, or the canonical
// scale when digits is negative.
func (m Money) ToString(digits int) string {
	if digits < 0 {
		digits = int(m.class.scale())
	}
	return m.val.StringFixed(int32(digits))
}

// Project converts m into a Money of a different class at the given
// explicit scale, the "explicit projection" spec §4.1 requires whenever a
// computation crosses monetary classes (e.g. price × quantity → amount).
func Project(target Class, d decimal.Decimal) Money {
	return New(target, d)
}

// Sum adds a slice of same-class Money values, returning the class's zero
// value for an empty slice.
func Sum(class Class, values ...Money) Money {
	total := Zero(class)
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Min returns the lesser of a and b.
func Min(a, b Money) Money {
	if a.Compare(b) <= 0 {
		return a
	}
	return b
}

// Max returns the greater of a and b.
func Max(a, b Money) Money {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}
