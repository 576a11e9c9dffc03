package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAddExactPrecision(t *testing.T) {
	a, err := FromString(Amount, "100.10")
	if err != nil {
		t.Fatalf("FromString a: %v", err)
	}
	b, err := FromString(Amount, "100.20")
	if err != nil {
		t.Fatalf("FromString b: %v", err)
	}

	sum := a.Add(b)
	if got := sum.String(); got != "200.30" {
		t.Fatalf("100.10 + 100.20 = %s, want 200.30", got)
	}
}

func TestAddSubRoundTrip(t *testing.T) {
	a, _ := FromString(Amount, "55.37")
	b, _ := FromString(Amount, "12.01")

	if got := a.Add(b).Sub(b); got.Compare(a) != 0 {
		t.Fatalf("(a+b)-b = %s, want %s", got, a)
	}
}

func TestToStringFromStringRoundTrip(t *testing.T) {
	cases := []string{"0.00", "200.30", "-45.67", "1000000.01"}
	for _, c := range cases {
		m, err := FromString(Amount, c)
		if err != nil {
			t.Fatalf("FromString(%s): %v", c, err)
		}
		if got := m.ToString(-1); got != c {
			t.Fatalf("ToString(FromString(%s)) = %s", c, got)
		}
	}
}

func TestFromStringRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"NaN", "Infinity", "-Infinity", "abc", ""} {
		if _, err := FromString(Amount, bad); err == nil {
			t.Fatalf("FromString(%q) should have failed", bad)
		} else if merr, ok := err.(*Error); !ok || merr.Kind != KindFormat {
			t.Fatalf("FromString(%q) expected KindFormat, got %v", bad, err)
		}
	}
}

func TestDivByZero(t *testing.T) {
	m, _ := FromString(Amount, "10.00")
	if _, err := m.Div(0); err == nil {
		t.Fatal("Div(0) should have failed")
	} else if merr, ok := err.(*Error); !ok || merr.Kind != KindDivByZero {
		t.Fatalf("Div(0) expected KindDivByZero, got %v", err)
	}
}

func TestMulPreservesScale(t *testing.T) {
	price, _ := FromString(Price, "12.3456")
	doubled := price.Mul(2)
	if doubled.Class() != Price {
		t.Fatalf("Mul should preserve class")
	}
	if got := doubled.String(); got != "24.6912" {
		t.Fatalf("12.3456 * 2 = %s, want 24.6912", got)
	}
}

func TestBankersRounding(t *testing.T) {
	// 0.125 rounded to 2 places: banker's rounding ties to even -> 0.12
	d125, _ := decimal.NewFromString("0.125")
	m := New(Amount, d125)
	if got := m.String(); got != "0.12" {
		t.Fatalf("banker's rounding of 0.125 = %s, want 0.12", got)
	}
	d135, _ := decimal.NewFromString("0.135")
	m2 := New(Amount, d135)
	if got := m2.String(); got != "0.14" {
		t.Fatalf("banker's rounding of 0.135 = %s, want 0.14", got)
	}
}

func TestMixedClassPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic mixing classes")
		}
	}()
	price, _ := FromString(Price, "10.0000")
	amount, _ := FromString(Amount, "10.00")
	_ = price.Add(amount)
}

func TestCompare(t *testing.T) {
	a, _ := FromString(Amount, "10.00")
	b, _ := FromString(Amount, "20.00")
	if a.Compare(b) != -1 {
		t.Fatal("10 should be less than 20")
	}
	if b.Compare(a) != 1 {
		t.Fatal("20 should be greater than 10")
	}
	if a.Compare(a) != 0 {
		t.Fatal("10 should equal 10")
	}
}

func TestFromFloatRounded(t *testing.T) {
	m, err := FromFloatRounded(Amount, 100.1)
	if err != nil {
		t.Fatalf("FromFloatRounded: %v", err)
	}
	if got := m.String(); got != "100.10" {
		t.Fatalf("FromFloatRounded(100.1) = %s, want 100.10", got)
	}
}
