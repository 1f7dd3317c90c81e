// Package money provides fixed-point financial scalars — Money, Percentage,
// and Strike — with validated ranges and exact decimal arithmetic. Built on
// shopspring/decimal rather than float64 so cents never drift across a long
// scan, the same reasoning the retrieved trading-bot corpus applies wherever
// it touches P&L or price math.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
)

func init() {
	decimal.DivisionPrecision = 28
}

// Money is an immutable fixed-point decimal amount, rendered as "$N.NN".
type Money struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{d: decimal.Zero}

// NewMoney constructs Money from a float64 (e.g. a JSON-decoded API value).
func NewMoney(amount float64) Money {
	return Money{d: decimal.NewFromFloat(amount)}
}

// NewMoneyFromString parses a decimal string into Money.
func NewMoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, apperr.Wrap(apperr.KindInvalid, "money.NewMoneyFromString", "invalid decimal string", err)
	}
	return Money{d: d}, nil
}

// Add returns m + other.
func (m Money) Add(other Money) Money { return Money{d: m.d.Add(other.d)} }

// Sub returns m - other.
func (m Money) Sub(other Money) Money { return Money{d: m.d.Sub(other.d)} }

// MulScalar returns m * scalar.
func (m Money) MulScalar(scalar float64) Money {
	return Money{d: m.d.Mul(decimal.NewFromFloat(scalar))}
}

// DivScalar returns m / scalar. Division by zero yields Zero rather than panicking;
// callers that need a hard failure should check scalar before calling.
func (m Money) DivScalar(scalar float64) Money {
	if scalar == 0 {
		return Zero
	}
	return Money{d: m.d.Div(decimal.NewFromFloat(scalar))}
}

// Neg returns -m.
func (m Money) Neg() Money { return Money{d: m.d.Neg()} }

// Cmp returns -1, 0, or 1 as m is less than, equal to, or greater than other.
func (m Money) Cmp(other Money) int { return m.d.Cmp(other.d) }

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool { return m.Cmp(other) < 0 }

// GreaterThan reports whether m > other.
func (m Money) GreaterThan(other Money) bool { return m.Cmp(other) > 0 }

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool { return m.d.IsZero() }

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Float64 returns the amount as a float64, for interop with APIs/math that need it.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String renders Money as "$N.NN".
func (m Money) String() string {
	return fmt.Sprintf("$%s", m.d.StringFixed(2))
}

// MarshalJSON renders Money as a JSON string "$N.NN", rounded to cents like String.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", m.String())), nil
}

// Percentage is a validated real number in [-100, 1000].
type Percentage struct {
	value float64
}

// NewPercentage validates and constructs a Percentage, failing INVALID when
// x falls outside [-100, 1000].
func NewPercentage(x float64) (Percentage, error) {
	if x < -100 || x > 1000 {
		return Percentage{}, apperr.New(apperr.KindInvalid, "money.NewPercentage",
			fmt.Sprintf("percentage %.4f out of range [-100,1000]", x))
	}
	return Percentage{value: x}, nil
}

// MustPercentage panics if x is out of range; for use with compile-time-known constants.
func MustPercentage(x float64) Percentage {
	p, err := NewPercentage(x)
	if err != nil {
		panic(err)
	}
	return p
}

// Value returns the underlying float64.
func (p Percentage) Value() float64 { return p.value }

// Clamp returns x clamped into [lo, hi] instead of rejected.
// Used at consumption boundaries (e.g. sentiment scores observed out of the
// theoretical [-1,1] range, per spec.md §9) where clamping rather than
// rejecting is specified.
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Strike is a fixed-point, hashable, ordered price.
type Strike struct {
	d decimal.Decimal
}

// NewStrike constructs a Strike from a float64.
func NewStrike(price float64) Strike {
	return Strike{d: decimal.NewFromFloat(price).Round(3)}
}

// Float64 returns the strike price as a float64.
func (s Strike) Float64() float64 {
	f, _ := s.d.Float64()
	return f
}

// Cmp orders strikes ascending.
func (s Strike) Cmp(other Strike) int { return s.d.Cmp(other.d) }

// Key returns a canonical, hashable string representation for use as a map key.
func (s Strike) Key() string { return s.d.String() }

// String renders the strike price.
func (s Strike) String() string { return s.d.StringFixed(2) }
