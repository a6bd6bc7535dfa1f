package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultPrecision is the number of decimal places used when a tenant has not
// configured its own.
const DefaultPrecision Precision = 2

// MaxPrecision bounds configuration; amounts are stored as decimal(18,4).
const MaxPrecision Precision = 4

var hundred = decimal.NewFromInt(100)

// Precision is the number of decimal places an amount is rounded to.
// Rounding is always half-to-even (banker's rounding).
type Precision int32

// NewPrecision validates places and returns a Precision
func NewPrecision(places int) (Precision, error) {
	if places < 0 || Precision(places) > MaxPrecision {
		return 0, fmt.Errorf("decimal precision must be between 0 and %d, got %d", MaxPrecision, places)
	}
	return Precision(places), nil
}

// Places returns the number of decimal places
func (p Precision) Places() int32 {
	return int32(p)
}

// Round applies banker's rounding
func (p Precision) Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(int32(p))
}

// Percentage returns pct percent of base, rounded
func (p Precision) Percentage(base, pct decimal.Decimal) decimal.Decimal {
	return p.Round(base.Mul(pct).Div(hundred))
}

// NonNegative clamps d at zero
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Min returns the smaller of a and b
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
