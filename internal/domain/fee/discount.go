package fee

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DiscountType selects which of Percentage/FixedAmount is meaningful
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

// IsValid checks if the discount type is a known value
func (t DiscountType) IsValid() bool {
	return t == DiscountTypePercentage || t == DiscountTypeFixed
}

var maxPercentage = decimal.NewFromInt(100)

// FeeDiscount is a reusable reduction referenced by plan bindings.
// MaxUses of zero means unlimited.
type FeeDiscount struct {
	shared.TenantAggregateRoot
	Name        string
	Code        string
	Type        DiscountType
	Percentage  decimal.Decimal
	FixedAmount decimal.Decimal
	ExpiryDate  *time.Time
	MaxUses     int
	UseCount    int
	IsRecurring bool
	DeletedAt   *time.Time
}

// NewPercentageDiscount creates a discount of pct percent of the fee amount
func NewPercentageDiscount(tenantID uuid.UUID, name, code string, pct decimal.Decimal, now time.Time) (*FeeDiscount, error) {
	if !pct.IsPositive() || pct.GreaterThan(maxPercentage) {
		return nil, shared.NewValidationError("INVALID_PERCENTAGE", "Discount percentage must be greater than 0 and at most 100")
	}
	d, err := newDiscount(tenantID, name, code, DiscountTypePercentage, now)
	if err != nil {
		return nil, err
	}
	d.Percentage = pct
	return d, nil
}

// NewFixedDiscount creates a discount of a fixed amount
func NewFixedDiscount(tenantID uuid.UUID, name, code string, amount decimal.Decimal, now time.Time) (*FeeDiscount, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Discount amount must be positive")
	}
	d, err := newDiscount(tenantID, name, code, DiscountTypeFixed, now)
	if err != nil {
		return nil, err
	}
	d.FixedAmount = amount
	return d, nil
}

func newDiscount(tenantID uuid.UUID, name, code string, typ DiscountType, now time.Time) (*FeeDiscount, error) {
	name = strings.TrimSpace(name)
	code = strings.ToUpper(strings.TrimSpace(code))
	if name == "" {
		return nil, shared.NewValidationError("INVALID_NAME", "Discount name cannot be empty")
	}
	if code == "" {
		return nil, shared.NewValidationError("INVALID_CODE", "Discount code cannot be empty")
	}
	return &FeeDiscount{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, now),
		Name:                name,
		Code:                code,
		Type:                typ,
		Percentage:          decimal.Zero,
		FixedAmount:         decimal.Zero,
	}, nil
}

// WithExpiry sets the last day on which the discount can be applied
func (d *FeeDiscount) WithExpiry(date time.Time) *FeeDiscount {
	day := DateOf(date)
	d.ExpiryDate = &day
	return d
}

// WithMaxUses caps how many assignments may receive the discount
func (d *FeeDiscount) WithMaxUses(n int) *FeeDiscount {
	if n < 0 {
		n = 0
	}
	d.MaxUses = n
	return d
}

// Recurring makes the discount apply to every billing period
func (d *FeeDiscount) Recurring() *FeeDiscount {
	d.IsRecurring = true
	return d
}

// Validate checks the type/amount invariant
func (d *FeeDiscount) Validate() error {
	switch d.Type {
	case DiscountTypePercentage:
		if !d.FixedAmount.IsZero() {
			return shared.NewValidationError("INVALID_DISCOUNT", "Percentage discount cannot carry a fixed amount")
		}
		if !d.Percentage.IsPositive() || d.Percentage.GreaterThan(maxPercentage) {
			return shared.NewValidationError("INVALID_PERCENTAGE", "Discount percentage must be greater than 0 and at most 100")
		}
	case DiscountTypeFixed:
		if !d.Percentage.IsZero() {
			return shared.NewValidationError("INVALID_DISCOUNT", "Fixed discount cannot carry a percentage")
		}
		if !d.FixedAmount.IsPositive() {
			return shared.NewValidationError("INVALID_AMOUNT", "Discount amount must be positive")
		}
	default:
		return shared.NewValidationError("INVALID_DISCOUNT_TYPE", "Invalid discount type")
	}
	return nil
}

// IsExpired reports whether now is past the expiry date
func (d *FeeDiscount) IsExpired(now time.Time) bool {
	return d.ExpiryDate != nil && DateOf(now).After(DateOf(*d.ExpiryDate))
}

// IsExhausted reports whether the use cap has been reached
func (d *FeeDiscount) IsExhausted() bool {
	return d.MaxUses > 0 && d.UseCount >= d.MaxUses
}

// Resolve returns the discount owed against base. firstPeriod tells whether
// this is the target's first assignment of the fee type; non-recurring
// discounts only apply then. The result never exceeds base.
func (d *FeeDiscount) Resolve(base decimal.Decimal, now time.Time, firstPeriod bool, precision valueobject.Precision) decimal.Decimal {
	if d == nil || d.DeletedAt != nil || d.IsExpired(now) || d.IsExhausted() {
		return decimal.Zero
	}
	if !d.IsRecurring && !firstPeriod {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch d.Type {
	case DiscountTypePercentage:
		amount = precision.Percentage(base, d.Percentage)
	case DiscountTypeFixed:
		amount = precision.Round(d.FixedAmount)
	default:
		return decimal.Zero
	}
	return valueobject.NonNegative(valueobject.Min(amount, base))
}

// RecordUse counts one application of the discount
func (d *FeeDiscount) RecordUse(now time.Time) error {
	if d.IsExhausted() {
		return shared.NewPolicyError("DISCOUNT_EXHAUSTED", "Discount has reached its maximum number of uses")
	}
	d.UseCount++
	d.MarkUpdated(nil, now)
	return nil
}

// SoftDelete marks the discount deleted
func (d *FeeDiscount) SoftDelete(actor *uuid.UUID, now time.Time) {
	if d.DeletedAt != nil {
		return
	}
	d.DeletedAt = &now
	d.MarkUpdated(actor, now)
}
