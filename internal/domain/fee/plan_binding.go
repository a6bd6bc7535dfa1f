package fee

import (
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FineType selects how a late fine is computed
type FineType string

const (
	FineNone       FineType = "NONE"
	FineFixed      FineType = "FIXED"
	FinePercentage FineType = "PERCENTAGE"
)

// IsValid checks if the fine type is a known value
func (t FineType) IsValid() bool {
	switch t {
	case FineNone, FineFixed, FinePercentage:
		return true
	}
	return false
}

// FineRule is the late-payment rule of a plan binding
type FineRule struct {
	Type       FineType
	Percentage decimal.Decimal
	Amount     decimal.Decimal
}

// NoFine is the rule that never accrues
func NoFine() FineRule {
	return FineRule{Type: FineNone, Percentage: decimal.Zero, Amount: decimal.Zero}
}

// FixedFine accrues a flat amount once overdue
func FixedFine(amount decimal.Decimal) FineRule {
	return FineRule{Type: FineFixed, Percentage: decimal.Zero, Amount: amount}
}

// PercentageFine accrues pct percent of the discounted amount once overdue
func PercentageFine(pct decimal.Decimal) FineRule {
	return FineRule{Type: FinePercentage, Percentage: pct, Amount: decimal.Zero}
}

// Validate checks the rule for consistency
func (r FineRule) Validate() error {
	switch r.Type {
	case FineNone, "":
		return nil
	case FineFixed:
		if r.Amount.IsNegative() {
			return shared.NewValidationError("INVALID_FINE", "Fine amount cannot be negative")
		}
	case FinePercentage:
		if r.Percentage.IsNegative() || r.Percentage.GreaterThan(maxPercentage) {
			return shared.NewValidationError("INVALID_FINE", "Fine percentage must be between 0 and 100")
		}
	default:
		return shared.NewValidationError("INVALID_FINE", "Invalid fine type")
	}
	return nil
}

// Accrue returns the fine owed on base once the due date has passed
func (r FineRule) Accrue(base decimal.Decimal, precision valueobject.Precision) decimal.Decimal {
	switch r.Type {
	case FineFixed:
		return valueobject.NonNegative(precision.Round(r.Amount))
	case FinePercentage:
		return valueobject.NonNegative(precision.Percentage(base, r.Percentage))
	}
	return decimal.Zero
}

// PlanBinding binds a fee type to a fee group with an amount, due date, fine
// rule and optional discount. It is the template assignments are stamped from.
type PlanBinding struct {
	shared.TenantAggregateRoot
	FeeGroupID          uuid.UUID
	FeeTypeID           uuid.UUID
	DiscountID          *uuid.UUID
	Amount              decimal.Decimal
	DueDate             *time.Time
	Fine                FineRule
	AllowPartialPayment bool
}

// PlanBindingTerms are the mutable terms of a binding
type PlanBindingTerms struct {
	Amount              decimal.Decimal
	DueDate             *time.Time
	Fine                FineRule
	DiscountID          *uuid.UUID
	AllowPartialPayment bool
}

// NewPlanBinding creates a new binding of feeTypeID into feeGroupID
func NewPlanBinding(tenantID, feeGroupID, feeTypeID uuid.UUID, terms PlanBindingTerms, now time.Time) (*PlanBinding, error) {
	if feeGroupID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_FEE_GROUP", "Fee group is required")
	}
	if feeTypeID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_FEE_TYPE", "Fee type is required")
	}
	b := &PlanBinding{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, now),
		FeeGroupID:          feeGroupID,
		FeeTypeID:           feeTypeID,
	}
	if err := b.apply(terms); err != nil {
		return nil, err
	}
	return b, nil
}

// Update replaces the terms. Existing assignments keep the terms they were stamped with.
func (b *PlanBinding) Update(terms PlanBindingTerms, actor *uuid.UUID, now time.Time) error {
	if err := b.apply(terms); err != nil {
		return err
	}
	b.MarkUpdated(actor, now)
	return nil
}

func (b *PlanBinding) apply(terms PlanBindingTerms) error {
	if terms.Amount.IsNegative() {
		return shared.NewValidationError("INVALID_AMOUNT", "Fee amount cannot be negative")
	}
	if terms.Fine.Type == "" {
		terms.Fine = NoFine()
	}
	if err := terms.Fine.Validate(); err != nil {
		return err
	}
	b.Amount = terms.Amount
	b.Fine = terms.Fine
	b.DiscountID = terms.DiscountID
	b.AllowPartialPayment = terms.AllowPartialPayment
	b.DueDate = nil
	if terms.DueDate != nil {
		day := DateOf(*terms.DueDate)
		b.DueDate = &day
	}
	return nil
}

// DueDateFor places the binding's due date in a billing period. One-time fees
// keep the configured date; periodic fees reuse its day of month, clamped to
// the length of the period's month.
func (b *PlanBinding) DueDateFor(frequency Frequency, month, year int) *time.Time {
	if b.DueDate == nil {
		return nil
	}
	if frequency == FrequencyOneTime {
		d := *b.DueDate
		return &d
	}
	day := b.DueDate.Day()
	if last := daysIn(year, time.Month(month)); day > last {
		day = last
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &d
}
