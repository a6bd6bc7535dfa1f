package fee

import (
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FeeAssignment is one billing instance: one target, one plan binding, one period.
//
// Stored amounts are Amount, DiscountAmount and PaidAmount. Fine, final amount,
// balance, status and overdue are derived by Evaluate. AssessedFine is set when
// a payment is taken after the due date; FineCeiling is the remaining fine of
// the latest approved waiver.
type FeeAssignment struct {
	shared.TenantAggregateRoot
	Target              Target
	PlanBindingID       uuid.UUID
	FeeTypeID           uuid.UUID
	Month               int
	Year                int
	Amount              decimal.Decimal
	DiscountAmount      decimal.Decimal
	DiscountID          *uuid.UUID
	PaidAmount          decimal.Decimal
	Fine                FineRule
	AssessedFine        *decimal.Decimal
	FineCeiling         *decimal.Decimal
	DueDate             *time.Time
	AllowPartialPayment bool
	OriginApplicationID *uuid.UUID
	DeletedAt           *time.Time
}

// StampSpec carries everything needed to stamp an assignment from a binding
type StampSpec struct {
	Target              Target
	Binding             *PlanBinding
	Frequency           Frequency
	Month               int
	Year                int
	DiscountAmount      decimal.Decimal
	DiscountID          *uuid.UUID
	DueDate             *time.Time
	AllowPartialPayment *bool
}

// NewFeeAssignment stamps a billing instance from a plan binding
func NewFeeAssignment(tenantID uuid.UUID, spec StampSpec, precision valueobject.Precision, now time.Time) (*FeeAssignment, error) {
	if err := spec.Target.Validate(); err != nil {
		return nil, err
	}
	if spec.Binding == nil {
		return nil, ErrBindingNotFound
	}
	if err := ValidatePeriod(spec.Month, spec.Year); err != nil {
		return nil, err
	}

	amount := precision.Round(spec.Binding.Amount)
	if amount.IsNegative() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Fee amount cannot be negative")
	}
	discount := precision.Round(valueobject.NonNegative(spec.DiscountAmount))
	if discount.GreaterThan(amount) {
		discount = amount
	}

	dueDate := spec.DueDate
	if dueDate == nil {
		dueDate = spec.Binding.DueDateFor(spec.Frequency, spec.Month, spec.Year)
	} else {
		d := DateOf(*dueDate)
		dueDate = &d
	}

	allowPartial := spec.Binding.AllowPartialPayment
	if spec.AllowPartialPayment != nil {
		allowPartial = *spec.AllowPartialPayment
	}

	a := &FeeAssignment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, now),
		Target:              spec.Target,
		PlanBindingID:       spec.Binding.ID,
		FeeTypeID:           spec.Binding.FeeTypeID,
		Month:               spec.Month,
		Year:                spec.Year,
		Amount:              amount,
		DiscountAmount:      discount,
		PaidAmount:          decimal.Zero,
		Fine:                spec.Binding.Fine,
		DueDate:             dueDate,
		AllowPartialPayment: allowPartial,
	}
	if !discount.IsZero() {
		a.DiscountID = spec.DiscountID
	}

	a.AddDomainEvent(NewAssignmentStampedEvent(a, now))
	return a, nil
}

// PaymentOutcome describes how a payment was applied
type PaymentOutcome struct {
	Before      Evaluation
	After       Evaluation
	FineApplied decimal.Decimal
}

// ApplyPayment records amount against the balance as of now.
// amount must be positive and not exceed the balance; when partial payments
// are disallowed it must settle the balance exactly.
func (a *FeeAssignment) ApplyPayment(amount decimal.Decimal, now time.Time, precision valueobject.Precision) (PaymentOutcome, error) {
	if a.IsDeleted() {
		return PaymentOutcome{}, ErrAssignmentDeleted
	}
	amount = precision.Round(amount)
	if !amount.IsPositive() {
		return PaymentOutcome{}, ErrInvalidAmount
	}

	before := a.Evaluate(now, precision)
	if before.Status == StatusPaid {
		return PaymentOutcome{}, ErrAlreadyPaid
	}
	if !a.AllowPartialPayment && !amount.Equal(before.Balance) {
		if amount.GreaterThan(before.Balance) {
			return PaymentOutcome{}, ErrExceedsBalance
		}
		return PaymentOutcome{}, ErrPartialNotAllowed
	}
	if amount.GreaterThan(before.Balance) {
		return PaymentOutcome{}, ErrExceedsBalance
	}

	if before.Fine.IsPositive() && a.AssessedFine == nil {
		assessed := a.uncappedFine(now, precision)
		a.AssessedFine = &assessed
	}
	a.PaidAmount = a.PaidAmount.Add(amount)
	after := a.Evaluate(now, precision)
	a.MarkUpdated(nil, now)

	return PaymentOutcome{Before: before, After: after, FineApplied: before.Fine}, nil
}

// RevertPayment takes a previously applied amount back off PaidAmount
func (a *FeeAssignment) RevertPayment(amount decimal.Decimal, actor *uuid.UUID, now time.Time, precision valueobject.Precision) (Evaluation, error) {
	if !amount.IsPositive() {
		return Evaluation{}, ErrInvalidAmount
	}
	if amount.GreaterThan(a.PaidAmount) {
		return Evaluation{}, ErrNegativePaid
	}
	a.PaidAmount = a.PaidAmount.Sub(amount)
	a.MarkUpdated(actor, now)
	return a.Evaluate(now, precision), nil
}

// CapFine installs the remaining fine of an approved waiver as the fine ceiling.
// The cap may not push the final amount below what has already been paid.
func (a *FeeAssignment) CapFine(remaining decimal.Decimal, actor *uuid.UUID, now time.Time, precision valueobject.Precision) (Evaluation, error) {
	if remaining.IsNegative() {
		return Evaluation{}, shared.NewValidationError("INVALID_AMOUNT", "Remaining fine cannot be negative")
	}
	previous := a.FineCeiling
	ceiling := precision.Round(remaining)
	a.FineCeiling = &ceiling

	ev := a.Evaluate(now, precision)
	if ev.Paid.GreaterThan(ev.Final) {
		a.FineCeiling = previous
		return Evaluation{}, shared.NewInvariantViolation("WAIVER_BELOW_PAID", "Waiver would reduce the final amount below the amount already paid")
	}
	a.MarkUpdated(actor, now)
	return ev, nil
}

// ReassignTo moves a provisional assignment onto the admitted student
func (a *FeeAssignment) ReassignTo(student Target, now time.Time) error {
	if !student.IsStudent() {
		return ErrInvalidTarget
	}
	if !a.Target.IsApplication() {
		return ErrNotProvisional
	}
	appID := a.Target.ID()
	a.OriginApplicationID = &appID
	a.Target = student
	a.MarkUpdated(nil, now)
	return nil
}

// SoftDelete removes an assignment that has never been paid
func (a *FeeAssignment) SoftDelete(actor *uuid.UUID, now time.Time) error {
	if a.IsDeleted() {
		return nil
	}
	if !a.PaidAmount.IsZero() {
		return ErrAssignmentHasPayment
	}
	a.DeletedAt = &now
	a.MarkUpdated(actor, now)
	return nil
}

// IsDeleted reports whether the assignment was soft-deleted
func (a *FeeAssignment) IsDeleted() bool {
	return a.DeletedAt != nil
}

// PeriodOpenUntil returns the instant the assignment's billing period closes
// for reversals, given the configured grace window.
func (a *FeeAssignment) PeriodOpenUntil(window time.Duration) time.Time {
	return periodEnd(a.Month, a.Year).Add(window)
}

// uncappedFine is the rule fine before any waiver ceiling
func (a *FeeAssignment) uncappedFine(now time.Time, precision valueobject.Precision) decimal.Decimal {
	ceiling := a.FineCeiling
	a.FineCeiling = nil
	base := valueobject.NonNegative(a.Amount.Sub(a.DiscountAmount))
	fine := a.accruedFine(base, now, precision)
	a.FineCeiling = ceiling
	return fine
}
