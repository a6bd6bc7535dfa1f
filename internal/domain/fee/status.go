package fee

import (
	"time"

	"github.com/school/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Status is the payment state of an assignment. It is always derived from
// the amounts and never stored as an independent fact.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
)

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPartial, StatusPaid:
		return true
	}
	return false
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// DeriveStatus maps paid/final onto a status
func DeriveStatus(paid, final decimal.Decimal) Status {
	switch {
	case paid.GreaterThanOrEqual(final):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusPending
	}
}

// IsOverdue reports the orthogonal overdue flag. An unset due date is never overdue.
func IsOverdue(status Status, dueDate *time.Time, now time.Time) bool {
	if status == StatusPaid || dueDate == nil {
		return false
	}
	return DateOf(now).After(DateOf(*dueDate))
}

// Evaluation is the state of an assignment as of a point in time
type Evaluation struct {
	Amount   decimal.Decimal `json:"amount"`
	Discount decimal.Decimal `json:"discount_amount"`
	Fine     decimal.Decimal `json:"fine_amount"`
	Final    decimal.Decimal `json:"final_amount"`
	Paid     decimal.Decimal `json:"paid_amount"`
	Balance  decimal.Decimal `json:"balance_amount"`
	Status   Status          `json:"status"`
	Overdue  bool            `json:"overdue"`
	AsOf     time.Time       `json:"as_of"`
}

// Evaluate computes fine, final amount, balance, status and overdue as of now.
//
// A fine accrues once the due date has passed while the discounted amount is
// still unpaid. Once a late payment has been taken the assessed fine stays part
// of the debt. The latest approved waiver caps the fine.
func (a *FeeAssignment) Evaluate(now time.Time, precision valueobject.Precision) Evaluation {
	base := valueobject.NonNegative(a.Amount.Sub(a.DiscountAmount))
	fine := a.accruedFine(base, now, precision)
	final := precision.Round(base.Add(fine))
	paid := a.PaidAmount
	status := DeriveStatus(paid, final)

	return Evaluation{
		Amount:   a.Amount,
		Discount: a.DiscountAmount,
		Fine:     fine,
		Final:    final,
		Paid:     paid,
		Balance:  valueobject.NonNegative(final.Sub(paid)),
		Status:   status,
		Overdue:  IsOverdue(status, a.DueDate, now),
		AsOf:     now,
	}
}

func (a *FeeAssignment) accruedFine(base decimal.Decimal, now time.Time, precision valueobject.Precision) decimal.Decimal {
	if a.DueDate == nil || !DateOf(now).After(DateOf(*a.DueDate)) {
		return decimal.Zero
	}

	var fine decimal.Decimal
	switch {
	case a.AssessedFine != nil:
		fine = *a.AssessedFine
	case a.PaidAmount.LessThan(base):
		fine = a.Fine.Accrue(base, precision)
	default:
		return decimal.Zero
	}

	if a.FineCeiling != nil {
		fine = valueobject.Min(fine, *a.FineCeiling)
	}
	return valueobject.NonNegative(fine)
}
