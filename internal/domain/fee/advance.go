package fee

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AdvanceEntryType classifies an advance ledger entry
type AdvanceEntryType string

const (
	// AdvanceDeposit records unapplied funds received
	AdvanceDeposit AdvanceEntryType = "DEPOSIT"
	// AdvanceConsume records funds applied to an assignment
	AdvanceConsume AdvanceEntryType = "CONSUME"
	// AdvanceRestore returns consumed funds after the funded payment was reverted
	AdvanceRestore AdvanceEntryType = "RESTORE"
)

// IsCredit reports whether the entry increases the balance
func (t AdvanceEntryType) IsCredit() bool {
	return t == AdvanceDeposit || t == AdvanceRestore
}

// AdvanceAccount holds a target's running advance balance. It exists to give
// concurrent consumers a row to version-lock; the ledger is the history.
type AdvanceAccount struct {
	shared.TenantAggregateRoot
	Target  Target
	Balance decimal.Decimal
}

// NewAdvanceAccount opens an empty account for target
func NewAdvanceAccount(tenantID uuid.UUID, target Target, now time.Time) (*AdvanceAccount, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return &AdvanceAccount{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, now),
		Target:              target,
		Balance:             decimal.Zero,
	}, nil
}

// Deposit credits amount and returns the ledger entry
func (a *AdvanceAccount) Deposit(amount decimal.Decimal, method PaymentMethod, referenceNo string, now time.Time) (*AdvanceEntry, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !method.IsValid() || method == PaymentMethodAdvance {
		return nil, ErrInvalidPaymentMethod
	}
	entry := a.newEntry(AdvanceDeposit, amount, now)
	entry.Method = method
	entry.ReferenceNo = strings.TrimSpace(referenceNo)
	a.Balance = entry.BalanceAfter
	a.MarkUpdated(nil, now)
	a.AddDomainEvent(NewAdvanceDepositedEvent(a, entry, now))
	return entry, nil
}

// Consume debits amount toward assignmentID; the balance never goes negative
func (a *AdvanceAccount) Consume(amount decimal.Decimal, assignmentID uuid.UUID, now time.Time) (*AdvanceEntry, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if amount.GreaterThan(a.Balance) {
		return nil, ErrInsufficientAdvance
	}
	entry := a.newEntry(AdvanceConsume, amount, now)
	entry.Method = PaymentMethodAdvance
	entry.AssignmentID = &assignmentID
	a.Balance = entry.BalanceAfter
	a.MarkUpdated(nil, now)
	return entry, nil
}

// Restore credits back a consumption whose payment was reverted
func (a *AdvanceAccount) Restore(amount decimal.Decimal, transactionID uuid.UUID, now time.Time) (*AdvanceEntry, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	entry := a.newEntry(AdvanceRestore, amount, now)
	entry.Method = PaymentMethodAdvance
	entry.TransactionID = &transactionID
	a.Balance = entry.BalanceAfter
	a.MarkUpdated(nil, now)
	return entry, nil
}

// ReverseDeposit debits a deposit whose funding payment was reverted. Credit
// that has since been spent cannot be taken back.
func (a *AdvanceAccount) ReverseDeposit(deposit *AdvanceEntry, now time.Time) (*AdvanceEntry, error) {
	if deposit == nil || deposit.Type != AdvanceDeposit || !deposit.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if deposit.Amount.GreaterThan(a.Balance) {
		return nil, ErrAdvanceCreditSpent
	}
	entry := a.newEntry(AdvanceConsume, deposit.Amount, now)
	entry.Method = PaymentMethodAdvance
	if deposit.TransactionID != nil {
		id := *deposit.TransactionID
		entry.TransactionID = &id
	}
	a.Balance = entry.BalanceAfter
	a.MarkUpdated(nil, now)
	return entry, nil
}

// TransferTo moves the whole balance into dst, returning the debit and
// credit entries. Used when a provisional account is merged into a student's.
func (a *AdvanceAccount) TransferTo(dst *AdvanceAccount, now time.Time) (*AdvanceEntry, *AdvanceEntry, error) {
	if dst == nil || dst.TenantID != a.TenantID {
		return nil, nil, ErrInvalidTarget
	}
	amount := a.Balance
	if !amount.IsPositive() {
		return nil, nil, nil
	}
	out := a.newEntry(AdvanceConsume, amount, now)
	out.Method = PaymentMethodAdvance
	out.Remark = "transferred to " + dst.Target.String()
	a.Balance = out.BalanceAfter
	a.MarkUpdated(nil, now)

	in := dst.newEntry(AdvanceDeposit, amount, now)
	in.Method = PaymentMethodAdvance
	in.Remark = "transferred from " + a.Target.String()
	dst.Balance = in.BalanceAfter
	dst.MarkUpdated(nil, now)
	return out, in, nil
}

// Retarget moves an account to the admitted student
func (a *AdvanceAccount) Retarget(student Target, now time.Time) error {
	if !student.IsStudent() {
		return ErrInvalidTarget
	}
	a.Target = student
	a.MarkUpdated(nil, now)
	return nil
}

func (a *AdvanceAccount) newEntry(typ AdvanceEntryType, amount decimal.Decimal, now time.Time) *AdvanceEntry {
	after := a.Balance.Add(amount)
	if !typ.IsCredit() {
		after = a.Balance.Sub(amount)
	}
	return &AdvanceEntry{
		BaseEntity:    shared.NewBaseEntityAt(now),
		TenantID:      a.TenantID,
		AccountID:     a.ID,
		Target:        a.Target,
		Type:          typ,
		Amount:        amount,
		BalanceBefore: a.Balance,
		BalanceAfter:  after,
	}
}

// AdvanceEntry is an immutable advance ledger row. Amount is always positive;
// Type gives the direction.
type AdvanceEntry struct {
	shared.BaseEntity
	TenantID      uuid.UUID
	AccountID     uuid.UUID
	Target        Target
	Type          AdvanceEntryType
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	AssignmentID  *uuid.UUID
	TransactionID *uuid.UUID
	Method        PaymentMethod
	ReferenceNo   string
	Remark        string
	CreatedBy     *uuid.UUID
}

// WithRemark attaches a remark
func (e *AdvanceEntry) WithRemark(remark string) *AdvanceEntry {
	e.Remark = strings.TrimSpace(remark)
	return e
}

// WithTransaction links the fee transaction funded by this entry
func (e *AdvanceEntry) WithTransaction(transactionID uuid.UUID) *AdvanceEntry {
	e.TransactionID = &transactionID
	return e
}

// WithOperator records the acting user
func (e *AdvanceEntry) WithOperator(actor *uuid.UUID) *AdvanceEntry {
	if actor != nil {
		id := *actor
		e.CreatedBy = &id
	}
	return e
}

// SignedAmount returns the amount with its direction applied
func (e *AdvanceEntry) SignedAmount() decimal.Decimal {
	if e.Type.IsCredit() {
		return e.Amount
	}
	return e.Amount.Neg()
}

// AdvanceTotals is the ledger summed by entry type
type AdvanceTotals struct {
	Deposits     decimal.Decimal
	Consumptions decimal.Decimal
	Restores     decimal.Decimal
}

// Balance is deposits plus restores minus consumptions, never negative
func (t AdvanceTotals) Balance() decimal.Decimal {
	b := t.Deposits.Add(t.Restores).Sub(t.Consumptions)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}
