package fee

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle of a fee transaction
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionReverted  TransactionStatus = "REVERTED"
)

// PaymentMethod is how money was received
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
	PaymentMethodOnline       PaymentMethod = "ONLINE"
	PaymentMethodAdvance      PaymentMethod = "ADVANCE"
)

// IsValid checks if the payment method is a known value
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCard,
		PaymentMethodCheque, PaymentMethodOnline, PaymentMethodAdvance:
		return true
	}
	return false
}

// String returns the string representation
func (m PaymentMethod) String() string {
	return string(m)
}

// FeeTransaction is an append-only record of money applied to one assignment.
// The only permitted mutation is COMPLETED -> REVERTED.
type FeeTransaction struct {
	shared.TenantAggregateRoot
	AssignmentID    uuid.UUID
	Target          Target
	AmountPaid      decimal.Decimal
	PaymentDate     time.Time
	Method          PaymentMethod
	ReferenceNo     string
	DiscountApplied decimal.Decimal
	FineApplied     decimal.Decimal
	Status          TransactionStatus
	Note            string
	BatchID         *uuid.UUID
	AdvanceEntryID  *uuid.UUID
	Metadata        map[string]interface{}
	RevertedAt      *time.Time
	RevertedBy      *uuid.UUID
	RevertReason    string
}

// NewFeeTransaction records a completed payment against assignment
func NewFeeTransaction(assignment *FeeAssignment, amount decimal.Decimal, method PaymentMethod, referenceNo string, outcome PaymentOutcome, now time.Time) (*FeeTransaction, error) {
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !method.IsValid() {
		return nil, ErrInvalidPaymentMethod
	}
	referenceNo = strings.TrimSpace(referenceNo)
	if len(referenceNo) > 100 {
		return nil, shared.NewValidationError("INVALID_REFERENCE", "Reference number cannot exceed 100 characters")
	}

	t := &FeeTransaction{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(assignment.TenantID, now),
		AssignmentID:        assignment.ID,
		Target:              assignment.Target,
		AmountPaid:          amount,
		PaymentDate:         now,
		Method:              method,
		ReferenceNo:         referenceNo,
		DiscountApplied:     assignment.DiscountAmount,
		FineApplied:         outcome.FineApplied,
		Status:              TransactionCompleted,
	}
	t.AddDomainEvent(NewPaymentRecordedEvent(t, now))
	return t, nil
}

// WithNote attaches a free-text note
func (t *FeeTransaction) WithNote(note string) *FeeTransaction {
	t.Note = strings.TrimSpace(note)
	return t
}

// WithBatch groups the transaction into a multi-fee receipt
func (t *FeeTransaction) WithBatch(batchID uuid.UUID) *FeeTransaction {
	t.BatchID = &batchID
	return t
}

// WithAdvanceEntry links the advance consumption that funded the payment
func (t *FeeTransaction) WithAdvanceEntry(entryID uuid.UUID) *FeeTransaction {
	t.AdvanceEntryID = &entryID
	return t
}

// WithMetadata merges free-form metadata such as channel details
func (t *FeeTransaction) WithMetadata(key string, value interface{}) *FeeTransaction {
	if t.Metadata == nil {
		t.Metadata = make(map[string]interface{})
	}
	t.Metadata[key] = value
	return t
}

// WithCreator records the acting user
func (t *FeeTransaction) WithCreator(actor *uuid.UUID) *FeeTransaction {
	t.SetCreatedBy(actor)
	return t
}

// IsCompleted reports whether the transaction still counts toward PaidAmount
func (t *FeeTransaction) IsCompleted() bool {
	return t.Status == TransactionCompleted
}

// IsFundedByAdvance reports whether the payment consumed advance funds
func (t *FeeTransaction) IsFundedByAdvance() bool {
	return t.AdvanceEntryID != nil
}

// MarkReverted flips the transaction to REVERTED; the row is kept for audit
func (t *FeeTransaction) MarkReverted(actor *uuid.UUID, reason string, now time.Time) error {
	if t.Status == TransactionReverted {
		return ErrAlreadyReverted
	}
	t.Status = TransactionReverted
	t.RevertedAt = &now
	t.RevertReason = strings.TrimSpace(reason)
	if actor != nil {
		id := *actor
		t.RevertedBy = &id
	}
	t.MarkUpdated(actor, now)
	t.AddDomainEvent(NewPaymentRevertedEvent(t, now))
	return nil
}
