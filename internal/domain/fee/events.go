package fee

import (
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeAssignmentStamped    = "FeeAssignmentStamped"
	EventTypePaymentRecorded      = "FeePaymentRecorded"
	EventTypePaymentReverted      = "FeePaymentReverted"
	EventTypeWaiverApproved       = "FineWaiverApproved"
	EventTypeAdvanceDeposited     = "AdvanceDeposited"
	EventTypeProvisionalConverted = "ProvisionalFeesConverted"
)

// AssignmentStampedEvent is raised when a billing instance is created
type AssignmentStampedEvent struct {
	shared.BaseDomainEvent
	AssignmentID   uuid.UUID       `json:"assignment_id"`
	TargetType     TargetKind      `json:"target_type"`
	TargetID       uuid.UUID       `json:"target_id"`
	PlanBindingID  uuid.UUID       `json:"plan_binding_id"`
	Month          int             `json:"month"`
	Year           int             `json:"year"`
	Amount         decimal.Decimal `json:"amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
}

// EventType returns the event type name
func (e *AssignmentStampedEvent) EventType() string {
	return EventTypeAssignmentStamped
}

// NewAssignmentStampedEvent creates a new AssignmentStampedEvent
func NewAssignmentStampedEvent(a *FeeAssignment, now time.Time) *AssignmentStampedEvent {
	return &AssignmentStampedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAssignmentStamped, "FeeAssignment", a.ID, a.TenantID, now),
		AssignmentID:    a.ID,
		TargetType:      a.Target.Kind(),
		TargetID:        a.Target.ID(),
		PlanBindingID:   a.PlanBindingID,
		Month:           a.Month,
		Year:            a.Year,
		Amount:          a.Amount,
		DiscountAmount:  a.DiscountAmount,
		DueDate:         a.DueDate,
	}
}

// PaymentRecordedEvent is raised after money is applied to an assignment
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	TransactionID uuid.UUID       `json:"transaction_id"`
	AssignmentID  uuid.UUID       `json:"assignment_id"`
	TargetType    TargetKind      `json:"target_type"`
	TargetID      uuid.UUID       `json:"target_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	ReferenceNo   string          `json:"reference_no"`
}

// EventType returns the event type name
func (e *PaymentRecordedEvent) EventType() string {
	return EventTypePaymentRecorded
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(t *FeeTransaction, now time.Time) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, "FeeTransaction", t.ID, t.TenantID, now),
		TransactionID:   t.ID,
		AssignmentID:    t.AssignmentID,
		TargetType:      t.Target.Kind(),
		TargetID:        t.Target.ID(),
		Amount:          t.AmountPaid,
		Method:          t.Method,
		ReferenceNo:     t.ReferenceNo,
	}
}

// PaymentRevertedEvent is raised when a transaction is reverted
type PaymentRevertedEvent struct {
	shared.BaseDomainEvent
	TransactionID uuid.UUID       `json:"transaction_id"`
	AssignmentID  uuid.UUID       `json:"assignment_id"`
	TargetType    TargetKind      `json:"target_type"`
	TargetID      uuid.UUID       `json:"target_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	ReferenceNo   string          `json:"reference_no"`
	Reason        string          `json:"reason"`
}

// EventType returns the event type name
func (e *PaymentRevertedEvent) EventType() string {
	return EventTypePaymentReverted
}

// NewPaymentRevertedEvent creates a new PaymentRevertedEvent
func NewPaymentRevertedEvent(t *FeeTransaction, now time.Time) *PaymentRevertedEvent {
	return &PaymentRevertedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReverted, "FeeTransaction", t.ID, t.TenantID, now),
		TransactionID:   t.ID,
		AssignmentID:    t.AssignmentID,
		TargetType:      t.Target.Kind(),
		TargetID:        t.Target.ID(),
		Amount:          t.AmountPaid,
		Method:          t.Method,
		ReferenceNo:     t.ReferenceNo,
		Reason:          t.RevertReason,
	}
}

// WaiverApprovedEvent is raised when a fine waiver is approved
type WaiverApprovedEvent struct {
	shared.BaseDomainEvent
	WaiverID            uuid.UUID       `json:"waiver_id"`
	AssignmentID        uuid.UUID       `json:"assignment_id"`
	TargetType          TargetKind      `json:"target_type"`
	TargetID            uuid.UUID       `json:"target_id"`
	WaiverAmount        decimal.Decimal `json:"waiver_amount"`
	RemainingFineAmount decimal.Decimal `json:"remaining_fine_amount"`
	ApprovedBy          uuid.UUID       `json:"approved_by"`
}

// EventType returns the event type name
func (e *WaiverApprovedEvent) EventType() string {
	return EventTypeWaiverApproved
}

// NewWaiverApprovedEvent creates a new WaiverApprovedEvent
func NewWaiverApprovedEvent(w *FineWaiver, now time.Time) *WaiverApprovedEvent {
	var approvedBy uuid.UUID
	if w.ApprovedBy != nil {
		approvedBy = *w.ApprovedBy
	}
	return &WaiverApprovedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeWaiverApproved, "FineWaiver", w.ID, w.TenantID, now),
		WaiverID:            w.ID,
		AssignmentID:        w.AssignmentID,
		TargetType:          w.Target.Kind(),
		TargetID:            w.Target.ID(),
		WaiverAmount:        w.WaiverAmount,
		RemainingFineAmount: w.RemainingFineAmount,
		ApprovedBy:          approvedBy,
	}
}

// AdvanceDepositedEvent is raised when unapplied funds are received
type AdvanceDepositedEvent struct {
	shared.BaseDomainEvent
	EntryID     uuid.UUID       `json:"entry_id"`
	TargetType  TargetKind      `json:"target_type"`
	TargetID    uuid.UUID       `json:"target_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method"`
	ReferenceNo string          `json:"reference_no"`
	Balance     decimal.Decimal `json:"balance"`
}

// EventType returns the event type name
func (e *AdvanceDepositedEvent) EventType() string {
	return EventTypeAdvanceDeposited
}

// NewAdvanceDepositedEvent creates a new AdvanceDepositedEvent
func NewAdvanceDepositedEvent(a *AdvanceAccount, entry *AdvanceEntry, now time.Time) *AdvanceDepositedEvent {
	return &AdvanceDepositedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAdvanceDeposited, "AdvanceAccount", a.ID, a.TenantID, now),
		EntryID:         entry.ID,
		TargetType:      a.Target.Kind(),
		TargetID:        a.Target.ID(),
		Amount:          entry.Amount,
		Method:          entry.Method,
		ReferenceNo:     entry.ReferenceNo,
		Balance:         entry.BalanceAfter,
	}
}

// ProvisionalConvertedEvent is raised when an application's fees move to a student
type ProvisionalConvertedEvent struct {
	shared.BaseDomainEvent
	ApplicationID    uuid.UUID `json:"application_id"`
	StudentID        uuid.UUID `json:"student_id"`
	AssignmentsMoved int       `json:"assignments_moved"`
}

// EventType returns the event type name
func (e *ProvisionalConvertedEvent) EventType() string {
	return EventTypeProvisionalConverted
}

// NewProvisionalConvertedEvent creates a new ProvisionalConvertedEvent
func NewProvisionalConvertedEvent(m *ProvisionalMigration, now time.Time) *ProvisionalConvertedEvent {
	return &ProvisionalConvertedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeProvisionalConverted, "ProvisionalMigration", m.ID, m.TenantID, now),
		ApplicationID:    m.ApplicationID,
		StudentID:        m.StudentID,
		AssignmentsMoved: m.AssignmentsMoved,
	}
}
