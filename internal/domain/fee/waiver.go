package fee

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// WaiverStatus is the state of a fine waiver request
type WaiverStatus string

const (
	WaiverPending  WaiverStatus = "PENDING"
	WaiverApproved WaiverStatus = "APPROVED"
	WaiverRejected WaiverStatus = "REJECTED"
)

// IsTerminal reports whether no further transition is possible
func (s WaiverStatus) IsTerminal() bool {
	return s == WaiverApproved || s == WaiverRejected
}

// FineWaiver is a request to forgive part or all of an accrued fine.
// WaiverAmount + RemainingFineAmount = OriginalFineAmount always holds.
type FineWaiver struct {
	shared.TenantAggregateRoot
	AssignmentID        uuid.UUID
	Target              Target
	OriginalFineAmount  decimal.Decimal
	WaiverAmount        decimal.Decimal
	RemainingFineAmount decimal.Decimal
	Reason              string
	Status              WaiverStatus
	RequestedBy         uuid.UUID
	RequestedDate       time.Time
	ApprovedBy          *uuid.UUID
	ApprovalDate        *time.Time
	ApprovalNote        string
}

// NewFineWaiver opens a waiver request against the assignment's current fine
func NewFineWaiver(assignment *FeeAssignment, current Evaluation, amount decimal.Decimal, reason string, requestedBy uuid.UUID, now time.Time) (*FineWaiver, error) {
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if requestedBy == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_REQUESTER", "Requesting user is required")
	}
	if !current.Fine.IsPositive() {
		return nil, ErrNoFineAccrued
	}
	if amount.GreaterThan(current.Fine) {
		return nil, ErrExceedsAccruedFine
	}
	if amount.GreaterThan(current.Balance) {
		return nil, shared.NewInvariantViolation("FINE_ALREADY_SETTLED", "Waiver amount exceeds the unpaid balance")
	}

	w := &FineWaiver{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(assignment.TenantID, now),
		AssignmentID:        assignment.ID,
		Target:              assignment.Target,
		OriginalFineAmount:  current.Fine,
		WaiverAmount:        amount,
		RemainingFineAmount: current.Fine.Sub(amount),
		Reason:              strings.TrimSpace(reason),
		Status:              WaiverPending,
		RequestedBy:         requestedBy,
		RequestedDate:       now,
	}
	w.SetCreatedBy(&requestedBy)
	return w, nil
}

// Approve decides the waiver in favour. The caller applies RemainingFineAmount
// to the assignment as its fine ceiling in the same unit of work.
func (w *FineWaiver) Approve(approvedBy uuid.UUID, note string, now time.Time) error {
	if err := w.decide(approvedBy, note, now); err != nil {
		return err
	}
	w.Status = WaiverApproved
	w.AddDomainEvent(NewWaiverApprovedEvent(w, now))
	return nil
}

// Reject closes the waiver without touching the assignment
func (w *FineWaiver) Reject(rejectedBy uuid.UUID, note string, now time.Time) error {
	if err := w.decide(rejectedBy, note, now); err != nil {
		return err
	}
	w.Status = WaiverRejected
	return nil
}

func (w *FineWaiver) decide(by uuid.UUID, note string, now time.Time) error {
	if w.Status != WaiverPending {
		return ErrWaiverNotPending
	}
	if by == uuid.Nil {
		return shared.NewValidationError("INVALID_APPROVER", "Deciding user is required")
	}
	w.ApprovedBy = &by
	w.ApprovalDate = &now
	w.ApprovalNote = strings.TrimSpace(note)
	w.MarkUpdated(&by, now)
	return nil
}
