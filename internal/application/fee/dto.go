package fee

import (
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/shopspring/decimal"
)

// TargetView identifies a student or application in responses
type TargetView struct {
	Type fee.TargetKind `json:"type"`
	ID   uuid.UUID      `json:"id"`
}

func toTargetView(t fee.Target) TargetView {
	return TargetView{Type: t.Kind(), ID: t.ID()}
}

// FeeTypeResponse represents a fee type in API responses
type FeeTypeResponse struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Code      string        `json:"code"`
	Frequency fee.Frequency `json:"frequency"`
	IsSystem  bool          `json:"is_system"`
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ToFeeTypeResponse converts a fee type to its response
func ToFeeTypeResponse(t *fee.FeeType) FeeTypeResponse {
	return FeeTypeResponse{
		ID:        t.ID,
		Name:      t.Name,
		Code:      t.Code,
		Frequency: t.Frequency,
		IsSystem:  t.IsSystem,
		Version:   t.Version,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// FeeDiscountResponse represents a discount in API responses
type FeeDiscountResponse struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Code        string           `json:"code"`
	Type        fee.DiscountType `json:"type"`
	Percentage  decimal.Decimal  `json:"percentage"`
	FixedAmount decimal.Decimal  `json:"fixed_amount"`
	ExpiryDate  *time.Time       `json:"expiry_date,omitempty"`
	MaxUses     int              `json:"max_uses"`
	UseCount    int              `json:"use_count"`
	IsRecurring bool             `json:"is_recurring"`
	Version     int              `json:"version"`
}

// ToFeeDiscountResponse converts a discount to its response
func ToFeeDiscountResponse(d *fee.FeeDiscount) FeeDiscountResponse {
	return FeeDiscountResponse{
		ID:          d.ID,
		Name:        d.Name,
		Code:        d.Code,
		Type:        d.Type,
		Percentage:  d.Percentage,
		FixedAmount: d.FixedAmount,
		ExpiryDate:  d.ExpiryDate,
		MaxUses:     d.MaxUses,
		UseCount:    d.UseCount,
		IsRecurring: d.IsRecurring,
		Version:     d.Version,
	}
}

// FeeGroupResponse represents a fee group in API responses
type FeeGroupResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     int       `json:"version"`
}

// ToFeeGroupResponse converts a fee group to its response
func ToFeeGroupResponse(g *fee.FeeGroup) FeeGroupResponse {
	return FeeGroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Version:     g.Version,
	}
}

// FineRuleView is the fine rule of a binding or assignment
type FineRuleView struct {
	Type       fee.FineType    `json:"type"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

func toFineRuleView(r fee.FineRule) FineRuleView {
	return FineRuleView{Type: r.Type, Percentage: r.Percentage, Amount: r.Amount}
}

// PlanBindingResponse represents a plan binding in API responses
type PlanBindingResponse struct {
	ID                  uuid.UUID       `json:"id"`
	FeeGroupID          uuid.UUID       `json:"fee_group_id"`
	FeeTypeID           uuid.UUID       `json:"fee_type_id"`
	DiscountID          *uuid.UUID      `json:"discount_id,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	DueDate             *time.Time      `json:"due_date,omitempty"`
	Fine                FineRuleView    `json:"fine"`
	AllowPartialPayment bool            `json:"allow_partial_payment"`
	Version             int             `json:"version"`
}

// ToPlanBindingResponse converts a binding to its response
func ToPlanBindingResponse(b *fee.PlanBinding) PlanBindingResponse {
	return PlanBindingResponse{
		ID:                  b.ID,
		FeeGroupID:          b.FeeGroupID,
		FeeTypeID:           b.FeeTypeID,
		DiscountID:          b.DiscountID,
		Amount:              b.Amount,
		DueDate:             b.DueDate,
		Fine:                toFineRuleView(b.Fine),
		AllowPartialPayment: b.AllowPartialPayment,
		Version:             b.Version,
	}
}

// AssignmentView is an assignment evaluated at request time
type AssignmentView struct {
	ID                  uuid.UUID        `json:"id"`
	Target              TargetView       `json:"target"`
	PlanBindingID       uuid.UUID        `json:"plan_binding_id"`
	FeeTypeID           uuid.UUID        `json:"fee_type_id"`
	Month               int              `json:"month"`
	Year                int              `json:"year"`
	DueDate             *time.Time       `json:"due_date,omitempty"`
	AllowPartialPayment bool             `json:"allow_partial_payment"`
	DiscountID          *uuid.UUID       `json:"discount_id,omitempty"`
	Fine                FineRuleView     `json:"fine_rule"`
	FineCeiling         *decimal.Decimal `json:"fine_ceiling,omitempty"`
	OriginApplicationID *uuid.UUID       `json:"origin_application_id,omitempty"`
	Evaluation          fee.Evaluation   `json:"evaluation"`
	Deleted             bool             `json:"deleted"`
	Version             int              `json:"version"`
}

// ToAssignmentView evaluates a as of ev and builds its view
func ToAssignmentView(a *fee.FeeAssignment, ev fee.Evaluation) AssignmentView {
	return AssignmentView{
		ID:                  a.ID,
		Target:              toTargetView(a.Target),
		PlanBindingID:       a.PlanBindingID,
		FeeTypeID:           a.FeeTypeID,
		Month:               a.Month,
		Year:                a.Year,
		DueDate:             a.DueDate,
		AllowPartialPayment: a.AllowPartialPayment,
		DiscountID:          a.DiscountID,
		Fine:                toFineRuleView(a.Fine),
		FineCeiling:         a.FineCeiling,
		OriginApplicationID: a.OriginApplicationID,
		Evaluation:          ev,
		Deleted:             a.IsDeleted(),
		Version:             a.Version,
	}
}

// StampResult is the outcome of stamping one period
type StampResult struct {
	Assignment AssignmentView `json:"assignment"`
	// Created is false when the period was already stamped
	Created bool `json:"created"`
}

// StampGroupItem is the outcome for one binding of a group stamp
type StampGroupItem struct {
	PlanBindingID uuid.UUID    `json:"plan_binding_id"`
	FeeTypeID     uuid.UUID    `json:"fee_type_id"`
	Result        *StampResult `json:"result,omitempty"`
	Error         *LineError   `json:"error,omitempty"`
}

// StampGroupResult lists per-binding outcomes of a group stamp
type StampGroupResult struct {
	FeeGroupID uuid.UUID        `json:"fee_group_id"`
	Items      []StampGroupItem `json:"items"`
	Created    int              `json:"created"`
	Existing   int              `json:"existing"`
	Failed     int              `json:"failed"`
}

// TransactionView represents a fee transaction in API responses
type TransactionView struct {
	ID              uuid.UUID              `json:"id"`
	AssignmentID    uuid.UUID              `json:"assignment_id"`
	Target          TargetView             `json:"target"`
	AmountPaid      decimal.Decimal        `json:"amount_paid"`
	PaymentDate     time.Time              `json:"payment_date"`
	Method          fee.PaymentMethod      `json:"method"`
	ReferenceNo     string                 `json:"reference_no"`
	DiscountApplied decimal.Decimal        `json:"discount_applied"`
	FineApplied     decimal.Decimal        `json:"fine_applied"`
	Status          fee.TransactionStatus  `json:"status"`
	Note            string                 `json:"note,omitempty"`
	BatchID         *uuid.UUID             `json:"batch_id,omitempty"`
	AdvanceEntryID  *uuid.UUID             `json:"advance_entry_id,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	RevertedAt      *time.Time             `json:"reverted_at,omitempty"`
	RevertedBy      *uuid.UUID             `json:"reverted_by,omitempty"`
	RevertReason    string                 `json:"revert_reason,omitempty"`
}

// ToTransactionView converts a transaction to its view
func ToTransactionView(t *fee.FeeTransaction) TransactionView {
	return TransactionView{
		ID:              t.ID,
		AssignmentID:    t.AssignmentID,
		Target:          toTargetView(t.Target),
		AmountPaid:      t.AmountPaid,
		PaymentDate:     t.PaymentDate,
		Method:          t.Method,
		ReferenceNo:     t.ReferenceNo,
		DiscountApplied: t.DiscountApplied,
		FineApplied:     t.FineApplied,
		Status:          t.Status,
		Note:            t.Note,
		BatchID:         t.BatchID,
		AdvanceEntryID:  t.AdvanceEntryID,
		Metadata:        t.Metadata,
		RevertedAt:      t.RevertedAt,
		RevertedBy:      t.RevertedBy,
		RevertReason:    t.RevertReason,
	}
}

// PaymentReceipt is the result of a single-fee payment
type PaymentReceipt struct {
	Transaction TransactionView `json:"transaction"`
	Assignment  AssignmentView  `json:"assignment"`
	// AdvanceCredited is the overpaid excess deposited to the advance ledger
	AdvanceCredited decimal.Decimal `json:"advance_credited"`
}

// BatchReceipt is the result of a multi-fee payment
type BatchReceipt struct {
	BatchID      uuid.UUID         `json:"batch_id"`
	Total        decimal.Decimal   `json:"total"`
	Transactions []TransactionView `json:"transactions"`
	Assignments  []AssignmentView  `json:"assignments"`
}

// RevertResult is the result of reverting a transaction
type RevertResult struct {
	Transaction TransactionView `json:"transaction"`
	Assignment  AssignmentView  `json:"assignment"`
	// Restored is the amount credited back to the advance ledger
	Restored decimal.Decimal `json:"restored"`
	// AdvanceReversed is the overpayment credit taken back out of the advance ledger
	AdvanceReversed decimal.Decimal `json:"advance_reversed"`
}

// AdvanceEntryView represents an advance ledger entry
type AdvanceEntryView struct {
	ID            uuid.UUID            `json:"id"`
	Target        TargetView           `json:"target"`
	Type          fee.AdvanceEntryType `json:"type"`
	Amount        decimal.Decimal      `json:"amount"`
	BalanceBefore decimal.Decimal      `json:"balance_before"`
	BalanceAfter  decimal.Decimal      `json:"balance_after"`
	AssignmentID  *uuid.UUID           `json:"assignment_id,omitempty"`
	TransactionID *uuid.UUID           `json:"transaction_id,omitempty"`
	Method        fee.PaymentMethod    `json:"method"`
	ReferenceNo   string               `json:"reference_no,omitempty"`
	Remark        string               `json:"remark,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// ToAdvanceEntryView converts a ledger entry to its view
func ToAdvanceEntryView(e *fee.AdvanceEntry) AdvanceEntryView {
	return AdvanceEntryView{
		ID:            e.ID,
		Target:        toTargetView(e.Target),
		Type:          e.Type,
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		AssignmentID:  e.AssignmentID,
		TransactionID: e.TransactionID,
		Method:        e.Method,
		ReferenceNo:   e.ReferenceNo,
		Remark:        e.Remark,
		CreatedAt:     e.CreatedAt,
	}
}

// AdvanceBalanceView is a target's advance position computed from the ledger
type AdvanceBalanceView struct {
	Target       TargetView      `json:"target"`
	Deposits     decimal.Decimal `json:"deposits"`
	Consumptions decimal.Decimal `json:"consumptions"`
	Restores     decimal.Decimal `json:"restores"`
	Balance      decimal.Decimal `json:"balance"`
}

// ApplyAdvanceOutcome is the result for one assignment of ApplyAdvance
type ApplyAdvanceOutcome struct {
	AssignmentID  uuid.UUID       `json:"assignment_id"`
	Applied       decimal.Decimal `json:"applied"`
	Status        fee.Status      `json:"status,omitempty"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
	Skipped       bool            `json:"skipped"`
	Code          string          `json:"code,omitempty"`
	Message       string          `json:"message,omitempty"`
}

// ApplyAdvanceResult summarizes an ApplyAdvance run
type ApplyAdvanceResult struct {
	Target           TargetView            `json:"target"`
	Outcomes         []ApplyAdvanceOutcome `json:"outcomes"`
	TotalApplied     decimal.Decimal       `json:"total_applied"`
	RemainingBalance decimal.Decimal       `json:"remaining_balance"`
}

// WaiverView represents a fine waiver in API responses
type WaiverView struct {
	ID                  uuid.UUID        `json:"id"`
	AssignmentID        uuid.UUID        `json:"assignment_id"`
	Target              TargetView       `json:"target"`
	OriginalFineAmount  decimal.Decimal  `json:"original_fine_amount"`
	WaiverAmount        decimal.Decimal  `json:"waiver_amount"`
	RemainingFineAmount decimal.Decimal  `json:"remaining_fine_amount"`
	Reason              string           `json:"reason"`
	Status              fee.WaiverStatus `json:"status"`
	RequestedBy         uuid.UUID        `json:"requested_by"`
	RequestedDate       time.Time        `json:"requested_date"`
	ApprovedBy          *uuid.UUID       `json:"approved_by,omitempty"`
	ApprovalDate        *time.Time       `json:"approval_date,omitempty"`
	ApprovalNote        string           `json:"approval_note,omitempty"`
	Version             int              `json:"version"`
}

// ToWaiverView converts a waiver to its view
func ToWaiverView(w *fee.FineWaiver) WaiverView {
	return WaiverView{
		ID:                  w.ID,
		AssignmentID:        w.AssignmentID,
		Target:              toTargetView(w.Target),
		OriginalFineAmount:  w.OriginalFineAmount,
		WaiverAmount:        w.WaiverAmount,
		RemainingFineAmount: w.RemainingFineAmount,
		Reason:              w.Reason,
		Status:              w.Status,
		RequestedBy:         w.RequestedBy,
		RequestedDate:       w.RequestedDate,
		ApprovedBy:          w.ApprovedBy,
		ApprovalDate:        w.ApprovalDate,
		ApprovalNote:        w.ApprovalNote,
		Version:             w.Version,
	}
}

// WaiverDecision is the result of approving or rejecting a waiver
type WaiverDecision struct {
	Waiver     WaiverView      `json:"waiver"`
	Assignment *AssignmentView `json:"assignment,omitempty"`
}

// ConversionResult summarizes a provisional-to-active conversion
type ConversionResult struct {
	ApplicationID     uuid.UUID `json:"application_id"`
	StudentID         uuid.UUID `json:"student_id"`
	AssignmentsMoved  int       `json:"assignments_moved"`
	TransactionsMoved int64     `json:"transactions_moved"`
	WaiversMoved      int64     `json:"waivers_moved"`
	EntriesMoved      int64     `json:"advance_entries_moved"`
	AdvanceMoved      bool      `json:"advance_moved"`
	AdvanceMerged     bool      `json:"advance_merged"`
}
