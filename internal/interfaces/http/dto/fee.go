package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	feeapp "github.com/school/backend/internal/application/fee"
	"github.com/school/backend/internal/domain/fee"
)

// TargetRef names the student or application a request is about. It is
// bound from the body or from the query string.
type TargetRef struct {
	TargetType string `json:"target_type" form:"target_type" binding:"required,oneof=STUDENT APPLICATION"`
	TargetID   string `json:"target_id" form:"target_id" binding:"required,uuid"`
}

// ToTarget converts the reference into a billing target
func (r TargetRef) ToTarget() (fee.Target, error) {
	id, err := uuid.Parse(r.TargetID)
	if err != nil {
		return fee.Target{}, fee.ErrInvalidTarget
	}
	return fee.NewTarget(fee.TargetKind(r.TargetType), id)
}

// CreateFeeTypeRequest is the body of POST /fee-types
type CreateFeeTypeRequest struct {
	Name      string `json:"name" binding:"required,max=100"`
	Code      string `json:"code" binding:"required,max=50"`
	Frequency string `json:"frequency" binding:"required,oneof=ONE_TIME MONTHLY QUARTERLY HALF_YEARLY ANNUALLY"`
}

func (r CreateFeeTypeRequest) ToCommand() feeapp.CreateFeeTypeRequest {
	return feeapp.CreateFeeTypeRequest{
		Name:      r.Name,
		Code:      r.Code,
		Frequency: fee.Frequency(r.Frequency),
	}
}

// UpdateFeeTypeRequest is the body of PUT /fee-types/:id
type UpdateFeeTypeRequest struct {
	Name      string `json:"name" binding:"required,max=100"`
	Frequency string `json:"frequency" binding:"required,oneof=ONE_TIME MONTHLY QUARTERLY HALF_YEARLY ANNUALLY"`
}

func (r UpdateFeeTypeRequest) ToCommand() feeapp.UpdateFeeTypeRequest {
	return feeapp.UpdateFeeTypeRequest{
		Name:      r.Name,
		Frequency: fee.Frequency(r.Frequency),
	}
}

// CreateDiscountRequest is the body of POST /fee-discounts
type CreateDiscountRequest struct {
	Name        string           `json:"name" binding:"required,max=100"`
	Code        string           `json:"code" binding:"required,max=50"`
	Type        string           `json:"type" binding:"required,oneof=PERCENTAGE FIXED"`
	Percentage  *decimal.Decimal `json:"percentage" binding:"omitempty,decimal_gte0"`
	FixedAmount *decimal.Decimal `json:"fixed_amount" binding:"omitempty,decimal_gte0"`
	ExpiryDate  *time.Time       `json:"expiry_date"`
	MaxUses     int              `json:"max_uses" binding:"min=0"`
	IsRecurring bool             `json:"is_recurring"`
}

func (r CreateDiscountRequest) ToCommand() feeapp.CreateDiscountRequest {
	return feeapp.CreateDiscountRequest{
		Name:        r.Name,
		Code:        r.Code,
		Type:        fee.DiscountType(r.Type),
		Percentage:  valueOrZero(r.Percentage),
		FixedAmount: valueOrZero(r.FixedAmount),
		ExpiryDate:  r.ExpiryDate,
		MaxUses:     r.MaxUses,
		IsRecurring: r.IsRecurring,
	}
}

// CreateFeeGroupRequest is the body of POST /fee-groups
type CreateFeeGroupRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
}

func (r CreateFeeGroupRequest) ToCommand() feeapp.CreateFeeGroupRequest {
	return feeapp.CreateFeeGroupRequest{Name: r.Name, Description: r.Description}
}

// FineRequest describes a late fine; an omitted type means no fine
type FineRequest struct {
	Type       string           `json:"type" binding:"omitempty,oneof=NONE FIXED PERCENTAGE"`
	Amount     *decimal.Decimal `json:"amount" binding:"omitempty,decimal_gte0"`
	Percentage *decimal.Decimal `json:"percentage" binding:"omitempty,decimal_gte0"`
}

// ToRule converts the request into a fine rule
func (r *FineRequest) ToRule() fee.FineRule {
	if r == nil || r.Type == "" {
		return fee.NoFine()
	}
	return fee.FineRule{
		Type:       fee.FineType(r.Type),
		Amount:     valueOrZero(r.Amount),
		Percentage: valueOrZero(r.Percentage),
	}
}

// CreatePlanBindingRequest is the body of POST /plan-bindings
type CreatePlanBindingRequest struct {
	FeeGroupID          uuid.UUID       `json:"fee_group_id" binding:"required"`
	FeeTypeID           uuid.UUID       `json:"fee_type_id" binding:"required"`
	DiscountID          *uuid.UUID      `json:"discount_id"`
	Amount              decimal.Decimal `json:"amount" binding:"decimal_gte0"`
	DueDate             *time.Time      `json:"due_date"`
	Fine                *FineRequest    `json:"fine"`
	AllowPartialPayment *bool           `json:"allow_partial_payment"`
}

func (r CreatePlanBindingRequest) ToCommand() feeapp.CreatePlanBindingRequest {
	return feeapp.CreatePlanBindingRequest{
		FeeGroupID:          r.FeeGroupID,
		FeeTypeID:           r.FeeTypeID,
		DiscountID:          r.DiscountID,
		Amount:              r.Amount,
		DueDate:             r.DueDate,
		Fine:                r.Fine.ToRule(),
		AllowPartialPayment: r.AllowPartialPayment,
	}
}

// UpdatePlanBindingRequest is the body of PUT /plan-bindings/:id. It
// replaces every term of the binding.
type UpdatePlanBindingRequest struct {
	DiscountID          *uuid.UUID      `json:"discount_id"`
	Amount              decimal.Decimal `json:"amount" binding:"decimal_gte0"`
	DueDate             *time.Time      `json:"due_date"`
	Fine                *FineRequest    `json:"fine"`
	AllowPartialPayment bool            `json:"allow_partial_payment"`
}

func (r UpdatePlanBindingRequest) ToCommand() feeapp.UpdatePlanBindingRequest {
	return feeapp.UpdatePlanBindingRequest{
		DiscountID:          r.DiscountID,
		Amount:              r.Amount,
		DueDate:             r.DueDate,
		Fine:                r.Fine.ToRule(),
		AllowPartialPayment: r.AllowPartialPayment,
	}
}

// Period is a billing month
type Period struct {
	Month int `json:"month" binding:"required,min=1,max=12"`
	Year  int `json:"year" binding:"required,min=2000,max=2100"`
}

// StampRequest is the body of POST /fee-assignments
type StampRequest struct {
	TargetRef
	Period
	PlanBindingID       uuid.UUID  `json:"plan_binding_id" binding:"required"`
	DueDate             *time.Time `json:"due_date"`
	AllowPartialPayment *bool      `json:"allow_partial_payment"`
}

func (r StampRequest) ToCommand(target fee.Target) feeapp.StampRequest {
	return feeapp.StampRequest{
		PlanBindingID:       r.PlanBindingID,
		Target:              target,
		Month:               r.Month,
		Year:                r.Year,
		DueDate:             r.DueDate,
		AllowPartialPayment: r.AllowPartialPayment,
	}
}

// StampGroupRequest is the body of POST /fee-groups/:id/stamp
type StampGroupRequest struct {
	TargetRef
	Period
}

func (r StampGroupRequest) ToCommand(groupID uuid.UUID, target fee.Target) feeapp.StampGroupRequest {
	return feeapp.StampGroupRequest{
		FeeGroupID: groupID,
		Target:     target,
		Month:      r.Month,
		Year:       r.Year,
	}
}

// AssignmentListQuery is the query of GET /fee-assignments
type AssignmentListQuery struct {
	ListRequest
	TargetType     string `form:"target_type" binding:"omitempty,oneof=STUDENT APPLICATION"`
	TargetID       string `form:"target_id" binding:"omitempty,uuid"`
	PlanBindingID  string `form:"plan_binding_id" binding:"omitempty,uuid"`
	Month          *int   `form:"month" binding:"omitempty,min=1,max=12"`
	Year           *int   `form:"year" binding:"omitempty,min=2000,max=2100"`
	IncludeDeleted bool   `form:"include_deleted"`
}

// ToFilter converts the query; a target needs both its type and its ID
func (q AssignmentListQuery) ToFilter() (fee.AssignmentFilter, error) {
	filter := fee.AssignmentFilter{
		Filter:         q.ListRequest.ToFilter(),
		Month:          q.Month,
		Year:           q.Year,
		IncludeDeleted: q.IncludeDeleted,
	}
	if q.PlanBindingID != "" {
		id, err := uuid.Parse(q.PlanBindingID)
		if err != nil {
			return filter, err
		}
		filter.PlanBindingID = &id
	}
	if q.TargetType == "" && q.TargetID == "" {
		return filter, nil
	}
	target, err := TargetRef{TargetType: q.TargetType, TargetID: q.TargetID}.ToTarget()
	if err != nil {
		return filter, err
	}
	filter.Target = &target
	return filter, nil
}

// PaySingleFeeRequest is the body of POST /payments
type PaySingleFeeRequest struct {
	AssignmentID uuid.UUID              `json:"assignment_id" binding:"required"`
	Amount       decimal.Decimal        `json:"amount" binding:"decimal_gt0"`
	Method       string                 `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CARD CHEQUE ONLINE"`
	ReferenceNo  string                 `json:"reference_no" binding:"max=100"`
	Note         string                 `json:"note" binding:"max=500"`
	Metadata     map[string]interface{} `json:"metadata"`
}

func (r PaySingleFeeRequest) ToCommand() feeapp.PaySingleFeeRequest {
	return feeapp.PaySingleFeeRequest{
		AssignmentID: r.AssignmentID,
		Amount:       r.Amount,
		Method:       fee.PaymentMethod(r.Method),
		ReferenceNo:  r.ReferenceNo,
		Note:         r.Note,
		Metadata:     r.Metadata,
	}
}

// PaymentLineRequest is one line of a batch payment
type PaymentLineRequest struct {
	AssignmentID uuid.UUID       `json:"assignment_id" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"decimal_gt0"`
}

// PayMultipleFeesRequest is the body of POST /payments/batch
type PayMultipleFeesRequest struct {
	TargetRef
	Lines       []PaymentLineRequest `json:"lines" binding:"required,min=1,max=100,dive"`
	Method      string               `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CARD CHEQUE ONLINE"`
	ReferenceNo string               `json:"reference_no" binding:"max=100"`
	Note        string               `json:"note" binding:"max=500"`
}

func (r PayMultipleFeesRequest) ToCommand(target fee.Target) feeapp.PayMultipleFeesRequest {
	lines := make([]feeapp.PaymentLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = feeapp.PaymentLine{AssignmentID: l.AssignmentID, Amount: l.Amount}
	}
	return feeapp.PayMultipleFeesRequest{
		Target:      target,
		Lines:       lines,
		Method:      fee.PaymentMethod(r.Method),
		ReferenceNo: r.ReferenceNo,
		Note:        r.Note,
	}
}

// RevertRequest is the body of POST /payments/:id/revert
type RevertRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// RecordAdvanceRequest is the body of POST /advances
type RecordAdvanceRequest struct {
	TargetRef
	Amount      decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	Method      string          `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CARD CHEQUE ONLINE"`
	ReferenceNo string          `json:"reference_no" binding:"max=100"`
	Remark      string          `json:"remark" binding:"max=500"`
}

func (r RecordAdvanceRequest) ToCommand(target fee.Target) feeapp.RecordAdvanceRequest {
	return feeapp.RecordAdvanceRequest{
		Target:      target,
		Amount:      r.Amount,
		Method:      fee.PaymentMethod(r.Method),
		ReferenceNo: r.ReferenceNo,
		Remark:      r.Remark,
	}
}

// RequestWaiverRequest is the body of POST /fine-waivers
type RequestWaiverRequest struct {
	AssignmentID uuid.UUID       `json:"assignment_id" binding:"required"`
	WaiverAmount decimal.Decimal `json:"waiver_amount" binding:"decimal_gt0"`
	Reason       string          `json:"reason" binding:"required,max=500"`
}

// DecideWaiverRequest is the optional body of the approve and reject routes
type DecideWaiverRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// ConvertRequest is the body of POST /admissions/:application_id/convert
type ConvertRequest struct {
	StudentID uuid.UUID `json:"student_id" binding:"required"`
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
