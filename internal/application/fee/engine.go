package fee

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Result is the uniform outcome of an Engine operation. On failure Data is the
// zero value and ErrorKind/ErrorCode classify the error; batch rejections also
// carry one entry per failing line.
type Result[T any] struct {
	Success   bool             `json:"success"`
	Data      T                `json:"data,omitempty"`
	Message   string           `json:"message,omitempty"`
	ErrorKind shared.ErrorKind `json:"error_kind,omitempty"`
	ErrorCode string           `json:"error_code,omitempty"`
	Errors    []LineError      `json:"errors,omitempty"`
}

// Err rebuilds an error from a failed result, or returns nil
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	return shared.NewDomainError(r.ErrorKind, r.ErrorCode, r.Message)
}

// Empty is the data of operations that return nothing
type Empty struct{}

// Engine is the single entry point to the fee ledger. No method returns a Go
// error or lets a panic escape.
type Engine struct {
	Catalog     *CatalogService
	Assignments *AssignmentService
	Payments    *PaymentService
	Advances    *AdvanceService
	Waivers     *WaiverService
	logger      *zap.Logger
}

// NewEngine wires every service over the same dependencies and options
func NewEngine(deps Dependencies, opts ...Option) *Engine {
	c := newCore(deps, opts...)
	return &Engine{
		Catalog:     &CatalogService{core: c},
		Assignments: &AssignmentService{core: c},
		Payments:    &PaymentService{core: c},
		Advances:    &AdvanceService{core: c},
		Waivers:     &WaiverService{core: c},
		logger:      c.logger,
	}
}

func run[T any](ctx context.Context, logger *zap.Logger, op, okMessage string, fn func(context.Context) (T, error)) (res Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("engine operation panicked",
				zap.String("operation", op),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()),
			)
			res = Result[T]{
				Success:   false,
				Message:   fmt.Sprintf("internal error during %s", op),
				ErrorKind: shared.KindInfrastructure,
				ErrorCode: "INTERNAL_ERROR",
			}
		}
	}()

	data, err := fn(ctx)
	if err != nil {
		return failure[T](logger, op, err)
	}
	return Result[T]{Success: true, Data: data, Message: okMessage}
}

func failure[T any](logger *zap.Logger, op string, err error) Result[T] {
	res := Result[T]{
		Success:   false,
		Message:   err.Error(),
		ErrorKind: shared.KindOf(err),
		ErrorCode: shared.CodeOf(err),
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		res.Message = de.Message
	}
	var be *BatchError
	if errors.As(err, &be) {
		res.ErrorCode = ErrBatchRejected.Code
		res.Message = be.Error()
		res.Errors = be.Lines
	}
	if res.ErrorKind == shared.KindInfrastructure {
		logger.Error("engine operation failed", zap.String("operation", op), zap.Error(err))
		res.Message = fmt.Sprintf("internal error during %s", op)
	}
	return res
}

func empty(err error) (Empty, error) {
	return Empty{}, err
}

// CreateFeeType creates a fee type
func (e *Engine) CreateFeeType(ctx context.Context, h shared.TenantHandle, req CreateFeeTypeRequest) Result[*FeeTypeResponse] {
	return run(ctx, e.logger, "create_fee_type", "Fee type created", func(ctx context.Context) (*FeeTypeResponse, error) {
		return e.Catalog.CreateFeeType(ctx, h, req)
	})
}

// UpdateFeeType renames a fee type or changes its frequency
func (e *Engine) UpdateFeeType(ctx context.Context, h shared.TenantHandle, id uuid.UUID, req UpdateFeeTypeRequest) Result[*FeeTypeResponse] {
	return run(ctx, e.logger, "update_fee_type", "Fee type updated", func(ctx context.Context) (*FeeTypeResponse, error) {
		return e.Catalog.UpdateFeeType(ctx, h, id, req)
	})
}

// GetFeeType retrieves a fee type
func (e *Engine) GetFeeType(ctx context.Context, h shared.TenantHandle, id uuid.UUID) Result[*FeeTypeResponse] {
	return run(ctx, e.logger, "get_fee_type", "", func(ctx context.Context) (*FeeTypeResponse, error) {
		return e.Catalog.GetFeeType(ctx, h, id)
	})
}

// ListFeeTypes lists fee types
func (e *Engine) ListFeeTypes(ctx context.Context, h shared.TenantHandle, filter shared.Filter) Result[*shared.Paginated[FeeTypeResponse]] {
	return run(ctx, e.logger, "list_fee_types", "", func(ctx context.Context) (*shared.Paginated[FeeTypeResponse], error) {
		return e.Catalog.ListFeeTypes(ctx, h, filter)
	})
}

// DeleteFeeType soft-deletes an unreferenced fee type
func (e *Engine) DeleteFeeType(ctx context.Context, h shared.TenantHandle, id uuid.UUID) Result[Empty] {
	return run(ctx, e.logger, "delete_fee_type", "Fee type deleted", func(ctx context.Context) (Empty, error) {
		return empty(e.Catalog.DeleteFeeType(ctx, h, id))
	})
}

// CreateDiscount creates a discount
func (e *Engine) CreateDiscount(ctx context.Context, h shared.TenantHandle, req CreateDiscountRequest) Result[*FeeDiscountResponse] {
	return run(ctx, e.logger, "create_discount", "Discount created", func(ctx context.Context) (*FeeDiscountResponse, error) {
		return e.Catalog.CreateDiscount(ctx, h, req)
	})
}

// GetDiscount retrieves a discount
func (e *Engine) GetDiscount(ctx context.Context, h shared.TenantHandle, id uuid.UUID) Result[*FeeDiscountResponse] {
	return run(ctx, e.logger, "get_discount", "", func(ctx context.Context) (*FeeDiscountResponse, error) {
		return e.Catalog.GetDiscount(ctx, h, id)
	})
}

// DeleteDiscount soft-deletes an unreferenced discount
func (e *Engine) DeleteDiscount(ctx context.Context, h shared.TenantHandle, id uuid.UUID) Result[Empty] {
	return run(ctx, e.logger, "delete_discount", "Discount deleted", func(ctx context.Context) (Empty, error) {
		return empty(e.Catalog.DeleteDiscount(ctx, h, id))
	})
}

// CreateFeeGroup creates a fee group
func (e *Engine) CreateFeeGroup(ctx context.Context, h shared.TenantHandle, req CreateFeeGroupRequest) Result[*FeeGroupResponse] {
	return run(ctx, e.logger, "create_fee_group", "Fee group created", func(ctx context.Context) (*FeeGroupResponse, error) {
		return e.Catalog.CreateFeeGroup(ctx, h, req)
	})
}

// ListFeeGroups lists fee groups
func (e *Engine) ListFeeGroups(ctx context.Context, h shared.TenantHandle, filter shared.Filter) Result[*shared.Paginated[FeeGroupResponse]] {
	return run(ctx, e.logger, "list_fee_groups", "", func(ctx context.Context) (*shared.Paginated[FeeGroupResponse], error) {
		return e.Catalog.ListFeeGroups(ctx, h, filter)
	})
}

// DeleteFeeGroup soft-deletes a fee group without bindings
func (e *Engine) DeleteFeeGroup(ctx context.Context, h shared.TenantHandle, id uuid.UUID) Result[Empty] {
	return run(ctx, e.logger, "delete_fee_group", "Fee group deleted", func(ctx context.Context) (Empty, error) {
		return empty(e.Catalog.DeleteFeeGroup(ctx, h, id))
	})
}

// CreatePlanBinding binds a fee type into a fee group
func (e *Engine) CreatePlanBinding(ctx context.Context, h shared.TenantHandle, req CreatePlanBindingRequest) Result[*PlanBindingResponse] {
	return run(ctx, e.logger, "create_plan_binding", "Plan binding created", func(ctx context.Context) (*PlanBindingResponse, error) {
		return e.Catalog.CreatePlanBinding(ctx, h, req)
	})
}

// UpdatePlanBinding changes a binding's terms for future stamps
func (e *Engine) UpdatePlanBinding(ctx context.Context, h shared.TenantHandle, id uuid.UUID, req UpdatePlanBindingRequest) Result[*PlanBindingResponse] {
	return run(ctx, e.logger, "update_plan_binding", "Plan binding updated", func(ctx context.Context) (*PlanBindingResponse, error) {
		return e.Catalog.UpdatePlanBinding(ctx, h, id, req)
	})
}

// GetPlanBinding retrieves a binding
func (e *Engine) GetPlanBinding(ctx context.Context, h shared.TenantHandle, id uuid.UUID) Result[*PlanBindingResponse] {
	return run(ctx, e.logger, "get_plan_binding", "", func(ctx context.Context) (*PlanBindingResponse, error) {
		return e.Catalog.GetPlanBinding(ctx, h, id)
	})
}

// ListPlanBindings lists the bindings of a fee group
func (e *Engine) ListPlanBindings(ctx context.Context, h shared.TenantHandle, feeGroupID uuid.UUID) Result[[]PlanBindingResponse] {
	return run(ctx, e.logger, "list_plan_bindings", "", func(ctx context.Context) ([]PlanBindingResponse, error) {
		return e.Catalog.ListPlanBindings(ctx, h, feeGroupID)
	})
}

// DeletePlanBinding removes a binding no assignment refers to
func (e *Engine) DeletePlanBinding(ctx context.Context, h shared.TenantHandle, id uuid.UUID) Result[Empty] {
	return run(ctx, e.logger, "delete_plan_binding", "Plan binding deleted", func(ctx context.Context) (Empty, error) {
		return empty(e.Catalog.DeletePlanBinding(ctx, h, id))
	})
}

// Stamp materializes one binding for a target and period
func (e *Engine) Stamp(ctx context.Context, h shared.TenantHandle, req StampRequest) Result[*StampResult] {
	return run(ctx, e.logger, "stamp", "Fee assignment stamped", func(ctx context.Context) (*StampResult, error) {
		return e.Assignments.Stamp(ctx, h, req)
	})
}

// StampGroup stamps every binding of a fee group
func (e *Engine) StampGroup(ctx context.Context, h shared.TenantHandle, req StampGroupRequest) Result[*StampGroupResult] {
	return run(ctx, e.logger, "stamp_group", "Fee group stamped", func(ctx context.Context) (*StampGroupResult, error) {
		return e.Assignments.StampGroup(ctx, h, req)
	})
}

// GetAssignment retrieves an assignment evaluated as of now
func (e *Engine) GetAssignment(ctx context.Context, h shared.TenantHandle, id uuid.UUID) Result[*AssignmentView] {
	return run(ctx, e.logger, "get_assignment", "", func(ctx context.Context) (*AssignmentView, error) {
		return e.Assignments.GetAssignment(ctx, h, id)
	})
}

// ListAssignments lists assignments matching filter
func (e *Engine) ListAssignments(ctx context.Context, h shared.TenantHandle, filter fee.AssignmentFilter) Result[*shared.Paginated[AssignmentView]] {
	return run(ctx, e.logger, "list_assignments", "", func(ctx context.Context) (*shared.Paginated[AssignmentView], error) {
		return e.Assignments.ListAssignments(ctx, h, filter)
	})
}

// DeleteAssignment soft-deletes an assignment without payments
func (e *Engine) DeleteAssignment(ctx context.Context, h shared.TenantHandle, id uuid.UUID) Result[Empty] {
	return run(ctx, e.logger, "delete_assignment", "Fee assignment deleted", func(ctx context.Context) (Empty, error) {
		return empty(e.Assignments.DeleteAssignment(ctx, h, id))
	})
}

// ConvertProvisionalToActive moves an application's fees to the admitted student
func (e *Engine) ConvertProvisionalToActive(ctx context.Context, h shared.TenantHandle, applicationID, studentID uuid.UUID) Result[*ConversionResult] {
	return run(ctx, e.logger, "convert_provisional", "Application fees converted", func(ctx context.Context) (*ConversionResult, error) {
		return e.Assignments.ConvertProvisionalToActive(ctx, h, applicationID, studentID)
	})
}

// PaySingleFee records a payment against one assignment
func (e *Engine) PaySingleFee(ctx context.Context, h shared.TenantHandle, req PaySingleFeeRequest) Result[*PaymentReceipt] {
	return run(ctx, e.logger, "pay_single_fee", "Payment recorded", func(ctx context.Context) (*PaymentReceipt, error) {
		return e.Payments.PaySingleFee(ctx, h, req)
	})
}

// PayMultipleFees records an all-or-nothing batch payment
func (e *Engine) PayMultipleFees(ctx context.Context, h shared.TenantHandle, req PayMultipleFeesRequest) Result[*BatchReceipt] {
	return run(ctx, e.logger, "pay_multiple_fees", "Batch payment recorded", func(ctx context.Context) (*BatchReceipt, error) {
		return e.Payments.PayMultipleFees(ctx, h, req)
	})
}

// RevertFeeTransaction reverts a completed payment
func (e *Engine) RevertFeeTransaction(ctx context.Context, h shared.TenantHandle, req RevertRequest) Result[*RevertResult] {
	return run(ctx, e.logger, "revert_fee_transaction", "Payment reverted", func(ctx context.Context) (*RevertResult, error) {
		return e.Payments.RevertFeeTransaction(ctx, h, req)
	})
}

// ListTransactions lists an assignment's transactions
func (e *Engine) ListTransactions(ctx context.Context, h shared.TenantHandle, assignmentID uuid.UUID) Result[[]TransactionView] {
	return run(ctx, e.logger, "list_transactions", "", func(ctx context.Context) ([]TransactionView, error) {
		return e.Payments.ListTransactions(ctx, h, assignmentID)
	})
}

// GetTransaction retrieves a transaction
func (e *Engine) GetTransaction(ctx context.Context, h shared.TenantHandle, id uuid.UUID) Result[*TransactionView] {
	return run(ctx, e.logger, "get_transaction", "", func(ctx context.Context) (*TransactionView, error) {
		return e.Payments.GetTransaction(ctx, h, id)
	})
}

// RecordAdvancePayment deposits unapplied funds for a target
func (e *Engine) RecordAdvancePayment(ctx context.Context, h shared.TenantHandle, req RecordAdvanceRequest) Result[*AdvanceEntryView] {
	return run(ctx, e.logger, "record_advance", "Advance payment recorded", func(ctx context.Context) (*AdvanceEntryView, error) {
		return e.Advances.RecordAdvancePayment(ctx, h, req)
	})
}

// GetAdvanceBalance returns a target's advance totals
func (e *Engine) GetAdvanceBalance(ctx context.Context, h shared.TenantHandle, target fee.Target) Result[*AdvanceBalanceView] {
	return run(ctx, e.logger, "get_advance_balance", "", func(ctx context.Context) (*AdvanceBalanceView, error) {
		return e.Advances.GetAdvanceBalance(ctx, h, target)
	})
}

// ListAdvanceEntries returns a target's advance ledger
func (e *Engine) ListAdvanceEntries(ctx context.Context, h shared.TenantHandle, target fee.Target) Result[[]AdvanceEntryView] {
	return run(ctx, e.logger, "list_advance_entries", "", func(ctx context.Context) ([]AdvanceEntryView, error) {
		return e.Advances.ListAdvanceEntries(ctx, h, target)
	})
}

// ApplyAdvance spends a target's advance on its open assignments
func (e *Engine) ApplyAdvance(ctx context.Context, h shared.TenantHandle, req ApplyAdvanceRequest) Result[*ApplyAdvanceResult] {
	return run(ctx, e.logger, "apply_advance", "Advance applied", func(ctx context.Context) (*ApplyAdvanceResult, error) {
		return e.Advances.ApplyAdvance(ctx, h, req)
	})
}

// RequestWaiver opens a fine waiver request
func (e *Engine) RequestWaiver(ctx context.Context, h shared.TenantHandle, req RequestWaiverRequest) Result[*WaiverView] {
	return run(ctx, e.logger, "request_waiver", "Fine waiver requested", func(ctx context.Context) (*WaiverView, error) {
		return e.Waivers.RequestWaiver(ctx, h, req)
	})
}

// ApproveWaiver approves a pending waiver
func (e *Engine) ApproveWaiver(ctx context.Context, h shared.TenantHandle, req DecideWaiverRequest) Result[*WaiverDecision] {
	return run(ctx, e.logger, "approve_waiver", "Fine waiver approved", func(ctx context.Context) (*WaiverDecision, error) {
		return e.Waivers.ApproveWaiver(ctx, h, req)
	})
}

// RejectWaiver rejects a pending waiver
func (e *Engine) RejectWaiver(ctx context.Context, h shared.TenantHandle, req DecideWaiverRequest) Result[*WaiverDecision] {
	return run(ctx, e.logger, "reject_waiver", "Fine waiver rejected", func(ctx context.Context) (*WaiverDecision, error) {
		return e.Waivers.RejectWaiver(ctx, h, req)
	})
}

// GetWaiver retrieves a waiver
func (e *Engine) GetWaiver(ctx context.Context, h shared.TenantHandle, id uuid.UUID) Result[*WaiverView] {
	return run(ctx, e.logger, "get_waiver", "", func(ctx context.Context) (*WaiverView, error) {
		return e.Waivers.GetWaiver(ctx, h, id)
	})
}

// ListWaivers lists an assignment's waivers
func (e *Engine) ListWaivers(ctx context.Context, h shared.TenantHandle, assignmentID uuid.UUID) Result[[]WaiverView] {
	return run(ctx, e.logger, "list_waivers", "", func(ctx context.Context) ([]WaiverView, error) {
		return e.Waivers.ListWaivers(ctx, h, assignmentID)
	})
}
