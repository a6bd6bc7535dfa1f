package fee

import "github.com/school/backend/internal/domain/shared"

// Fee ledger errors with stable codes
var (
	errInvalidMonth = shared.NewValidationError("INVALID_PERIOD", "Billing month must be between 1 and 12")
	errInvalidYear  = shared.NewValidationError("INVALID_PERIOD", "Billing year is out of range")

	ErrInvalidTarget        = shared.NewValidationError("INVALID_TARGET", "Exactly one of student or application must be given")
	ErrInvalidAmount        = shared.NewValidationError("INVALID_AMOUNT", "Amount must be greater than zero")
	ErrInvalidPaymentMethod = shared.NewValidationError("INVALID_PAYMENT_METHOD", "Unknown payment method")

	ErrAssignmentNotFound  = shared.NewNotFoundError("ASSIGNMENT_NOT_FOUND", "Fee assignment not found")
	ErrTransactionNotFound = shared.NewNotFoundError("TRANSACTION_NOT_FOUND", "Fee transaction not found")
	ErrWaiverNotFound      = shared.NewNotFoundError("WAIVER_NOT_FOUND", "Fine waiver not found")
	ErrBindingNotFound     = shared.NewNotFoundError("PLAN_BINDING_NOT_FOUND", "Plan binding not found")
	ErrFeeTypeNotFound     = shared.NewNotFoundError("FEE_TYPE_NOT_FOUND", "Fee type not found")
	ErrFeeGroupNotFound    = shared.NewNotFoundError("FEE_GROUP_NOT_FOUND", "Fee group not found")
	ErrDiscountNotFound    = shared.NewNotFoundError("DISCOUNT_NOT_FOUND", "Fee discount not found")
	ErrTargetNotFound      = shared.NewNotFoundError("TARGET_NOT_FOUND", "Student or application not found in this tenant")

	ErrExceedsBalance      = shared.NewInvariantViolation("EXCEEDS_BALANCE", "Payment exceeds the outstanding balance")
	ErrExceedsAccruedFine  = shared.NewInvariantViolation("EXCEEDS_ACCRUED_FINE", "Waiver amount exceeds the currently accrued fine")
	ErrNegativePaid        = shared.NewInvariantViolation("NEGATIVE_PAID_AMOUNT", "Paid amount cannot become negative")
	ErrInsufficientAdvance = shared.NewInvariantViolation("INSUFFICIENT_ADVANCE", "Advance balance is insufficient")

	ErrPartialNotAllowed    = shared.NewPolicyError("PARTIAL_PAYMENT_NOT_ALLOWED", "Partial payment is not allowed for this fee; pay the full balance")
	ErrAlreadyPaid          = shared.NewPolicyError("ALREADY_PAID", "Fee assignment is already fully paid")
	ErrAlreadyReverted      = shared.NewPolicyError("ALREADY_REVERTED", "Transaction has already been reverted")
	ErrReversalWindowClosed = shared.NewPolicyError("REVERSAL_WINDOW_CLOSED", "The billing period is closed for reversals")
	ErrAdvanceCreditSpent   = shared.NewPolicyError("ADVANCE_CREDIT_SPENT", "The overpayment credited to the advance ledger has already been used")
	ErrWaiverPending        = shared.NewPolicyError("WAIVER_PENDING", "A fine waiver is already pending for this assignment")
	ErrWaiverNotPending     = shared.NewPolicyError("WAIVER_NOT_PENDING", "Only pending waivers can be decided")
	ErrNoFineAccrued        = shared.NewPolicyError("NO_FINE_ACCRUED", "No fine has accrued on this assignment")
	ErrAssignmentDeleted    = shared.NewPolicyError("ASSIGNMENT_DELETED", "Fee assignment has been deleted")
	ErrAssignmentHasPayment = shared.NewPolicyError("ASSIGNMENT_HAS_PAYMENTS", "Fee assignment with payments cannot be deleted")
	ErrAlreadyMigrated      = shared.NewPolicyError("ALREADY_MIGRATED", "Application fees have already been converted to the student")
	ErrNotProvisional       = shared.NewPolicyError("NOT_PROVISIONAL", "Only application fees can be converted to a student")
	ErrBindingInUse         = shared.NewPolicyError("BINDING_IN_USE", "Plan binding is referenced by fee assignments")
	ErrReferencedByBinding  = shared.NewPolicyError("REFERENCED_BY_PLAN_BINDING", "Referenced by a plan binding")
	ErrDuplicateBinding     = shared.NewValidationError("DUPLICATE_PLAN_BINDING", "Fee type is already bound to this fee group")
	ErrDuplicateCode        = shared.NewValidationError("DUPLICATE_CODE", "Code already exists in this tenant")

	ErrConcurrentModification = shared.NewConflictError("OPTIMISTIC_LOCK_ERROR", "The record has been modified by another transaction")
)
