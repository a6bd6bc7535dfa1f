package fee

import (
	"context"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// FeeTypeRepository persists fee types
type FeeTypeRepository interface {
	// FindByIDForTenant finds a live fee type within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*FeeType, error)
	// FindAllForTenant lists live fee types
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]FeeType, int64, error)
	// ExistsByCode checks for a live fee type with the same code
	ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error)
	// Create inserts a new fee type
	Create(ctx context.Context, feeType *FeeType) error
	// SaveWithLock updates a fee type with optimistic locking
	SaveWithLock(ctx context.Context, feeType *FeeType) error
}

// FeeDiscountRepository persists discounts
type FeeDiscountRepository interface {
	// FindByIDForTenant finds a discount within a tenant, including deleted ones
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*FeeDiscount, error)
	// ExistsByCode checks for a live discount with the same code
	ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error)
	// Create inserts a new discount
	Create(ctx context.Context, discount *FeeDiscount) error
	// SaveWithLock updates a discount with optimistic locking
	SaveWithLock(ctx context.Context, discount *FeeDiscount) error
}

// FeeGroupRepository persists fee groups
type FeeGroupRepository interface {
	// FindByIDForTenant finds a live fee group within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*FeeGroup, error)
	// FindAllForTenant lists live fee groups
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]FeeGroup, int64, error)
	// Create inserts a new fee group
	Create(ctx context.Context, group *FeeGroup) error
	// SaveWithLock updates a fee group with optimistic locking
	SaveWithLock(ctx context.Context, group *FeeGroup) error
}

// PlanBindingRepository persists plan bindings
type PlanBindingRepository interface {
	// FindByIDForTenant finds a binding within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PlanBinding, error)
	// FindByGroup lists the bindings of a fee group
	FindByGroup(ctx context.Context, tenantID, feeGroupID uuid.UUID) ([]PlanBinding, error)
	// ExistsByGroupAndType checks the (group, type) uniqueness rule
	ExistsByGroupAndType(ctx context.Context, tenantID, feeGroupID, feeTypeID uuid.UUID) (bool, error)
	// CountReferencing counts bindings that reference a fee type, group or discount
	CountReferencing(ctx context.Context, tenantID uuid.UUID, ref BindingReference) (int64, error)
	// Create inserts a new binding
	Create(ctx context.Context, binding *PlanBinding) error
	// SaveWithLock updates a binding with optimistic locking
	SaveWithLock(ctx context.Context, binding *PlanBinding) error
	// DeleteForTenant removes a binding
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// BindingReference selects which foreign key CountReferencing matches on.
// Exactly one field is set.
type BindingReference struct {
	FeeTypeID  *uuid.UUID
	FeeGroupID *uuid.UUID
	DiscountID *uuid.UUID
}

// AssignmentFilter filters assignment listings
type AssignmentFilter struct {
	shared.Filter
	Target         *Target
	PlanBindingID  *uuid.UUID
	Month          *int
	Year           *int
	IncludeDeleted bool
}

// AssignmentRepository persists fee assignments
type AssignmentRepository interface {
	// FindByIDForTenant finds an assignment within a tenant, including deleted ones
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*FeeAssignment, error)
	// FindByIDsForTenant loads assignments in ascending ID order
	FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]FeeAssignment, error)
	// FindForPeriod finds the assignment of (target, binding, month, year), including deleted ones
	FindForPeriod(ctx context.Context, tenantID uuid.UUID, target Target, planBindingID uuid.UUID, month, year int) (*FeeAssignment, error)
	// ExistsForFeeType reports whether target already has a live assignment of feeTypeID
	ExistsForFeeType(ctx context.Context, tenantID uuid.UUID, target Target, feeTypeID uuid.UUID) (bool, error)
	// FindOpenByTarget lists live assignments of target that are not fully paid at the last write
	FindOpenByTarget(ctx context.Context, tenantID uuid.UUID, target Target) ([]FeeAssignment, error)
	// FindByTarget lists every assignment of target, live or deleted, oldest period first
	FindByTarget(ctx context.Context, tenantID uuid.UUID, target Target) ([]FeeAssignment, error)
	// FindAllForTenant lists assignments
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter AssignmentFilter) ([]FeeAssignment, int64, error)
	// CountByPlanBinding counts assignments, live or deleted, stamped from a binding
	CountByPlanBinding(ctx context.Context, tenantID, planBindingID uuid.UUID) (int64, error)
	// Create inserts a new assignment; a duplicate period returns ErrDuplicatePeriod
	Create(ctx context.Context, assignment *FeeAssignment, snapshot Evaluation) error
	// SaveWithLock updates an assignment with optimistic locking. Moving an
	// assignment onto a period the new target already holds returns ErrDuplicatePeriod.
	SaveWithLock(ctx context.Context, assignment *FeeAssignment, snapshot Evaluation) error
}

// TransactionRepository persists fee transactions
type TransactionRepository interface {
	// FindByIDForTenant finds a transaction within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*FeeTransaction, error)
	// FindByAssignment lists the transactions of an assignment oldest first
	FindByAssignment(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]FeeTransaction, error)
	// SumCompleted sums completed amounts for an assignment
	SumCompleted(ctx context.Context, tenantID, assignmentID uuid.UUID) (decimal.Decimal, error)
	// Create inserts a new transaction
	Create(ctx context.Context, transaction *FeeTransaction) error
	// SaveWithLock updates a transaction with optimistic locking
	SaveWithLock(ctx context.Context, transaction *FeeTransaction) error
	// RetargetApplication moves every transaction of an application to a student
	RetargetApplication(ctx context.Context, tenantID, applicationID, studentID uuid.UUID) (int64, error)
}

// WaiverRepository persists fine waivers
type WaiverRepository interface {
	// FindByIDForTenant finds a waiver within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*FineWaiver, error)
	// FindByAssignment lists the waivers of an assignment newest first
	FindByAssignment(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]FineWaiver, error)
	// ExistsPending reports whether an assignment has a pending waiver
	ExistsPending(ctx context.Context, tenantID, assignmentID uuid.UUID) (bool, error)
	// Create inserts a new waiver; a second pending one for an assignment returns ErrWaiverPending
	Create(ctx context.Context, waiver *FineWaiver) error
	// SaveWithLock updates a waiver with optimistic locking
	SaveWithLock(ctx context.Context, waiver *FineWaiver) error
	// RetargetApplication moves every waiver of an application to a student
	RetargetApplication(ctx context.Context, tenantID, applicationID, studentID uuid.UUID) (int64, error)
}

// AdvanceRepository persists advance accounts and their ledger
type AdvanceRepository interface {
	// FindAccount returns the target's account, or nil when none exists
	FindAccount(ctx context.Context, tenantID uuid.UUID, target Target) (*AdvanceAccount, error)
	// CreateAccount inserts a new account
	CreateAccount(ctx context.Context, account *AdvanceAccount) error
	// SaveAccountWithLock updates an account with optimistic locking
	SaveAccountWithLock(ctx context.Context, account *AdvanceAccount) error
	// AppendEntry inserts an immutable ledger entry
	AppendEntry(ctx context.Context, entry *AdvanceEntry) error
	// ListEntries lists a target's ledger oldest first
	ListEntries(ctx context.Context, tenantID uuid.UUID, target Target) ([]AdvanceEntry, error)
	// Totals sums a target's ledger by entry type
	Totals(ctx context.Context, tenantID uuid.UUID, target Target) (AdvanceTotals, error)
	// FindEntryForTransaction finds the entry of typ linked to a transaction, or nil
	FindEntryForTransaction(ctx context.Context, tenantID, transactionID uuid.UUID, typ AdvanceEntryType) (*AdvanceEntry, error)
	// RetargetApplicationEntries moves ledger entries of an application to a student
	RetargetApplicationEntries(ctx context.Context, tenantID, applicationID, studentID uuid.UUID) (int64, error)
}

// MigrationRepository persists provisional-to-active migration markers
type MigrationRepository interface {
	// FindByApplication returns the marker for an application, or nil
	FindByApplication(ctx context.Context, tenantID, applicationID uuid.UUID) (*ProvisionalMigration, error)
	// Create inserts a marker; a second marker for the same application returns ErrAlreadyMigrated
	Create(ctx context.Context, marker *ProvisionalMigration) error
}

// Repositories is the set of repositories bound to one unit of work
type Repositories struct {
	FeeTypes     FeeTypeRepository
	Discounts    FeeDiscountRepository
	Groups       FeeGroupRepository
	Bindings     PlanBindingRepository
	Assignments  AssignmentRepository
	Transactions TransactionRepository
	Waivers      WaiverRepository
	Advances     AdvanceRepository
	Migrations   MigrationRepository
}

// Transactor runs fn inside a single storage transaction. If fn returns an
// error nothing it wrote is committed.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// ErrDuplicatePeriod is returned by AssignmentRepository.Create when the
// (target, binding, month, year) tuple already exists.
var ErrDuplicatePeriod = shared.NewConflictError("DUPLICATE_ASSIGNMENT_PERIOD", "An assignment for this period already exists")
