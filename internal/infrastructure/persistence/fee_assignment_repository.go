package persistence

import (
	"bytes"
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAssignmentRepository implements fee.AssignmentRepository using GORM
type GormAssignmentRepository struct {
	db *gorm.DB
}

// NewGormAssignmentRepository creates a new GormAssignmentRepository
func NewGormAssignmentRepository(db *gorm.DB) *GormAssignmentRepository {
	return &GormAssignmentRepository{db: db}
}

// FindByIDForTenant finds an assignment by ID within a tenant, including deleted ones
func (r *GormAssignmentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fee.FeeAssignment, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var model models.FeeAssignmentModel
	if err := q.Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFoundOr("find fee assignment", err, fee.ErrAssignmentNotFound)
	}
	return model.ToDomain()
}

// FindByIDsForTenant loads assignments in ascending ID order so that
// concurrent batches touch rows in the same sequence
func (r *GormAssignmentRepository) FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]fee.FeeAssignment, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []fee.FeeAssignment{}, nil
	}
	var rows []models.FeeAssignmentModel
	if err := q.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, storeError("load fee assignments", err)
	}
	assignments, err := assignmentsFromModels(rows)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(assignments, func(a, b fee.FeeAssignment) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return assignments, nil
}

// FindForPeriod finds the assignment of (target, binding, month, year), including deleted ones
func (r *GormAssignmentRepository) FindForPeriod(ctx context.Context, tenantID uuid.UUID, target fee.Target, planBindingID uuid.UUID, month, year int) (*fee.FeeAssignment, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var model models.FeeAssignmentModel
	if err := targetCondition(q, target).
		Where("plan_binding_id = ? AND month = ? AND year = ?", planBindingID, month, year).
		First(&model).Error; err != nil {
		return nil, notFoundOr("find fee assignment period", err, fee.ErrAssignmentNotFound)
	}
	return model.ToDomain()
}

// ExistsForFeeType reports whether target already has a live assignment of feeTypeID
func (r *GormAssignmentRepository) ExistsForFeeType(ctx context.Context, tenantID uuid.UUID, target fee.Target, feeTypeID uuid.UUID) (bool, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return false, err
	}
	var count int64
	if err := targetCondition(q.Model(&models.FeeAssignmentModel{}), target).
		Where("fee_type_id = ? AND deleted_at IS NULL", feeTypeID).
		Count(&count).Error; err != nil {
		return false, storeError("check fee type history", err)
	}
	return count > 0, nil
}

// FindOpenByTarget lists live assignments of target that were not fully paid
// at their last write, oldest due date first
func (r *GormAssignmentRepository) FindOpenByTarget(ctx context.Context, tenantID uuid.UUID, target fee.Target) ([]fee.FeeAssignment, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var rows []models.FeeAssignmentModel
	if err := targetCondition(q, target).
		Where("deleted_at IS NULL AND status <> ?", string(fee.StatusPaid)).
		Order("due_date IS NULL, due_date ASC, year ASC, month ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, storeError("list open fee assignments", err)
	}
	return assignmentsFromModels(rows)
}

// FindByTarget lists every assignment of target, live or deleted
func (r *GormAssignmentRepository) FindByTarget(ctx context.Context, tenantID uuid.UUID, target fee.Target) ([]fee.FeeAssignment, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var rows []models.FeeAssignmentModel
	if err := targetCondition(q, target).
		Order("year ASC, month ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, storeError("list fee assignments of target", err)
	}
	return assignmentsFromModels(rows)
}

// FindAllForTenant lists assignments matching the filter
func (r *GormAssignmentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter fee.AssignmentFilter) ([]fee.FeeAssignment, int64, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, 0, err
	}
	q = q.Model(&models.FeeAssignmentModel{})
	if filter.Target != nil {
		q = targetCondition(q, *filter.Target)
	}
	if filter.PlanBindingID != nil {
		q = q.Where("plan_binding_id = ?", *filter.PlanBindingID)
	}
	if filter.Month != nil {
		q = q.Where("month = ?", *filter.Month)
	}
	if filter.Year != nil {
		q = q.Where("year = ?", *filter.Year)
	}
	if !filter.IncludeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, storeError("count fee assignments", err)
	}

	var rows []models.FeeAssignmentModel
	orderBy := ValidateSortField(filter.OrderBy, FeeAssignmentSortFields, "due_date")
	if err := applyPaging(q, filter.Filter, orderBy).Find(&rows).Error; err != nil {
		return nil, 0, storeError("list fee assignments", err)
	}
	assignments, err := assignmentsFromModels(rows)
	if err != nil {
		return nil, 0, err
	}
	return assignments, total, nil
}

// CountByPlanBinding counts assignments, live or deleted, stamped from a binding
func (r *GormAssignmentRepository) CountByPlanBinding(ctx context.Context, tenantID, planBindingID uuid.UUID) (int64, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := q.Model(&models.FeeAssignmentModel{}).
		Where("plan_binding_id = ?", planBindingID).
		Count(&count).Error; err != nil {
		return 0, storeError("count fee assignments", err)
	}
	return count, nil
}

// Create inserts a new assignment; a duplicate period returns fee.ErrDuplicatePeriod
func (r *GormAssignmentRepository) Create(ctx context.Context, assignment *fee.FeeAssignment, snapshot fee.Evaluation) error {
	if err := requireTenant(assignment.TenantID); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(models.FeeAssignmentModelFromDomain(assignment, snapshot)).Error; err != nil {
		if isUniqueViolation(err) {
			return fee.ErrDuplicatePeriod
		}
		return storeError("create fee assignment", err)
	}
	return nil
}

// SaveWithLock updates an assignment with optimistic locking
func (r *GormAssignmentRepository) SaveWithLock(ctx context.Context, assignment *fee.FeeAssignment, snapshot fee.Evaluation) error {
	model := models.FeeAssignmentModelFromDomain(assignment, snapshot)
	err := saveWithLock(ctx, r.db, "save fee assignment", assignment.TenantID, assignment.ID, assignment.Version, model)
	if isUniqueViolation(err) {
		return fee.ErrDuplicatePeriod
	}
	return err
}

func assignmentsFromModels(rows []models.FeeAssignmentModel) ([]fee.FeeAssignment, error) {
	assignments := make([]fee.FeeAssignment, 0, len(rows))
	for i := range rows {
		a, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *a)
	}
	return assignments, nil
}
