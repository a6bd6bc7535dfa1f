package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormFeeTypeRepository implements fee.FeeTypeRepository using GORM
type GormFeeTypeRepository struct {
	db *gorm.DB
}

// NewGormFeeTypeRepository creates a new GormFeeTypeRepository
func NewGormFeeTypeRepository(db *gorm.DB) *GormFeeTypeRepository {
	return &GormFeeTypeRepository{db: db}
}

// FindByIDForTenant finds a live fee type by ID within a tenant
func (r *GormFeeTypeRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fee.FeeType, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var model models.FeeTypeModel
	if err := q.Where("id = ? AND deleted_at IS NULL", id).First(&model).Error; err != nil {
		return nil, notFoundOr("find fee type", err, fee.ErrFeeTypeNotFound)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists live fee types
func (r *GormFeeTypeRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]fee.FeeType, int64, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, 0, err
	}
	q = q.Model(&models.FeeTypeModel{}).Where("deleted_at IS NULL")
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", pattern, pattern)
	}
	if v, ok := filter.Filters["frequency"]; ok {
		q = q.Where("frequency = ?", v)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, storeError("count fee types", err)
	}

	var rows []models.FeeTypeModel
	orderBy := ValidateSortField(filter.OrderBy, FeeTypeSortFields, "code")
	if err := applyPaging(q, filter, orderBy).Find(&rows).Error; err != nil {
		return nil, 0, storeError("list fee types", err)
	}
	types := make([]fee.FeeType, len(rows))
	for i := range rows {
		types[i] = *rows[i].ToDomain()
	}
	return types, total, nil
}

// ExistsByCode checks for a live fee type with the same code
func (r *GormFeeTypeRepository) ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return false, err
	}
	var count int64
	if err := q.Model(&models.FeeTypeModel{}).
		Where("code = ? AND deleted_at IS NULL", strings.ToUpper(strings.TrimSpace(code))).
		Count(&count).Error; err != nil {
		return false, storeError("check fee type code", err)
	}
	return count > 0, nil
}

// Create inserts a new fee type
func (r *GormFeeTypeRepository) Create(ctx context.Context, feeType *fee.FeeType) error {
	if err := requireTenant(feeType.TenantID); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(models.FeeTypeModelFromDomain(feeType)).Error; err != nil {
		if isUniqueViolation(err) {
			return fee.ErrDuplicateCode
		}
		return storeError("create fee type", err)
	}
	return nil
}

// SaveWithLock updates a fee type with optimistic locking
func (r *GormFeeTypeRepository) SaveWithLock(ctx context.Context, feeType *fee.FeeType) error {
	return saveWithLock(ctx, r.db, "save fee type", feeType.TenantID, feeType.ID, feeType.Version, models.FeeTypeModelFromDomain(feeType))
}

// GormFeeDiscountRepository implements fee.FeeDiscountRepository using GORM
type GormFeeDiscountRepository struct {
	db *gorm.DB
}

// NewGormFeeDiscountRepository creates a new GormFeeDiscountRepository
func NewGormFeeDiscountRepository(db *gorm.DB) *GormFeeDiscountRepository {
	return &GormFeeDiscountRepository{db: db}
}

// FindByIDForTenant finds a discount by ID within a tenant, including deleted ones
func (r *GormFeeDiscountRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fee.FeeDiscount, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var model models.FeeDiscountModel
	if err := q.Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFoundOr("find discount", err, fee.ErrDiscountNotFound)
	}
	return model.ToDomain(), nil
}

// ExistsByCode checks for a live discount with the same code
func (r *GormFeeDiscountRepository) ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return false, err
	}
	var count int64
	if err := q.Model(&models.FeeDiscountModel{}).
		Where("code = ? AND deleted_at IS NULL", strings.ToUpper(strings.TrimSpace(code))).
		Count(&count).Error; err != nil {
		return false, storeError("check discount code", err)
	}
	return count > 0, nil
}

// Create inserts a new discount
func (r *GormFeeDiscountRepository) Create(ctx context.Context, discount *fee.FeeDiscount) error {
	if err := requireTenant(discount.TenantID); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(models.FeeDiscountModelFromDomain(discount)).Error; err != nil {
		if isUniqueViolation(err) {
			return fee.ErrDuplicateCode
		}
		return storeError("create discount", err)
	}
	return nil
}

// SaveWithLock updates a discount with optimistic locking
func (r *GormFeeDiscountRepository) SaveWithLock(ctx context.Context, discount *fee.FeeDiscount) error {
	return saveWithLock(ctx, r.db, "save discount", discount.TenantID, discount.ID, discount.Version, models.FeeDiscountModelFromDomain(discount))
}

// GormFeeGroupRepository implements fee.FeeGroupRepository using GORM
type GormFeeGroupRepository struct {
	db *gorm.DB
}

// NewGormFeeGroupRepository creates a new GormFeeGroupRepository
func NewGormFeeGroupRepository(db *gorm.DB) *GormFeeGroupRepository {
	return &GormFeeGroupRepository{db: db}
}

// FindByIDForTenant finds a live fee group by ID within a tenant
func (r *GormFeeGroupRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fee.FeeGroup, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var model models.FeeGroupModel
	if err := q.Where("id = ? AND deleted_at IS NULL", id).First(&model).Error; err != nil {
		return nil, notFoundOr("find fee group", err, fee.ErrFeeGroupNotFound)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists live fee groups
func (r *GormFeeGroupRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]fee.FeeGroup, int64, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, 0, err
	}
	q = q.Model(&models.FeeGroupModel{}).Where("deleted_at IS NULL")
	if filter.Search != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, storeError("count fee groups", err)
	}

	var rows []models.FeeGroupModel
	orderBy := ValidateSortField(filter.OrderBy, FeeGroupSortFields, "name")
	if err := applyPaging(q, filter, orderBy).Find(&rows).Error; err != nil {
		return nil, 0, storeError("list fee groups", err)
	}
	groups := make([]fee.FeeGroup, len(rows))
	for i := range rows {
		groups[i] = *rows[i].ToDomain()
	}
	return groups, total, nil
}

// Create inserts a new fee group
func (r *GormFeeGroupRepository) Create(ctx context.Context, group *fee.FeeGroup) error {
	if err := requireTenant(group.TenantID); err != nil {
		return err
	}
	return storeError("create fee group", r.db.WithContext(ctx).Create(models.FeeGroupModelFromDomain(group)).Error)
}

// SaveWithLock updates a fee group with optimistic locking
func (r *GormFeeGroupRepository) SaveWithLock(ctx context.Context, group *fee.FeeGroup) error {
	return saveWithLock(ctx, r.db, "save fee group", group.TenantID, group.ID, group.Version, models.FeeGroupModelFromDomain(group))
}

// GormPlanBindingRepository implements fee.PlanBindingRepository using GORM
type GormPlanBindingRepository struct {
	db *gorm.DB
}

// NewGormPlanBindingRepository creates a new GormPlanBindingRepository
func NewGormPlanBindingRepository(db *gorm.DB) *GormPlanBindingRepository {
	return &GormPlanBindingRepository{db: db}
}

// FindByIDForTenant finds a binding by ID within a tenant
func (r *GormPlanBindingRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fee.PlanBinding, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var model models.PlanBindingModel
	if err := q.Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFoundOr("find plan binding", err, fee.ErrBindingNotFound)
	}
	return model.ToDomain(), nil
}

// FindByGroup lists the bindings of a fee group in creation order
func (r *GormPlanBindingRepository) FindByGroup(ctx context.Context, tenantID, feeGroupID uuid.UUID) ([]fee.PlanBinding, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var rows []models.PlanBindingModel
	if err := q.Where("fee_group_id = ?", feeGroupID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, storeError("list plan bindings", err)
	}
	bindings := make([]fee.PlanBinding, len(rows))
	for i := range rows {
		bindings[i] = *rows[i].ToDomain()
	}
	return bindings, nil
}

// ExistsByGroupAndType checks the (group, type) uniqueness rule
func (r *GormPlanBindingRepository) ExistsByGroupAndType(ctx context.Context, tenantID, feeGroupID, feeTypeID uuid.UUID) (bool, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return false, err
	}
	var count int64
	if err := q.Model(&models.PlanBindingModel{}).
		Where("fee_group_id = ? AND fee_type_id = ?", feeGroupID, feeTypeID).
		Count(&count).Error; err != nil {
		return false, storeError("check plan binding", err)
	}
	return count > 0, nil
}

// CountReferencing counts bindings that reference a fee type, group or discount
func (r *GormPlanBindingRepository) CountReferencing(ctx context.Context, tenantID uuid.UUID, ref fee.BindingReference) (int64, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return 0, err
	}
	q = q.Model(&models.PlanBindingModel{})
	switch {
	case ref.FeeTypeID != nil:
		q = q.Where("fee_type_id = ?", *ref.FeeTypeID)
	case ref.FeeGroupID != nil:
		q = q.Where("fee_group_id = ?", *ref.FeeGroupID)
	case ref.DiscountID != nil:
		q = q.Where("discount_id = ?", *ref.DiscountID)
	default:
		return 0, shared.NewValidationError("INVALID_REFERENCE", "A binding reference is required")
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, storeError("count plan bindings", err)
	}
	return count, nil
}

// Create inserts a new binding
func (r *GormPlanBindingRepository) Create(ctx context.Context, binding *fee.PlanBinding) error {
	if err := requireTenant(binding.TenantID); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(models.PlanBindingModelFromDomain(binding)).Error; err != nil {
		if isUniqueViolation(err) {
			return fee.ErrDuplicateBinding
		}
		return storeError("create plan binding", err)
	}
	return nil
}

// SaveWithLock updates a binding with optimistic locking
func (r *GormPlanBindingRepository) SaveWithLock(ctx context.Context, binding *fee.PlanBinding) error {
	return saveWithLock(ctx, r.db, "save plan binding", binding.TenantID, binding.ID, binding.Version, models.PlanBindingModelFromDomain(binding))
}

// DeleteForTenant removes a binding
func (r *GormPlanBindingRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return err
	}
	result := q.Where("id = ?", id).Delete(&models.PlanBindingModel{})
	if result.Error != nil {
		return storeError("delete plan binding", result.Error)
	}
	if result.RowsAffected == 0 {
		return fee.ErrBindingNotFound
	}
	return nil
}
