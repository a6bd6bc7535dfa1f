package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormTransactionRepository implements fee.TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// FindByIDForTenant finds a transaction by ID within a tenant
func (r *GormTransactionRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fee.FeeTransaction, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var model models.FeeTransactionModel
	if err := q.Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFoundOr("find fee transaction", err, fee.ErrTransactionNotFound)
	}
	return model.ToDomain()
}

// FindByAssignment lists the transactions of an assignment oldest first
func (r *GormTransactionRepository) FindByAssignment(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]fee.FeeTransaction, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var rows []models.FeeTransactionModel
	if err := q.Where("assignment_id = ?", assignmentID).
		Order("payment_date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, storeError("list fee transactions", err)
	}
	transactions := make([]fee.FeeTransaction, 0, len(rows))
	for i := range rows {
		t, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, nil
}

// SumCompleted sums completed amounts for an assignment
func (r *GormTransactionRepository) SumCompleted(ctx context.Context, tenantID, assignmentID uuid.UUID) (decimal.Decimal, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return decimal.Zero, err
	}
	var result struct {
		Total decimal.NullDecimal
	}
	if err := q.Model(&models.FeeTransactionModel{}).
		Select("SUM(amount_paid) AS total").
		Where("assignment_id = ? AND status = ?", assignmentID, string(fee.TransactionCompleted)).
		Scan(&result).Error; err != nil {
		return decimal.Zero, storeError("sum fee transactions", err)
	}
	if !result.Total.Valid {
		return decimal.Zero, nil
	}
	return result.Total.Decimal, nil
}

// Create inserts a new transaction
func (r *GormTransactionRepository) Create(ctx context.Context, transaction *fee.FeeTransaction) error {
	if err := requireTenant(transaction.TenantID); err != nil {
		return err
	}
	return storeError("create fee transaction", r.db.WithContext(ctx).Create(models.FeeTransactionModelFromDomain(transaction)).Error)
}

// SaveWithLock updates a transaction with optimistic locking
func (r *GormTransactionRepository) SaveWithLock(ctx context.Context, transaction *fee.FeeTransaction) error {
	model := models.FeeTransactionModelFromDomain(transaction)
	return saveWithLock(ctx, r.db, "save fee transaction", transaction.TenantID, transaction.ID, transaction.Version, model)
}

// RetargetApplication moves every transaction of an application to a student
func (r *GormTransactionRepository) RetargetApplication(ctx context.Context, tenantID, applicationID, studentID uuid.UUID) (int64, error) {
	return retargetRows(ctx, r.db, "retarget fee transactions", &models.FeeTransactionModel{}, tenantID, applicationID, studentID)
}

// GormWaiverRepository implements fee.WaiverRepository using GORM
type GormWaiverRepository struct {
	db *gorm.DB
}

// NewGormWaiverRepository creates a new GormWaiverRepository
func NewGormWaiverRepository(db *gorm.DB) *GormWaiverRepository {
	return &GormWaiverRepository{db: db}
}

// FindByIDForTenant finds a waiver by ID within a tenant
func (r *GormWaiverRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fee.FineWaiver, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var model models.FineWaiverModel
	if err := q.Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFoundOr("find fine waiver", err, fee.ErrWaiverNotFound)
	}
	return model.ToDomain()
}

// FindByAssignment lists the waivers of an assignment newest first
func (r *GormWaiverRepository) FindByAssignment(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]fee.FineWaiver, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var rows []models.FineWaiverModel
	if err := q.Where("assignment_id = ?", assignmentID).
		Order("requested_date DESC, created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, storeError("list fine waivers", err)
	}
	waivers := make([]fee.FineWaiver, 0, len(rows))
	for i := range rows {
		w, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		waivers = append(waivers, *w)
	}
	return waivers, nil
}

// ExistsPending reports whether an assignment has a pending waiver
func (r *GormWaiverRepository) ExistsPending(ctx context.Context, tenantID, assignmentID uuid.UUID) (bool, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return false, err
	}
	var count int64
	if err := q.Model(&models.FineWaiverModel{}).
		Where("assignment_id = ? AND status = ?", assignmentID, string(fee.WaiverPending)).
		Count(&count).Error; err != nil {
		return false, storeError("check pending waiver", err)
	}
	return count > 0, nil
}

// Create inserts a new waiver. A second pending waiver for the same
// assignment returns fee.ErrWaiverPending.
func (r *GormWaiverRepository) Create(ctx context.Context, waiver *fee.FineWaiver) error {
	if err := requireTenant(waiver.TenantID); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(models.FineWaiverModelFromDomain(waiver)).Error; err != nil {
		if isUniqueViolation(err) {
			return fee.ErrWaiverPending
		}
		return storeError("create fine waiver", err)
	}
	return nil
}

// SaveWithLock updates a waiver with optimistic locking
func (r *GormWaiverRepository) SaveWithLock(ctx context.Context, waiver *fee.FineWaiver) error {
	return saveWithLock(ctx, r.db, "save fine waiver", waiver.TenantID, waiver.ID, waiver.Version, models.FineWaiverModelFromDomain(waiver))
}

// RetargetApplication moves every waiver of an application to a student
func (r *GormWaiverRepository) RetargetApplication(ctx context.Context, tenantID, applicationID, studentID uuid.UUID) (int64, error) {
	return retargetRows(ctx, r.db, "retarget fine waivers", &models.FineWaiverModel{}, tenantID, applicationID, studentID)
}

// retargetRows rewrites (target_type, target_id) from an application to a student
func retargetRows(ctx context.Context, db *gorm.DB, op string, model interface{}, tenantID, applicationID, studentID uuid.UUID) (int64, error) {
	q, err := scoped(ctx, db, tenantID)
	if err != nil {
		return 0, err
	}
	result := targetCondition(q.Model(model), fee.ApplicationTarget(applicationID)).
		Updates(map[string]interface{}{
			"target_type": string(fee.TargetStudent),
			"target_id":   studentID,
		})
	if result.Error != nil {
		return 0, storeError(op, result.Error)
	}
	return result.RowsAffected, nil
}
