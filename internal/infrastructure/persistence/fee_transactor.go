package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// NewFeeRepositories binds every fee repository to db
func NewFeeRepositories(db *gorm.DB) fee.Repositories {
	return fee.Repositories{
		FeeTypes:     NewGormFeeTypeRepository(db),
		Discounts:    NewGormFeeDiscountRepository(db),
		Groups:       NewGormFeeGroupRepository(db),
		Bindings:     NewGormPlanBindingRepository(db),
		Assignments:  NewGormAssignmentRepository(db),
		Transactions: NewGormTransactionRepository(db),
		Waivers:      NewGormWaiverRepository(db),
		Advances:     NewGormAdvanceRepository(db),
		Migrations:   NewGormMigrationRepository(db),
	}
}

// GormFeeTransactor implements fee.Transactor with a GORM transaction
type GormFeeTransactor struct {
	db *gorm.DB
}

// NewGormFeeTransactor creates a new GormFeeTransactor
func NewGormFeeTransactor(db *gorm.DB) *GormFeeTransactor {
	return &GormFeeTransactor{db: db}
}

// WithinTransaction runs fn with repositories bound to a single transaction.
// The transaction commits only if fn returns nil.
func (t *GormFeeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos fee.Repositories) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewFeeRepositories(tx))
	})
}

// GormTargetDirectory resolves billing targets against the students and
// admission_applications tables
type GormTargetDirectory struct {
	db *gorm.DB
}

// NewGormTargetDirectory creates a new GormTargetDirectory
func NewGormTargetDirectory(db *gorm.DB) *GormTargetDirectory {
	return &GormTargetDirectory{db: db}
}

// Exists reports whether target is a live student or application of the tenant
func (d *GormTargetDirectory) Exists(ctx context.Context, tenantID uuid.UUID, target fee.Target) (bool, error) {
	if err := target.Validate(); err != nil {
		return false, err
	}
	q, err := scoped(ctx, d.db, tenantID)
	if err != nil {
		return false, err
	}
	var model interface{} = &models.StudentModel{}
	if target.IsApplication() {
		model = &models.AdmissionApplicationModel{}
	}
	var count int64
	if err := q.Model(model).
		Where("id = ? AND deleted_at IS NULL", target.ID()).
		Count(&count).Error; err != nil {
		return false, storeError("resolve target", err)
	}
	return count > 0, nil
}
