package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormAdvanceRepository implements fee.AdvanceRepository using GORM
type GormAdvanceRepository struct {
	db *gorm.DB
}

// NewGormAdvanceRepository creates a new GormAdvanceRepository
func NewGormAdvanceRepository(db *gorm.DB) *GormAdvanceRepository {
	return &GormAdvanceRepository{db: db}
}

// FindAccount returns the target's account, or nil when none exists
func (r *GormAdvanceRepository) FindAccount(ctx context.Context, tenantID uuid.UUID, target fee.Target) (*fee.AdvanceAccount, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var model models.AdvanceAccountModel
	if err := targetCondition(q, target).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeError("find advance account", err)
	}
	return model.ToDomain()
}

// CreateAccount inserts a new account. A concurrent insert for the same
// target surfaces as a conflict so the caller can retry with the winner's row.
func (r *GormAdvanceRepository) CreateAccount(ctx context.Context, account *fee.AdvanceAccount) error {
	if err := requireTenant(account.TenantID); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(models.AdvanceAccountModelFromDomain(account)).Error; err != nil {
		if isUniqueViolation(err) {
			return fee.ErrConcurrentModification
		}
		return storeError("create advance account", err)
	}
	return nil
}

// SaveAccountWithLock updates an account with optimistic locking
func (r *GormAdvanceRepository) SaveAccountWithLock(ctx context.Context, account *fee.AdvanceAccount) error {
	model := models.AdvanceAccountModelFromDomain(account)
	return saveWithLock(ctx, r.db, "save advance account", account.TenantID, account.ID, account.Version, model)
}

// AppendEntry inserts an immutable ledger entry
func (r *GormAdvanceRepository) AppendEntry(ctx context.Context, entry *fee.AdvanceEntry) error {
	if err := requireTenant(entry.TenantID); err != nil {
		return err
	}
	return storeError("append advance entry", r.db.WithContext(ctx).Create(models.AdvanceLedgerEntryModelFromDomain(entry)).Error)
}

// ListEntries lists a target's ledger oldest first
func (r *GormAdvanceRepository) ListEntries(ctx context.Context, tenantID uuid.UUID, target fee.Target) ([]fee.AdvanceEntry, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var rows []models.AdvanceLedgerEntryModel
	if err := targetCondition(q, target).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, storeError("list advance entries", err)
	}
	entries := make([]fee.AdvanceEntry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

// Totals sums a target's ledger by entry type
func (r *GormAdvanceRepository) Totals(ctx context.Context, tenantID uuid.UUID, target fee.Target) (fee.AdvanceTotals, error) {
	totals := fee.AdvanceTotals{Deposits: decimal.Zero, Consumptions: decimal.Zero, Restores: decimal.Zero}
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return totals, err
	}
	var rows []struct {
		EntryType string
		Total     decimal.NullDecimal
	}
	if err := targetCondition(q.Model(&models.AdvanceLedgerEntryModel{}), target).
		Select("entry_type, SUM(amount) AS total").
		Group("entry_type").
		Scan(&rows).Error; err != nil {
		return totals, storeError("sum advance entries", err)
	}
	for _, row := range rows {
		if !row.Total.Valid {
			continue
		}
		switch fee.AdvanceEntryType(row.EntryType) {
		case fee.AdvanceDeposit:
			totals.Deposits = row.Total.Decimal
		case fee.AdvanceConsume:
			totals.Consumptions = row.Total.Decimal
		case fee.AdvanceRestore:
			totals.Restores = row.Total.Decimal
		}
	}
	return totals, nil
}

// FindEntryForTransaction finds the entry of typ linked to a transaction
func (r *GormAdvanceRepository) FindEntryForTransaction(ctx context.Context, tenantID, transactionID uuid.UUID, typ fee.AdvanceEntryType) (*fee.AdvanceEntry, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var model models.AdvanceLedgerEntryModel
	if err := q.Where("transaction_id = ? AND entry_type = ?", transactionID, string(typ)).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeError("find advance entry", err)
	}
	return model.ToDomain()
}

// RetargetApplicationEntries moves ledger entries of an application to a student
func (r *GormAdvanceRepository) RetargetApplicationEntries(ctx context.Context, tenantID, applicationID, studentID uuid.UUID) (int64, error) {
	return retargetRows(ctx, r.db, "retarget advance entries", &models.AdvanceLedgerEntryModel{}, tenantID, applicationID, studentID)
}

// GormMigrationRepository implements fee.MigrationRepository using GORM
type GormMigrationRepository struct {
	db *gorm.DB
}

// NewGormMigrationRepository creates a new GormMigrationRepository
func NewGormMigrationRepository(db *gorm.DB) *GormMigrationRepository {
	return &GormMigrationRepository{db: db}
}

// FindByApplication returns the marker for an application, or nil
func (r *GormMigrationRepository) FindByApplication(ctx context.Context, tenantID, applicationID uuid.UUID) (*fee.ProvisionalMigration, error) {
	q, err := scoped(ctx, r.db, tenantID)
	if err != nil {
		return nil, err
	}
	var model models.ProvisionalMigrationModel
	if err := q.Where("application_id = ?", applicationID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeError("find provisional migration", err)
	}
	return model.ToDomain(), nil
}

// Create inserts a marker; a second marker for the same application returns fee.ErrAlreadyMigrated
func (r *GormMigrationRepository) Create(ctx context.Context, marker *fee.ProvisionalMigration) error {
	if err := requireTenant(marker.TenantID); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(models.ProvisionalMigrationModelFromDomain(marker)).Error; err != nil {
		if isUniqueViolation(err) {
			return fee.ErrAlreadyMigrated
		}
		return storeError("create provisional migration", err)
	}
	return nil
}
