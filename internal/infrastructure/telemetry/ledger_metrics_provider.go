package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormLedgerMetricsProvider implements LedgerMetricsProvider and TenantProvider using GORM.
// It reads the snapshot columns of fee_assignments.
type GormLedgerMetricsProvider struct {
	db *gorm.DB
}

// NewGormLedgerMetricsProvider creates a new GormLedgerMetricsProvider.
func NewGormLedgerMetricsProvider(db *gorm.DB) *GormLedgerMetricsProvider {
	return &GormLedgerMetricsProvider{db: db}
}

// GetOutstandingBalance returns the summed balance snapshot of live assignments.
func (p *GormLedgerMetricsProvider) GetOutstandingBalance(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.NullDecimal
	}
	err := p.db.WithContext(ctx).
		Raw("SELECT SUM(balance_amount) AS total FROM fee_assignments WHERE tenant_id = ? AND deleted_at IS NULL", tenantID).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !result.Total.Valid {
		return decimal.Zero, nil
	}
	return result.Total.Decimal, nil
}

// GetOverdueCount returns how many live assignments are past due and not paid.
func (p *GormLedgerMetricsProvider) GetOverdueCount(ctx context.Context, tenantID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM fee_assignments WHERE tenant_id = ? AND deleted_at IS NULL AND status <> ? AND due_date < ?",
			tenantID, "PAID", now.Truncate(24*time.Hour)).
		Scan(&count).Error
	return count, err
}

// GetActiveTenantIDs returns every tenant that owns at least one live assignment.
func (p *GormLedgerMetricsProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Raw("SELECT DISTINCT tenant_id FROM fee_assignments WHERE deleted_at IS NULL").
		Scan(&ids).Error
	return ids, err
}
