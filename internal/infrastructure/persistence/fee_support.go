package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// lockedColumns are never rewritten by SaveWithLock
var lockedColumns = []string{"id", "tenant_id", "created_at", "created_by"}

// scoped binds a session to ctx and the tenant
func scoped(ctx context.Context, db *gorm.DB, tenantID uuid.UUID) (*gorm.DB, error) {
	return tenant.Scoped(ctx, db, tenantID)
}

// storeError wraps a driver failure. Domain errors pass through untouched.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) || errors.Is(err, tenant.ErrTenantIDRequired) {
		return err
	}
	return shared.NewInfrastructureError(op, err)
}

// notFoundOr maps gorm.ErrRecordNotFound to notFound and wraps anything else
func notFoundOr(op string, err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return storeError(op, err)
}

// isUniqueViolation reports a unique constraint failure on postgres or sqlite
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// saveWithLock updates model where the stored version is version-1.
// No matching row means another writer got there first.
func saveWithLock(ctx context.Context, db *gorm.DB, op string, tenantID, id uuid.UUID, version int, model interface{}) error {
	q, err := scoped(ctx, db, tenantID)
	if err != nil {
		return err
	}
	result := q.Model(model).
		Select("*").
		Omit(lockedColumns...).
		Where("id = ? AND version = ?", id, version-1).
		Updates(model)
	if result.Error != nil {
		return storeError(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return fee.ErrConcurrentModification
	}
	return nil
}

// targetCondition filters on the (target_type, target_id) pair
func targetCondition(q *gorm.DB, target fee.Target) *gorm.DB {
	return q.Where("target_type = ? AND target_id = ?", string(target.Kind()), target.ID())
}

// applyPaging applies ordering and pagination. orderBy must already be validated.
func applyPaging(q *gorm.DB, filter shared.Filter, orderBy string) *gorm.DB {
	filter = filter.Normalize()
	return q.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize)
}

// requireTenant guards inserts, which the tenant guard does not see
func requireTenant(tenantID uuid.UUID) error {
	return tenant.Require(tenantID)
}
