// Package tenant provides multi-tenant database scoping for GORM.
//
// Tenant scoping is explicit: every query is built from Scoped(ctx, db, tenantID),
// which fails before touching the store when tenantID is nil. The Guard callback
// backs this up by rejecting any statement on a tenant-owned table that reaches
// the database without a tenant_id predicate.
//
// Usage:
//
//	q, err := tenant.Scoped(ctx, db, tenantID)
//	if err != nil {
//		return nil, err
//	}
//	q.Where("id = ?", id).First(&model) // WHERE tenant_id = ? AND id = ?
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Column is the tenant discriminator column
const Column = "tenant_id"

// ErrTenantIDRequired is returned when an operation is attempted with a nil tenant
var ErrTenantIDRequired = errors.New("tenant_id is required")

// ErrTenantScopeMissing is returned by the guard for statements without a tenant predicate
var ErrTenantScopeMissing = errors.New("statement on tenant-owned table has no tenant_id predicate")

// Require fails for the nil tenant
func Require(tenantID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrTenantIDRequired
	}
	return nil
}

// Scope applies tenant filtering to GORM queries
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where(Column+" = ?", tenantID)
	}
}

// Scoped returns a session bound to ctx and filtered to tenantID
func Scoped(ctx context.Context, db *gorm.DB, tenantID uuid.UUID) (*gorm.DB, error) {
	if err := Require(tenantID); err != nil {
		return nil, err
	}
	return db.WithContext(ctx).Scopes(Scope(tenantID)), nil
}
