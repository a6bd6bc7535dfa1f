package tenant

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Guard is a GORM callback set that refuses unscoped statements against tenant-owned tables
type Guard struct {
	tenantColumn string
}

// NewGuard creates a guard for the given tenant column
func NewGuard(tenantColumn string) *Guard {
	if tenantColumn == "" {
		tenantColumn = Column
	}
	return &Guard{tenantColumn: tenantColumn}
}

// Register installs the guard on db. Creates are not guarded because the
// tenant_id is part of the inserted row.
func (g *Guard) Register(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant:guard_query", g.check); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant:guard_update", g.check); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant:guard_delete", g.check); err != nil {
		return err
	}
	return db.Callback().Row().Before("gorm:row").Register("tenant:guard_row", g.check)
}

// EnableGuard registers the guard for the default tenant column
func EnableGuard(db *gorm.DB) error {
	return NewGuard(Column).Register(db)
}

// DisableGuard removes the guard callbacks
func DisableGuard(db *gorm.DB) {
	_ = db.Callback().Query().Remove("tenant:guard_query")
	_ = db.Callback().Update().Remove("tenant:guard_update")
	_ = db.Callback().Delete().Remove("tenant:guard_delete")
	_ = db.Callback().Row().Remove("tenant:guard_row")
}

func (g *Guard) check(db *gorm.DB) {
	if db.Error != nil {
		return
	}
	stmt := db.Statement
	if stmt.Schema == nil || stmt.Schema.LookUpField(g.tenantColumn) == nil {
		return
	}
	if g.hasTenantCondition(stmt) {
		return
	}
	_ = db.AddError(ErrTenantScopeMissing)
}

// hasTenantCondition checks if a tenant_id condition is present
func (g *Guard) hasTenantCondition(stmt *gorm.Statement) bool {
	if whereClause, ok := stmt.Clauses["WHERE"]; ok {
		if where, ok := whereClause.Expression.(clause.Where); ok {
			for _, expr := range where.Exprs {
				if g.exprContainsTenant(expr) {
					return true
				}
			}
		}
	}

	// Raw statements arrive with their SQL already built
	sql := stmt.SQL.String()
	return sql != "" && strings.Contains(sql, g.tenantColumn)
}

// exprContainsTenant checks if an expression constrains the tenant column
func (g *Guard) exprContainsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		return g.isTenantColumn(e.Column)
	case clause.IN:
		return g.isTenantColumn(e.Column)
	case clause.Expr:
		return strings.Contains(e.SQL, g.tenantColumn)
	case clause.NamedExpr:
		return strings.Contains(e.SQL, g.tenantColumn)
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if g.exprContainsTenant(cond) {
				return true
			}
		}
	}
	return false
}

func (g *Guard) isTenantColumn(column interface{}) bool {
	switch c := column.(type) {
	case clause.Column:
		return c.Name == g.tenantColumn
	case string:
		return c == g.tenantColumn
	}
	return false
}
