package fee

import (
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/shared"
)

// ProvisionalMigration marks an application whose fees were converted to a
// student. One marker per (tenant, application) guards against a second run.
type ProvisionalMigration struct {
	shared.BaseEntity
	TenantID          uuid.UUID
	ApplicationID     uuid.UUID
	StudentID         uuid.UUID
	AssignmentsMoved  int
	TransactionsMoved int64
	WaiversMoved      int64
	AdvanceMoved      bool
	MigratedBy        *uuid.UUID
}

// NewProvisionalMigration creates the marker for applicationID -> studentID
func NewProvisionalMigration(tenantID, applicationID, studentID uuid.UUID, actor *uuid.UUID, now time.Time) (*ProvisionalMigration, error) {
	if applicationID == uuid.Nil || studentID == uuid.Nil {
		return nil, ErrInvalidTarget
	}
	m := &ProvisionalMigration{
		BaseEntity:    shared.NewBaseEntityAt(now),
		TenantID:      tenantID,
		ApplicationID: applicationID,
		StudentID:     studentID,
	}
	if actor != nil {
		id := *actor
		m.MigratedBy = &id
	}
	return m, nil
}
