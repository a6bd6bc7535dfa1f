package fee

import (
	"context"

	"github.com/google/uuid"
)

// TargetDirectory resolves whether a student or application exists in a
// tenant. It is owned by the student-management and admission modules.
type TargetDirectory interface {
	Exists(ctx context.Context, tenantID uuid.UUID, target Target) (bool, error)
}
