package fee

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/shared"
)

// Frequency is how often a fee type is billed
type Frequency string

const (
	FrequencyOneTime    Frequency = "ONE_TIME"
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencyHalfYearly Frequency = "HALF_YEARLY"
	FrequencyAnnually   Frequency = "ANNUALLY"
)

// IsValid checks if the frequency is a known value
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyOneTime, FrequencyMonthly, FrequencyQuarterly, FrequencyHalfYearly, FrequencyAnnually:
		return true
	}
	return false
}

// String returns the string representation
func (f Frequency) String() string {
	return string(f)
}

// FeeType is a named category of charge, e.g. tuition or transport
type FeeType struct {
	shared.TenantAggregateRoot
	Name      string
	Code      string
	Frequency Frequency
	IsSystem  bool
	DeletedAt *time.Time
}

// NewFeeType creates a new fee type
func NewFeeType(tenantID uuid.UUID, name, code string, frequency Frequency, now time.Time) (*FeeType, error) {
	name = strings.TrimSpace(name)
	code = strings.ToUpper(strings.TrimSpace(code))
	if name == "" {
		return nil, shared.NewValidationError("INVALID_NAME", "Fee type name cannot be empty")
	}
	if len(name) > 100 {
		return nil, shared.NewValidationError("INVALID_NAME", "Fee type name cannot exceed 100 characters")
	}
	if code == "" {
		return nil, shared.NewValidationError("INVALID_CODE", "Fee type code cannot be empty")
	}
	if len(code) > 50 {
		return nil, shared.NewValidationError("INVALID_CODE", "Fee type code cannot exceed 50 characters")
	}
	if !frequency.IsValid() {
		return nil, shared.NewValidationError("INVALID_FREQUENCY", "Invalid fee frequency")
	}

	return &FeeType{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, now),
		Name:                name,
		Code:                code,
		Frequency:           frequency,
	}, nil
}

// MarkSystem flags the type as system-owned; system types cannot be deleted
func (t *FeeType) MarkSystem() {
	t.IsSystem = true
}

// Update changes the display name and billing frequency
func (t *FeeType) Update(name string, frequency Frequency, actor *uuid.UUID, now time.Time) error {
	if t.IsDeleted() {
		return shared.NewPolicyError("FEE_TYPE_DELETED", "Cannot update a deleted fee type")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("INVALID_NAME", "Fee type name cannot be empty")
	}
	if !frequency.IsValid() {
		return shared.NewValidationError("INVALID_FREQUENCY", "Invalid fee frequency")
	}
	t.Name = name
	t.Frequency = frequency
	t.MarkUpdated(actor, now)
	return nil
}

// SoftDelete marks the fee type deleted. Reference checks happen in the service
func (t *FeeType) SoftDelete(actor *uuid.UUID, now time.Time) error {
	if t.IsSystem {
		return shared.NewPolicyError("SYSTEM_FEE_TYPE", "System fee types cannot be deleted")
	}
	if t.IsDeleted() {
		return nil
	}
	t.DeletedAt = &now
	t.MarkUpdated(actor, now)
	return nil
}

// IsDeleted reports whether the fee type was soft-deleted
func (t *FeeType) IsDeleted() bool {
	return t.DeletedAt != nil
}

// FeeGroup is a named bundle of plan bindings billed together
type FeeGroup struct {
	shared.TenantAggregateRoot
	Name        string
	Description string
	IsSystem    bool
	DeletedAt   *time.Time
}

// NewFeeGroup creates a new fee group
func NewFeeGroup(tenantID uuid.UUID, name, description string, now time.Time) (*FeeGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("INVALID_NAME", "Fee group name cannot be empty")
	}
	if len(name) > 100 {
		return nil, shared.NewValidationError("INVALID_NAME", "Fee group name cannot exceed 100 characters")
	}
	return &FeeGroup{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, now),
		Name:                name,
		Description:         strings.TrimSpace(description),
	}, nil
}

// SoftDelete marks the group deleted
func (g *FeeGroup) SoftDelete(actor *uuid.UUID, now time.Time) error {
	if g.IsSystem {
		return shared.NewPolicyError("SYSTEM_FEE_GROUP", "System fee groups cannot be deleted")
	}
	if g.DeletedAt != nil {
		return nil
	}
	g.DeletedAt = &now
	g.MarkUpdated(actor, now)
	return nil
}

// IsDeleted reports whether the group was soft-deleted
func (g *FeeGroup) IsDeleted() bool {
	return g.DeletedAt != nil
}
