package shared

import (
	"github.com/google/uuid"
)

// TenantHandle scopes a single engine call to one tenant and, optionally,
// the acting user. Handles are built per request and passed explicitly.
type TenantHandle struct {
	tenantID uuid.UUID
	actorID  *uuid.UUID
}

// NewTenantHandle returns a handle for tenantID; the nil UUID is rejected
func NewTenantHandle(tenantID uuid.UUID) (TenantHandle, error) {
	if tenantID == uuid.Nil {
		return TenantHandle{}, ErrTenantRequired
	}
	return TenantHandle{tenantID: tenantID}, nil
}

// MustTenantHandle is NewTenantHandle for callers holding a known-good ID
func MustTenantHandle(tenantID uuid.UUID) TenantHandle {
	h, err := NewTenantHandle(tenantID)
	if err != nil {
		panic(err)
	}
	return h
}

// WithActor returns a copy of the handle carrying the acting user
func (h TenantHandle) WithActor(userID uuid.UUID) TenantHandle {
	if userID == uuid.Nil {
		h.actorID = nil
		return h
	}
	id := userID
	h.actorID = &id
	return h
}

// TenantID returns the scoped tenant
func (h TenantHandle) TenantID() uuid.UUID {
	return h.tenantID
}

// Actor returns the acting user, or nil for system calls
func (h TenantHandle) Actor() *uuid.UUID {
	return h.actorID
}

// Validate fails for the zero handle
func (h TenantHandle) Validate() error {
	if h.tenantID == uuid.Nil {
		return ErrTenantRequired
	}
	return nil
}
