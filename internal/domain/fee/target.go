package fee

import (
	"fmt"

	"github.com/google/uuid"
)

// TargetKind names the variant of a billing target
type TargetKind string

const (
	TargetStudent     TargetKind = "STUDENT"
	TargetApplication TargetKind = "APPLICATION"
)

// IsValid checks if the kind is a known value
func (k TargetKind) IsValid() bool {
	return k == TargetStudent || k == TargetApplication
}

// Target is who a fee is billed to: an enrolled student or a pre-admission
// application, never both. The zero Target is invalid.
type Target struct {
	kind TargetKind
	id   uuid.UUID
}

// StudentTarget bills an enrolled student
func StudentTarget(studentID uuid.UUID) Target {
	return Target{kind: TargetStudent, id: studentID}
}

// ApplicationTarget bills a provisional admission application
func ApplicationTarget(applicationID uuid.UUID) Target {
	return Target{kind: TargetApplication, id: applicationID}
}

// NewTarget builds a target from its persisted form
func NewTarget(kind TargetKind, id uuid.UUID) (Target, error) {
	t := Target{kind: kind, id: id}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

// TargetFromRefs builds a target from a pair of optional references,
// exactly one of which must be set.
func TargetFromRefs(studentID, applicationID *uuid.UUID) (Target, error) {
	switch {
	case studentID != nil && applicationID != nil:
		return Target{}, ErrInvalidTarget
	case studentID != nil:
		return NewTarget(TargetStudent, *studentID)
	case applicationID != nil:
		return NewTarget(TargetApplication, *applicationID)
	}
	return Target{}, ErrInvalidTarget
}

// Validate fails for the zero target or a nil id
func (t Target) Validate() error {
	if !t.kind.IsValid() || t.id == uuid.Nil {
		return ErrInvalidTarget
	}
	return nil
}

// Kind returns the variant
func (t Target) Kind() TargetKind {
	return t.kind
}

// ID returns the student or application ID
func (t Target) ID() uuid.UUID {
	return t.id
}

// IsStudent reports whether the target is an enrolled student
func (t Target) IsStudent() bool {
	return t.kind == TargetStudent
}

// IsApplication reports whether the target is a provisional application
func (t Target) IsApplication() bool {
	return t.kind == TargetApplication
}

// StudentID returns the student ID when the target is a student
func (t Target) StudentID() *uuid.UUID {
	if !t.IsStudent() {
		return nil
	}
	id := t.id
	return &id
}

// ApplicationID returns the application ID when the target is an application
func (t Target) ApplicationID() *uuid.UUID {
	if !t.IsApplication() {
		return nil
	}
	id := t.id
	return &id
}

// Equal compares two targets
func (t Target) Equal(other Target) bool {
	return t.kind == other.kind && t.id == other.id
}

// String returns "KIND:id"
func (t Target) String() string {
	return fmt.Sprintf("%s:%s", t.kind, t.id)
}
