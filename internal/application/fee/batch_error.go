package fee

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/shared"
)

// LineError reports why one line of a batch was rejected
type LineError struct {
	Index        int              `json:"index"`
	AssignmentID uuid.UUID        `json:"assignment_id"`
	Kind         shared.ErrorKind `json:"kind"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
}

func newLineError(index int, assignmentID uuid.UUID, err error) LineError {
	return LineError{
		Index:        index,
		AssignmentID: assignmentID,
		Kind:         shared.KindOf(err),
		Code:         shared.CodeOf(err),
		Message:      errorMessage(err),
	}
}

// errorMessage returns the caller-facing message of err without its code prefix
func errorMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// BatchError carries every failing line of a rejected batch. Nothing in the
// batch was committed.
type BatchError struct {
	Lines []LineError
}

// ErrBatchRejected is the code carried by BatchError
var ErrBatchRejected = shared.NewValidationError("BATCH_REJECTED", "One or more payment lines were rejected")

func newBatchError(lines []LineError) *BatchError {
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Index < lines[j].Index })
	return &BatchError{Lines: lines}
}

func (e *BatchError) Error() string {
	if len(e.Lines) == 1 {
		return fmt.Sprintf("batch rejected: line %d: %s", e.Lines[0].Index, e.Lines[0].Message)
	}
	return fmt.Sprintf("batch rejected: %d lines failed", len(e.Lines))
}

// Unwrap lets errors.Is match ErrBatchRejected
func (e *BatchError) Unwrap() error {
	return ErrBatchRejected
}

// ErrorKind returns the kind of the batch. A single kind shared by every
// line wins; mixed failures are reported as validation.
func (e *BatchError) ErrorKind() shared.ErrorKind {
	if len(e.Lines) == 0 {
		return shared.KindValidation
	}
	kind := e.Lines[0].Kind
	for _, l := range e.Lines[1:] {
		if l.Kind != kind {
			return shared.KindValidation
		}
	}
	return kind
}
