package dto

import (
	"net/http"

	"github.com/school/backend/internal/domain/shared"
)

// Codes raised by the HTTP layer itself. Engine failures carry their own codes.
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeInvalidJSON     = "INVALID_JSON"
	ErrCodeValidation      = "VALIDATION_FAILED"
	ErrCodeInvalidID       = "INVALID_ID"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid    = "INVALID_TOKEN"
	ErrCodeTenantRequired  = "TENANT_REQUIRED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// KindHTTPStatus maps error kinds to HTTP status codes
var KindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:     http.StatusBadRequest,
	shared.KindNotFound:       http.StatusNotFound,
	shared.KindConflict:       http.StatusConflict,
	shared.KindInvariant:      http.StatusUnprocessableEntity,
	shared.KindPolicy:         http.StatusUnprocessableEntity,
	shared.KindInfrastructure: http.StatusInternalServerError,
}

// HTTPStatus returns the status for kind; unknown kinds are server errors
func HTTPStatus(kind shared.ErrorKind) int {
	if status, ok := KindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
