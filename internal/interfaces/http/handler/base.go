// Package handler adapts the fee engine to gin. Handlers bind and validate the
// request, call one Engine operation and render its Result in the API envelope.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	feeapp "github.com/school/backend/internal/application/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/interfaces/http/dto"
	"github.com/school/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Error writes the error envelope
func (h *BaseHandler) Error(c *gin.Context, status int, kind shared.ErrorKind, code, message string, details any) {
	c.Set(middleware.ErrorCodeKey, code)
	c.JSON(status, dto.NewErrorResponse(kind, code, message, details).WithRequestID(middleware.GetRequestID(c)))
}

// BadRequest sends a 400 with the given code
func (h *BaseHandler) BadRequest(c *gin.Context, code, message string) {
	h.Error(c, http.StatusBadRequest, shared.KindValidation, code, message, nil)
}

// Tenant returns the request's tenant handle, or writes a 401 and reports false
func (h *BaseHandler) Tenant(c *gin.Context) (shared.TenantHandle, bool) {
	th, ok := middleware.GetTenantHandle(c)
	if !ok {
		h.Error(c, http.StatusUnauthorized, shared.KindPolicy, dto.ErrCodeTenantRequired, "Tenant identification required", nil)
	}
	return th, ok
}

// ParamUUID parses a path parameter, or writes a 400 and reports false
func (h *BaseHandler) ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		h.BadRequest(c, dto.ErrCodeInvalidID, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON binds and validates the body into obj
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.bindError(c, err)
		return false
	}
	return true
}

// BindOptionalJSON is BindJSON for routes whose body may be omitted
func (h *BaseHandler) BindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.BindJSON(c, obj)
}

// BindQuery binds and validates the query string into obj
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.bindError(c, err)
		return false
	}
	return true
}

func (h *BaseHandler) bindError(c *gin.Context, err error) {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		sizeErr   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &sizeErr):
		h.Error(c, http.StatusRequestEntityTooLarge, shared.KindValidation, dto.ErrCodeRequestTooLarge,
			"Request body exceeds maximum allowed size", nil)
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		h.BadRequest(c, dto.ErrCodeInvalidJSON, "Malformed JSON body")
	case errors.As(err, &typeErr):
		h.Error(c, http.StatusBadRequest, shared.KindValidation, dto.ErrCodeValidation, "Request validation failed",
			[]dto.ValidationDetail{{Field: typeErr.Field, Message: "Must be of type " + typeErr.Type.String()}})
	default:
		if details := middleware.ValidationDetails(err); details != nil {
			h.Error(c, http.StatusBadRequest, shared.KindValidation, dto.ErrCodeValidation, "Request validation failed", details)
			return
		}
		h.BadRequest(c, dto.ErrCodeValidation, err.Error())
	}
}

// respond renders an Engine result. Successes use status; failures map
// their kind, and batch rejections list the failing lines as details.
func respond[T any](c *gin.Context, status int, res feeapp.Result[T]) {
	if !res.Success {
		respondFailure(c, res)
		return
	}
	c.JSON(status, dto.NewSuccessResponse(res.Data, res.Message).WithRequestID(middleware.GetRequestID(c)))
}

// respondPage renders a paginated Engine result with list meta
func respondPage[T any](c *gin.Context, res feeapp.Result[*shared.Paginated[T]]) {
	if !res.Success {
		respondFailure(c, res)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(res.Data).WithRequestID(middleware.GetRequestID(c)))
}

// respondEmpty renders a Result without data as 204
func respondEmpty(c *gin.Context, res feeapp.Result[feeapp.Empty]) {
	if !res.Success {
		respondFailure(c, res)
		return
	}
	c.Status(http.StatusNoContent)
}

func respondFailure[T any](c *gin.Context, res feeapp.Result[T]) {
	var details any
	if len(res.Errors) > 0 {
		details = res.Errors
	}
	var h BaseHandler
	h.Error(c, dto.HTTPStatus(res.ErrorKind), res.ErrorKind, res.ErrorCode, res.Message, details)
}
