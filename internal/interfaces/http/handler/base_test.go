package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	feeapp "github.com/school/backend/internal/application/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/interfaces/http/dto"
	"github.com/school/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.RequestIDKey, "req-1")
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestBaseHandler_Error(t *testing.T) {
	h := &BaseHandler{}
	c, w := testContext(http.MethodGet, "/", nil)

	h.Error(c, http.StatusConflict, shared.KindConflict, "OPTIMISTIC_LOCK_ERROR", "modified", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "OPTIMISTIC_LOCK_ERROR", c.GetString(middleware.ErrorCodeKey))
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "req-1", resp.RequestID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, shared.KindConflict, resp.Error.Kind)
	assert.Equal(t, "modified", resp.Error.Message)
}

func TestBaseHandler_Tenant(t *testing.T) {
	h := &BaseHandler{}

	t.Run("missing", func(t *testing.T) {
		c, w := testContext(http.MethodGet, "/", nil)
		_, ok := h.Tenant(c)
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTenantRequired, decode(t, w).Error.Code)
	})

	t.Run("present", func(t *testing.T) {
		c, _ := testContext(http.MethodGet, "/", nil)
		want := shared.MustTenantHandle(uuid.New())
		c.Set(middleware.TenantHandleKey, want)
		got, ok := h.Tenant(c)
		require.True(t, ok)
		assert.Equal(t, want.TenantID(), got.TenantID())
	})
}

func TestBaseHandler_ParamUUID(t *testing.T) {
	h := &BaseHandler{}
	valid := uuid.New()

	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"valid", valid.String(), true},
		{"malformed", "abc", false},
		{"nil", uuid.Nil.String(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := testContext(http.MethodGet, "/", nil)
			c.Params = gin.Params{{Key: "id", Value: tt.value}}
			id, ok := h.ParamUUID(c, "id")
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, valid, id)
				return
			}
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, dto.ErrCodeInvalidID, decode(t, w).Error.Code)
		})
	}
}

func TestBaseHandler_BindJSON(t *testing.T) {
	middleware.SetupValidator()
	h := &BaseHandler{}

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed", `{"reason":`, dto.ErrCodeInvalidJSON},
		{"empty", ``, dto.ErrCodeInvalidJSON},
		{"wrong type", `{"reason": 5}`, dto.ErrCodeValidation},
		{"missing field", `{}`, dto.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := testContext(http.MethodPost, "/", []byte(tt.body))
			var req dto.RevertRequest
			assert.False(t, h.BindJSON(c, &req))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Error.Code)
		})
	}

	t.Run("valid", func(t *testing.T) {
		c, _ := testContext(http.MethodPost, "/", []byte(`{"reason":"bounced"}`))
		var req dto.RevertRequest
		require.True(t, h.BindJSON(c, &req))
		assert.Equal(t, "bounced", req.Reason)
	})

	t.Run("optional body", func(t *testing.T) {
		c, w := testContext(http.MethodPost, "/", nil)
		var req dto.DecideWaiverRequest
		assert.True(t, h.BindOptionalJSON(c, &req))
		assert.Zero(t, w.Body.Len())
	})

	t.Run("oversized body", func(t *testing.T) {
		c, w := testContext(http.MethodPost, "/", []byte(`{"reason":"a very long reason"}`))
		c.Request.Body = http.MaxBytesReader(w, c.Request.Body, 4)
		var req dto.RevertRequest
		assert.False(t, h.BindJSON(c, &req))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestRespond(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c, w := testContext(http.MethodGet, "/", nil)
		respond(c, http.StatusCreated, feeapp.Result[string]{Success: true, Data: "ok", Message: "done"})
		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decode(t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, "ok", resp.Data)
		assert.Equal(t, "done", resp.Message)
	})

	t.Run("failure status follows the kind", func(t *testing.T) {
		kinds := map[shared.ErrorKind]int{
			shared.KindValidation:     http.StatusBadRequest,
			shared.KindNotFound:       http.StatusNotFound,
			shared.KindConflict:       http.StatusConflict,
			shared.KindInvariant:      http.StatusUnprocessableEntity,
			shared.KindPolicy:         http.StatusUnprocessableEntity,
			shared.KindInfrastructure: http.StatusInternalServerError,
		}
		for kind, status := range kinds {
			c, w := testContext(http.MethodGet, "/", nil)
			respond(c, http.StatusOK, feeapp.Result[string]{ErrorKind: kind, ErrorCode: "X", Message: "failed"})
			assert.Equal(t, status, w.Code, kind)
			assert.Nil(t, decode(t, w).Error.Details)
		}
	})

	t.Run("batch lines become details", func(t *testing.T) {
		c, w := testContext(http.MethodPost, "/", nil)
		line := feeapp.LineError{Index: 1, AssignmentID: uuid.New(), Kind: shared.KindInvariant, Code: "EXCEEDS_BALANCE", Message: "too much"}
		respond(c, http.StatusCreated, feeapp.Result[*feeapp.BatchReceipt]{
			ErrorKind: shared.KindInvariant,
			ErrorCode: feeapp.ErrBatchRejected.Code,
			Message:   "batch rejected",
			Errors:    []feeapp.LineError{line},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"EXCEEDS_BALANCE"`)
		assert.Contains(t, w.Body.String(), line.AssignmentID.String())
	})
}

func TestRespondEmpty(t *testing.T) {
	c, w := testContext(http.MethodDelete, "/", nil)
	respondEmpty(c, feeapp.Result[feeapp.Empty]{Success: true})
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)

	c, w = testContext(http.MethodDelete, "/", nil)
	respondEmpty(c, feeapp.Result[feeapp.Empty]{ErrorKind: shared.KindNotFound, ErrorCode: "FEE_TYPE_NOT_FOUND"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRespondPage(t *testing.T) {
	c, w := testContext(http.MethodGet, "/", nil)
	page := shared.NewPaginated([]string{"a", "b"}, 5, 1, 2)
	respondPage(c, feeapp.Result[*shared.Paginated[string]]{Success: true, Data: &page})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(5), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.Len(t, resp.Data, 2)
}
