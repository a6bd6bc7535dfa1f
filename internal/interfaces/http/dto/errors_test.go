package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school/backend/internal/domain/shared"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind     shared.ErrorKind
		expected int
	}{
		{shared.KindValidation, http.StatusBadRequest},
		{shared.KindNotFound, http.StatusNotFound},
		{shared.KindConflict, http.StatusConflict},
		{shared.KindInvariant, http.StatusUnprocessableEntity},
		{shared.KindPolicy, http.StatusUnprocessableEntity},
		{shared.KindInfrastructure, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.kind))
		})
	}
}

func TestErrorResponse_JSON(t *testing.T) {
	resp := NewErrorResponse(shared.KindPolicy, "ALREADY_REVERTED", "transaction already reverted", nil).
		WithRequestID("req-9")

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": false,
		"error": {"code": "ALREADY_REVERTED", "kind": "POLICY", "message": "transaction already reverted"},
		"request_id": "req-9"
	}`, string(raw))
}

func TestErrorResponse_Details(t *testing.T) {
	details := []ValidationDetail{{Field: "amount", Message: "This field is required"}}
	resp := NewErrorResponse(shared.KindValidation, ErrCodeValidation, "invalid request", details)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"details":[{"field":"amount","message":"This field is required"}]`)
}

func TestSuccessResponse_JSON(t *testing.T) {
	raw, err := json.Marshal(NewSuccessResponse(map[string]int{"n": 1}, "created"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true, "data": {"n": 1}, "message": "created"}`, string(raw))
}

func TestNewPaginatedResponse(t *testing.T) {
	t.Run("items and meta", func(t *testing.T) {
		p := shared.NewPaginated([]string{"a", "b"}, 12, 2, 5)
		resp := NewPaginatedResponse(&p)

		assert.True(t, resp.Success)
		assert.Equal(t, []string{"a", "b"}, resp.Data)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(12), resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.Page)
		assert.Equal(t, 5, resp.Meta.PageSize)
		assert.Equal(t, 3, resp.Meta.TotalPages)
	})

	t.Run("nil items encode as an empty list", func(t *testing.T) {
		raw, err := json.Marshal(NewPaginatedResponse(&shared.Paginated[string]{Page: 1, PageSize: 20}))
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"data":[]`)
	})

	t.Run("nil page", func(t *testing.T) {
		resp := NewPaginatedResponse[string](nil)
		assert.Equal(t, []string{}, resp.Data)
		assert.Nil(t, resp.Meta)
	})
}

func TestListRequest_ToFilter(t *testing.T) {
	def := shared.DefaultFilter()
	assert.Equal(t, def, ListRequest{}.ToFilter())

	f := ListRequest{Page: 3, PageSize: 50, OrderBy: "due_date", OrderDir: "asc", Search: "tuition"}.ToFilter()
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, 50, f.PageSize)
	assert.Equal(t, "due_date", f.OrderBy)
	assert.Equal(t, "asc", f.OrderDir)
	assert.Equal(t, "tuition", f.Search)
}
