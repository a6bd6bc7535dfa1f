package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school/backend/internal/infrastructure/logger"
	"github.com/school/backend/internal/interfaces/http/dto"
)

func tenantRouter(cfg TenantConfig, pre ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(pre...)
	r.Use(Tenant(cfg))
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "up") })
	r.GET("/api/v1/fee-groups", func(c *gin.Context) {
		h, ok := GetTenantHandle(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		actor := ""
		if a := h.Actor(); a != nil {
			actor = a.String()
		}
		c.JSON(http.StatusOK, gin.H{
			"tenant":     h.TenantID().String(),
			"actor":      actor,
			"ctx_tenant": logger.GetTenantID(c.Request.Context()),
		})
	})
	return r
}

func TestTenant_FromJWT(t *testing.T) {
	svc := newTestJWT()
	tenantID, userID := uuid.New(), uuid.New()
	r := tenantRouter(DefaultTenantConfig(), JWTAuth(DefaultJWTConfig(svc)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fee-groups", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+signToken(t, svc, tenantID, userID, time.Hour))
	// a header never overrides the token
	req.Header.Set(TenantHeader, uuid.NewString())
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"tenant":"`+tenantID.String()+`","actor":"`+userID.String()+`","ctx_tenant":"`+tenantID.String()+`"}`,
		w.Body.String())
}

func TestTenant_HeaderFallback(t *testing.T) {
	cfg := DefaultTenantConfig()
	cfg.HeaderFallback = true
	r := tenantRouter(cfg)
	tenantID := uuid.New()

	t.Run("tenant without actor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/fee-groups", nil)
		req.Header.Set(TenantHeader, tenantID.String())
		w := serve(r, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"actor":""`)
	})

	t.Run("tenant with actor", func(t *testing.T) {
		userID := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/fee-groups", nil)
		req.Header.Set(TenantHeader, tenantID.String())
		req.Header.Set(UserHeader, userID.String())
		w := serve(r, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), userID.String())
	})

	t.Run("malformed user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/fee-groups", nil)
		req.Header.Set(TenantHeader, tenantID.String())
		req.Header.Set(UserHeader, "bob")
		w := serve(r, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTenant_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		fallback bool
		header   string
	}{
		{"no tenant", true, ""},
		{"malformed tenant", true, "not-a-uuid"},
		{"nil tenant", true, uuid.Nil.String()},
		{"header ignored without fallback", false, uuid.NewString()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTenantConfig()
			cfg.HeaderFallback = tt.fallback
			req := httptest.NewRequest(http.MethodGet, "/api/v1/fee-groups", nil)
			if tt.header != "" {
				req.Header.Set(TenantHeader, tt.header)
			}
			w := serve(tenantRouter(cfg), req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, dto.ErrCodeTenantRequired, decodeEnvelope(t, w).Error.Code)
		})
	}
}

func TestTenant_SkipPath(t *testing.T) {
	w := serve(tenantRouter(DefaultTenantConfig()), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetTenantHandle_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetTenantHandle(c)
	assert.False(t, ok)
	assert.Empty(t, GetTenantID(c))
}
