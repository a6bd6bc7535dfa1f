package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/school/backend/internal/infrastructure/telemetry"
)

func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func metricsRouter(mp *sdkmetric.MeterProvider) *gin.Engine {
	cfg := DefaultTenantConfig()
	cfg.HeaderFallback = true

	r := gin.New()
	r.Use(HTTPMetricsWithMeter(mp.Meter("test")), Tenant(cfg))
	r.GET("/api/v1/fee-types/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	return r
}

func TestHTTPMetrics_RequestTotal(t *testing.T) {
	mp, reader := setupTestMeter(t)
	r := metricsRouter(mp)
	tenantID := uuid.NewString()

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/fee-types/"+uuid.NewString(), nil)
		req.Header.Set(TenantHeader, tenantID)
		serve(r, req)
	}

	m := collectMetric(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1, "route pattern keeps one series per route")

	dp := sum.DataPoints[0]
	assert.Equal(t, int64(3), dp.Value)
	route, _ := dp.Attributes.Value(telemetry.AttrHTTPRoute)
	assert.Equal(t, "/api/v1/fee-types/:id", route.AsString())
	status, _ := dp.Attributes.Value(telemetry.AttrHTTPStatusCode)
	assert.Equal(t, int64(http.StatusOK), status.AsInt64())
	tenant, _ := dp.Attributes.Value(telemetry.AttrTenantID)
	assert.Equal(t, tenantID, tenant.AsString())
}

func TestHTTPMetrics_Duration(t *testing.T) {
	mp, reader := setupTestMeter(t)
	r := metricsRouter(mp)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fee-types/x", nil)
	req.Header.Set(TenantHeader, uuid.NewString())
	serve(r, req)

	m := collectMetric(t, reader, "http_server_request_duration_seconds")
	require.NotNil(t, m)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	_, hasTenant := hist.DataPoints[0].Attributes.Value(telemetry.AttrTenantID)
	assert.False(t, hasTenant)
}

func TestHTTPMetrics_UnmatchedRoute(t *testing.T) {
	mp, reader := setupTestMeter(t)
	r := metricsRouter(mp)

	serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))

	m := collectMetric(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.True(t, sum.DataPoints[0].Attributes.HasValue(telemetry.AttrHTTPRoute))
	route, _ := sum.DataPoints[0].Attributes.Value(telemetry.AttrHTTPRoute)
	assert.Equal(t, "unknown", route.AsString())
}

func TestHTTPMetrics_ActiveRequestsReturnsToZero(t *testing.T) {
	mp, reader := setupTestMeter(t)
	r := metricsRouter(mp)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fee-types/x", nil)
	req.Header.Set(TenantHeader, uuid.NewString())
	serve(r, req)

	m := collectMetric(t, reader, "http_server_active_requests")
	require.NotNil(t, m)
	sum := m.Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Zero(t, total)
}

func TestHTTPMetrics_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: false}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	r = gin.New()
	r.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: true}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
