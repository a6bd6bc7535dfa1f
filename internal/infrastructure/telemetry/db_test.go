package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/school/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	defaultWait = 2 * time.Second
	tick        = 20 * time.Millisecond
)

type ledgerRow struct {
	ID     uint `gorm:"primaryKey"`
	Amount string
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&ledgerRow{}))
	return db
}

func TestRegisterDBMetrics(t *testing.T) {
	t.Run("disabled returns nil", func(t *testing.T) {
		m, err := telemetry.RegisterDBMetrics(openSQLite(t), nil, telemetry.DefaultDBMetricsConfig(), zap.NewNop())
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("queries are counted by operation", func(t *testing.T) {
		reader, provider := newManualMeter(t)
		db := openSQLite(t)

		m, err := telemetry.RegisterDBMetrics(db, provider.Meter("db"), telemetry.DefaultDBMetricsConfig(), zap.NewNop())
		require.NoError(t, err)
		require.NotNil(t, m)
		defer m.Stop()

		require.NoError(t, db.Create(&ledgerRow{Amount: "100.00"}).Error)
		require.NoError(t, db.Create(&ledgerRow{Amount: "250.00"}).Error)
		var rows []ledgerRow
		require.NoError(t, db.Find(&rows).Error)
		require.NoError(t, db.Model(&ledgerRow{}).Where("id = ?", rows[0].ID).Update("amount", "90.00").Error)

		rm := collect(t, reader)
		assert.Equal(t, int64(2), sumOf(t, rm, "db_query_total", telemetry.AttrDBOperation.String("INSERT")))
		assert.Equal(t, int64(1), sumOf(t, rm, "db_query_total", telemetry.AttrDBOperation.String("SELECT")))
		assert.Equal(t, int64(1), sumOf(t, rm, "db_query_total", telemetry.AttrDBOperation.String("UPDATE")))
		_, ok := findMetric(rm, "db_query_duration_seconds")
		assert.True(t, ok)
	})

	t.Run("pool stats are sampled and stop is idempotent", func(t *testing.T) {
		reader, provider := newManualMeter(t)
		m, err := telemetry.RegisterDBMetrics(openSQLite(t), provider.Meter("db"), telemetry.DefaultDBMetricsConfig(), zap.NewNop())
		require.NoError(t, err)

		m.StartPoolStatsCollection(context.Background())
		require.Eventually(t, func() bool {
			_, ok := findMetric(collect(t, reader), "db_pool_connections_max")
			return ok
		}, defaultWait, tick)
		m.Stop()
		m.Stop()
	})
}

func TestRegisterDBTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	db := openSQLite(t)
	cfg := telemetry.DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	require.NoError(t, telemetry.RegisterDBTracing(db, cfg, zap.NewNop()))

	ctx, parent := tp.Tracer("test").Start(context.Background(), "fee_payment.pay_single_fee")
	require.NoError(t, db.WithContext(ctx).Create(&ledgerRow{Amount: "100.00"}).Error)
	parent.End()

	spans := sr.Ended()
	require.GreaterOrEqual(t, len(spans), 2)
	var child sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Parent().SpanID() == parent.SpanContext().SpanID() {
			child = s
		}
	}
	require.NotNil(t, child, "query span should be a child of the service span")

	var rows int64 = -1
	for _, attr := range child.Attributes() {
		if attr.Key == "db.rows_affected" {
			rows = attr.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(1), rows)
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	assert.NoError(t, telemetry.RegisterDBTracing(openSQLite(t), telemetry.DefaultDBTracingConfig(), zap.NewNop()))
}
