package telemetry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/school/backend/internal/infrastructure/telemetry"
)

type staticTenants []uuid.UUID

func (s staticTenants) GetActiveTenantIDs(context.Context) ([]uuid.UUID, error) {
	return s, nil
}

type fakeLedger struct {
	balance decimal.Decimal
	overdue int64
	err     error
	calls   atomic.Int32
}

func (f *fakeLedger) GetOutstandingBalance(context.Context, uuid.UUID) (decimal.Decimal, error) {
	f.calls.Add(1)
	return f.balance, f.err
}

func (f *fakeLedger) GetOverdueCount(context.Context, uuid.UUID, time.Time) (int64, error) {
	return f.overdue, f.err
}

func TestNewBusinessMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{Logger: zap.NewNop()})
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Nil(t, bm)
}

func TestBusinessMetrics_ReversalAndWaivers(t *testing.T) {
	reader, provider := newManualMeter(t)
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()
	bm.RecordReversal(ctx, tenantID, "CASH")
	bm.RecordWaiverDecision(ctx, tenantID, "APPROVED")
	bm.RecordWaiverDecision(ctx, tenantID, "REJECTED")

	rm := collect(t, reader)
	assert.Equal(t, int64(1), sumOf(t, rm, "fee_payment_reversal_total"))
	assert.Equal(t, int64(2), sumOf(t, rm, "fee_waiver_total"))
}

func TestBusinessMetrics_PeriodicCollectionRecordsGauges(t *testing.T) {
	reader, provider := newManualMeter(t)
	ledger := &fakeLedger{balance: decimal.RequireFromString("650.25"), overdue: 2}
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:          provider.Meter("test"),
		Logger:         zap.NewNop(),
		LedgerProvider: ledger,
	})
	require.NoError(t, err)
	t.Cleanup(bm.Stop)

	bm.StartPeriodicCollection(context.Background(), staticTenants{uuid.New()}, time.Hour)

	// The first collection runs immediately
	require.Eventually(t, func() bool { return ledger.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := findMetric(collect(t, reader), "fee_overdue_assignments")
		return ok
	}, time.Second, 5*time.Millisecond)

	rm := collect(t, reader)
	m, ok := findMetric(rm, "fee_outstanding_balance")
	require.True(t, ok)
	balance, ok := m.Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, balance.DataPoints, 1)
	assert.InDelta(t, 650.25, balance.DataPoints[0].Value, 1e-9)

	m, _ = findMetric(rm, "fee_overdue_assignments")
	overdue, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), overdue.DataPoints[0].Value)
}

func TestBusinessMetrics_PeriodicCollectionSurvivesProviderErrors(t *testing.T) {
	reader, provider := newManualMeter(t)
	ledger := &fakeLedger{err: errors.New("db down")}
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:          provider.Meter("test"),
		LedgerProvider: ledger,
	})
	require.NoError(t, err)
	t.Cleanup(bm.Stop)

	bm.StartPeriodicCollection(context.Background(), staticTenants{uuid.New()}, 10*time.Millisecond)
	require.Eventually(t, func() bool { return ledger.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	_, ok := findMetric(collect(t, reader), "fee_outstanding_balance")
	assert.False(t, ok, "no gauge is recorded when the provider fails")
}

func TestBusinessMetrics_NoLedgerProvider(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{Meter: noop.NewMeterProvider().Meter("test")})
	require.NoError(t, err)

	bm.StartPeriodicCollection(context.Background(), staticTenants{uuid.New()}, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	bm.Stop()
}

func TestBusinessMetrics_StartOnceStopTwice(t *testing.T) {
	ledger := &fakeLedger{}
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:          noop.NewMeterProvider().Meter("test"),
		LedgerProvider: ledger,
	})
	require.NoError(t, err)

	tenants := staticTenants{uuid.New()}
	bm.StartPeriodicCollection(context.Background(), tenants, time.Hour)
	bm.StartPeriodicCollection(context.Background(), tenants, time.Hour)
	require.Eventually(t, func() bool { return ledger.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), ledger.calls.Load(), "a second start does not spawn another collector")

	bm.Stop()
	bm.Stop()
}
