package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics provides fee ledger metrics.
// It tracks payments, reversals, waivers and the outstanding receivable.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	paymentTotal       *Counter
	paymentAmountTotal *Counter
	reversalTotal      *Counter
	waiverTotal        *Counter
	stampTotal         *Counter
	conflictTotal      *Counter

	// Gauge metrics (point-in-time values)
	outstandingBalance *FloatGauge
	overdueCount       *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	ledgerProvider LedgerMetricsProvider
}

// LedgerMetricsProvider reads aggregated ledger state for periodic collection
// without telemetry depending on the fee domain.
type LedgerMetricsProvider interface {
	// GetOutstandingBalance returns the summed balance snapshot of live assignments
	GetOutstandingBalance(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error)

	// GetOverdueCount returns how many live assignments are past due and unpaid
	GetOverdueCount(ctx context.Context, tenantID uuid.UUID, now time.Time) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	LedgerProvider  LedgerMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:          cfg.Meter,
		logger:         logger,
		stopChan:       make(chan struct{}),
		ledgerProvider: cfg.LedgerProvider,
	}

	counters := []struct {
		dst        **Counter
		name, desc string
		unit       string
	}{
		{&bm.paymentTotal, "fee_payment_total", "Total number of fee payments attempted", "{payments}"},
		{&bm.paymentAmountTotal, "fee_payment_amount_total", "Total amount collected in minor currency units", "{minor}"},
		{&bm.reversalTotal, "fee_payment_reversal_total", "Total number of reverted fee transactions", "{transactions}"},
		{&bm.waiverTotal, "fee_waiver_total", "Total number of fine waiver decisions", "{waivers}"},
		{&bm.stampTotal, "fee_assignment_stamp_total", "Total number of stamp requests", "{assignments}"},
		{&bm.conflictTotal, "fee_conflict_total", "Optimistic lock conflicts seen by the fee engine", "{conflicts}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	bm.outstandingBalance, err = NewFloatGauge(
		cfg.Meter,
		"fee_outstanding_balance",
		"Outstanding balance of live fee assignments at the last write",
		"{currency}",
	)
	if err != nil {
		return nil, err
	}

	bm.overdueCount, err = NewGauge(
		cfg.Meter,
		"fee_overdue_assignments",
		"Number of live assignments past their due date",
		"{assignments}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Payment Metrics
// =============================================================================

// PaymentStatus represents the outcome of a payment for metrics labeling.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// RecordPayment records a payment attempt.
func (bm *BusinessMetrics) RecordPayment(ctx context.Context, tenantID uuid.UUID, paymentMethod string, status PaymentStatus) {
	bm.paymentTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPaymentMethod.String(paymentMethod),
		AttrPaymentStatus.String(string(status)),
	)
}

// RecordPaymentAmount records a collected amount.
// Amount is converted to the smallest currency unit (cents).
func (bm *BusinessMetrics) RecordPaymentAmount(ctx context.Context, tenantID uuid.UUID, paymentMethod string, amount decimal.Decimal) {
	minor := amount.Mul(decimal.NewFromInt(100)).IntPart()
	bm.paymentAmountTotal.Add(ctx, minor,
		AttrTenantID.String(tenantID.String()),
		AttrPaymentMethod.String(paymentMethod),
	)
}

// RecordReversal records a reverted transaction
func (bm *BusinessMetrics) RecordReversal(ctx context.Context, tenantID uuid.UUID, paymentMethod string) {
	bm.reversalTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPaymentMethod.String(paymentMethod),
	)
}

// =============================================================================
// Assignment and Waiver Metrics
// =============================================================================

// RecordStamp records a stamp request; created is false for idempotent replays
func (bm *BusinessMetrics) RecordStamp(ctx context.Context, tenantID uuid.UUID, targetType string, created bool) {
	outcome := "existing"
	if created {
		outcome = "created"
	}
	bm.stampTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrTargetType.String(targetType),
		AttrStampOutcome.String(outcome),
	)
}

// RecordWaiverDecision records an approved or rejected waiver
func (bm *BusinessMetrics) RecordWaiverDecision(ctx context.Context, tenantID uuid.UUID, decision string) {
	bm.waiverTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrWaiverDecision.String(decision),
	)
}

// RecordConflict records an optimistic lock conflict for operation
func (bm *BusinessMetrics) RecordConflict(ctx context.Context, tenantID uuid.UUID, operation string) {
	bm.conflictTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOperation.String(operation),
	)
}

// RecordOutstandingBalance records the tenant's outstanding receivable
func (bm *BusinessMetrics) RecordOutstandingBalance(ctx context.Context, tenantID uuid.UUID, balance decimal.Decimal) {
	bm.outstandingBalance.Record(ctx, balance.InexactFloat64(),
		AttrTenantID.String(tenantID.String()),
	)
}

// RecordOverdueCount records the number of overdue assignments
func (bm *BusinessMetrics) RecordOverdueCount(ctx context.Context, tenantID uuid.UUID, count int64) {
	bm.overdueCount.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// TenantProvider provides tenant IDs for periodic metrics collection.
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects ledger gauges every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, tenantProvider, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectLedgerMetrics(ctx, tenantProvider)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectLedgerMetrics(ctx, tenantProvider)
		}
	}
}

// collectLedgerMetrics collects ledger gauges for all tenants.
func (bm *BusinessMetrics) collectLedgerMetrics(ctx context.Context, tenantProvider TenantProvider) {
	if bm.ledgerProvider == nil {
		bm.logger.Debug("No ledger provider configured, skipping ledger metrics collection")
		return
	}

	tenantIDs, err := tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		bm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for _, tenantID := range tenantIDs {
		bm.collectTenantLedgerMetrics(ctx, tenantID, now)
	}
}

func (bm *BusinessMetrics) collectTenantLedgerMetrics(ctx context.Context, tenantID uuid.UUID, now time.Time) {
	balance, err := bm.ledgerProvider.GetOutstandingBalance(ctx, tenantID)
	if err != nil {
		bm.logger.Warn("Failed to get outstanding balance for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		bm.RecordOutstandingBalance(ctx, tenantID, balance)
	}

	overdue, err := bm.ledgerProvider.GetOverdueCount(ctx, tenantID, now)
	if err != nil {
		bm.logger.Warn("Failed to get overdue count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		bm.RecordOverdueCount(ctx, tenantID, overdue)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
