package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/school/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)
	assignmentID := uuid.New()

	_, span := telemetry.StartServiceSpan(context.Background(), "fee_payment", "pay_single_fee",
		telemetry.SpanAttrAssignmentID, assignmentID,
		telemetry.SpanAttrAttempt, 2,
	)
	telemetry.SetAttributes(span, telemetry.SpanAttrAmount, "400.00", 42, "skipped", "dangling")
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentMethod, "CASH")
	telemetry.AddEvent(span, "fine_assessed", "fine", 50.0)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "fee_payment.pay_single_fee", spans[0].Name())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, assignmentID.String(), attrs[telemetry.SpanAttrAssignmentID].AsString())
	assert.Equal(t, int64(2), attrs[telemetry.SpanAttrAttempt].AsInt64())
	assert.Equal(t, "400.00", attrs[telemetry.SpanAttrAmount].AsString())
	assert.Equal(t, "CASH", attrs[telemetry.SpanAttrPaymentMethod].AsString())
	assert.Len(t, attrs, 4)

	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "fine_assessed", spans[0].Events()[0].Name)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "fee_payment", "revert_transaction")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(span, errors.New("reversal window closed"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "reversal window closed", spans[0].Status().Description)
}

func TestSpanHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "a", 1)
		telemetry.SetAttribute(nil, "a", 1)
		telemetry.RecordError(nil, errors.New("boom"))
		telemetry.AddEvent(nil, "event")
	})
}

func TestTracerProvider_Disabled(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{ServiceName: "fee-ledger"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.EnableSpanProfiles())
	assert.False(t, tp.IsSpanProfilesEnabled())
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))
}
