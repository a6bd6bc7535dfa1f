package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingHandler(t *testing.T) {
	h := NewRecordingHandler("FeePaymentRecorded")
	assert.Equal(t, []string{"FeePaymentRecorded"}, h.EventTypes())

	tenantID := uuid.New()
	require.NoError(t, h.Handle(context.Background(), NewTestEvent("FeePaymentRecorded", tenantID)))
	require.NoError(t, h.Handle(context.Background(), NewTestEvent("FeePaymentReverted", tenantID)))

	assert.Equal(t, 2, h.Count())
	assert.Equal(t, []string{"FeePaymentRecorded", "FeePaymentReverted"}, h.Types())
	assert.Equal(t, tenantID, h.Handled()[0].TenantID())
}

func TestRecordingHandler_SetErrorAndReset(t *testing.T) {
	h := NewRecordingHandler()
	boom := errors.New("boom")
	h.SetError(boom)

	err := h.Handle(context.Background(), NewTestEvent("X", uuid.New()))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, h.Count(), "failed events are still recorded")

	h.Reset()
	assert.Zero(t, h.Count())
	assert.NoError(t, h.Handle(context.Background(), NewTestEvent("X", uuid.New())))
}

func TestNewTestEventWithID(t *testing.T) {
	id := uuid.New()
	evt := NewTestEventWithID(id, "X", TestTenantID())

	assert.Equal(t, id, evt.EventID())
	assert.Equal(t, "X", evt.EventType())
	assert.Equal(t, "TestAggregate", evt.AggregateType())
	assert.NotEqual(t, uuid.Nil, evt.AggregateID())
	assert.False(t, evt.OccurredAt().IsZero())
}
