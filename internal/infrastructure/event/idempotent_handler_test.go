package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	feeapp "github.com/school/backend/internal/application/fee"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/infrastructure/cache"
)

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

func TestIdempotentHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("first delivery runs the handler", func(t *testing.T) {
		inner := newRecordingHandler("FeePaymentRecorded")
		store := new(MockIdempotencyStore)
		evt := newTestEvent("FeePaymentRecorded")
		h := NewIdempotentHandler(inner, store, zap.NewNop(), WithHandlerName("notify"))
		store.On("MarkProcessed", ctx, "notify:"+evt.EventID().String(), 24*time.Hour).Return(true, nil)

		require.NoError(t, h.Handle(ctx, evt))

		assert.Equal(t, 1, inner.count())
		assert.Equal(t, IdempotencyStats{EventsProcessed: 1}, h.Metrics().Stats())
		store.AssertExpectations(t)
	})

	t.Run("redelivery is skipped", func(t *testing.T) {
		inner := newRecordingHandler("FeePaymentRecorded")
		store := new(MockIdempotencyStore)
		store.On("MarkProcessed", ctx, mock.Anything, mock.Anything).Return(false, nil)
		h := NewIdempotentHandler(inner, store, zap.NewNop())

		require.NoError(t, h.Handle(ctx, newTestEvent("FeePaymentRecorded")))

		assert.Zero(t, inner.count())
		assert.Equal(t, int64(1), h.Metrics().EventsDuplicate.Load())
	})

	t.Run("handler error is returned and counted", func(t *testing.T) {
		inner := newRecordingHandler("FeePaymentRecorded")
		inner.err = errors.New("dispatch failed")
		store := new(MockIdempotencyStore)
		store.On("MarkProcessed", ctx, mock.Anything, mock.Anything).Return(true, nil)
		h := NewIdempotentHandler(inner, store, zap.NewNop())

		assert.EqualError(t, h.Handle(ctx, newTestEvent("FeePaymentRecorded")), "dispatch failed")
		assert.Equal(t, int64(1), h.Metrics().EventsFailed.Load())
	})

	t.Run("store error still handles the event", func(t *testing.T) {
		inner := newRecordingHandler("FeePaymentRecorded")
		store := new(MockIdempotencyStore)
		store.On("MarkProcessed", ctx, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
		h := NewIdempotentHandler(inner, store, zap.NewNop())

		require.NoError(t, h.Handle(ctx, newTestEvent("FeePaymentRecorded")))
		assert.Equal(t, 1, inner.count())
	})

	t.Run("disabled bypasses the store", func(t *testing.T) {
		inner := newRecordingHandler("FeePaymentRecorded")
		store := new(MockIdempotencyStore)
		h := NewIdempotentHandler(inner, store, zap.NewNop(),
			WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))

		evt := newTestEvent("FeePaymentRecorded")
		require.NoError(t, h.Handle(ctx, evt))
		require.NoError(t, h.Handle(ctx, evt))

		assert.Equal(t, 2, inner.count())
		store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("custom ttl", func(t *testing.T) {
		inner := newRecordingHandler("FeePaymentRecorded")
		store := new(MockIdempotencyStore)
		store.On("MarkProcessed", ctx, mock.Anything, time.Hour).Return(true, nil)
		h := NewIdempotentHandler(inner, store, zap.NewNop(),
			WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: true, TTL: time.Hour}))

		require.NoError(t, h.Handle(ctx, newTestEvent("FeePaymentRecorded")))
		store.AssertExpectations(t)
	})
}

func TestIdempotentHandler_Delegation(t *testing.T) {
	inner := newRecordingHandler("FeePaymentRecorded", "AdvanceDeposited")
	h := NewIdempotentHandler(inner, cache.NewInMemoryIdempotencyStore(), zap.NewNop())

	assert.Equal(t, inner.EventTypes(), h.EventTypes())
	assert.Same(t, inner, h.Unwrap())
}

func TestIdempotentHandler_SeparateNamespaces(t *testing.T) {
	ctx := context.Background()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	shared1 := &IdempotencyMetrics{}
	a := NewIdempotentHandler(newRecordingHandler(), store, zap.NewNop(), WithHandlerName("a"), WithIdempotencyMetrics(shared1))
	b := NewIdempotentHandler(newRecordingHandler(), store, zap.NewNop(), WithHandlerName("b"), WithIdempotencyMetrics(shared1))

	evt := newTestEvent("FeePaymentRecorded")
	require.NoError(t, a.Handle(ctx, evt))
	require.NoError(t, b.Handle(ctx, evt))
	require.NoError(t, a.Handle(ctx, evt))

	assert.Equal(t, IdempotencyStats{EventsProcessed: 2, EventsDuplicate: 1}, shared1.Stats())
}

func TestIdempotentHandler_ConcurrentRedelivery(t *testing.T) {
	ctx := context.Background()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	inner := newRecordingHandler("FeePaymentRecorded")
	h := NewIdempotentHandler(inner, store, zap.NewNop())
	evt := newTestEvent("FeePaymentRecorded")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Handle(ctx, evt)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inner.count())
}

type countingDispatcher struct {
	mu   sync.Mutex
	sent []feeapp.PaymentNotification
}

func (d *countingDispatcher) Dispatch(_ context.Context, n feeapp.PaymentNotification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return nil
}

func TestBus_NotifiesPayerOncePerPayment(t *testing.T) {
	ctx := context.Background()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	dispatcher := &countingDispatcher{}
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewIdempotentHandler(feeapp.NewNotificationHandler(zap.NewNop(), dispatcher), store, zap.NewNop()))

	txID := uuid.New()
	tenantID := uuid.New()
	recorded := &fee.PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(fee.EventTypePaymentRecorded, "FeeTransaction", txID, tenantID, occurred),
		TransactionID:   txID,
		AssignmentID:    uuid.New(),
		TargetType:      fee.TargetStudent,
		TargetID:        uuid.New(),
		Amount:          decimal.RequireFromString("150.00"),
		Method:          fee.PaymentMethodCash,
		ReferenceNo:     "RCPT-77",
	}

	require.NoError(t, bus.Publish(ctx, recorded))
	require.NoError(t, bus.Publish(ctx, recorded))
	require.NoError(t, bus.Publish(ctx, newTestEvent(fee.EventTypeWaiverApproved)))

	require.Len(t, dispatcher.sent, 1)
	n := dispatcher.sent[0]
	assert.Equal(t, feeapp.NotificationPaymentReceived, n.Kind)
	assert.Equal(t, tenantID, n.TenantID)
	assert.Equal(t, "RCPT-77", n.ReferenceNo)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("150")))
}
