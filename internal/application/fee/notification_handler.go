package fee

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NotificationKind tells the recipient what happened to their money
type NotificationKind string

const (
	NotificationPaymentReceived NotificationKind = "PAYMENT_RECEIVED"
	NotificationPaymentReverted NotificationKind = "PAYMENT_REVERTED"
	NotificationAdvanceReceived NotificationKind = "ADVANCE_RECEIVED"
)

// PaymentNotification is sent to the payer or guardian of a target
type PaymentNotification struct {
	TenantID    uuid.UUID         `json:"tenant_id"`
	Target      TargetView        `json:"target"`
	Amount      decimal.Decimal   `json:"amount"`
	Method      fee.PaymentMethod `json:"method"`
	ReferenceNo string            `json:"reference_no,omitempty"`
	Kind        NotificationKind  `json:"kind"`
}

// NotificationDispatcher delivers payment notifications. Delivery channels
// (SMS, email, push) live behind this interface.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, notification PaymentNotification) error
}

// NotificationHandler turns payment events into notifications
type NotificationHandler struct {
	logger     *zap.Logger
	dispatcher NotificationDispatcher
}

// NewNotificationHandler creates a handler that forwards to dispatcher
func NewNotificationHandler(logger *zap.Logger, dispatcher NotificationDispatcher) *NotificationHandler {
	return &NotificationHandler{
		logger:     logger,
		dispatcher: dispatcher,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *NotificationHandler) EventTypes() []string {
	return []string{
		fee.EventTypePaymentRecorded,
		fee.EventTypePaymentReverted,
		fee.EventTypeAdvanceDeposited,
	}
}

// Handle builds and dispatches the notification for a payment event.
// Dispatch failures are logged and do not fail event handling.
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	notification, err := notificationFor(event)
	if err != nil {
		h.logger.Error("unexpected event type",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
		)
		return err
	}
	if h.dispatcher == nil {
		return nil
	}

	if err := h.dispatcher.Dispatch(ctx, notification); err != nil {
		h.logger.Error("failed to dispatch payment notification",
			zap.String("event_id", event.EventID().String()),
			zap.String("kind", string(notification.Kind)),
			zap.Error(err),
		)
		return nil
	}
	h.logger.Debug("payment notification dispatched",
		zap.String("event_id", event.EventID().String()),
		zap.String("kind", string(notification.Kind)),
	)
	return nil
}

func notificationFor(event shared.DomainEvent) (PaymentNotification, error) {
	n := PaymentNotification{TenantID: event.TenantID()}
	switch e := event.(type) {
	case *fee.PaymentRecordedEvent:
		n.Target = TargetView{Type: e.TargetType, ID: e.TargetID}
		n.Amount, n.Method, n.ReferenceNo = e.Amount, e.Method, e.ReferenceNo
		n.Kind = NotificationPaymentReceived
	case *fee.PaymentRevertedEvent:
		n.Target = TargetView{Type: e.TargetType, ID: e.TargetID}
		n.Amount, n.Method, n.ReferenceNo = e.Amount, e.Method, e.ReferenceNo
		n.Kind = NotificationPaymentReverted
	case *fee.AdvanceDepositedEvent:
		n.Target = TargetView{Type: e.TargetType, ID: e.TargetID}
		n.Amount, n.Method, n.ReferenceNo = e.Amount, e.Method, e.ReferenceNo
		n.Kind = NotificationAdvanceReceived
	default:
		return PaymentNotification{}, fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	return n, nil
}

var _ shared.EventHandler = (*NotificationHandler)(nil)

// LoggingDispatcher writes notifications to the log
type LoggingDispatcher struct {
	logger *zap.Logger
}

// NewLoggingDispatcher creates a new logging dispatcher
func NewLoggingDispatcher(logger *zap.Logger) *LoggingDispatcher {
	return &LoggingDispatcher{logger: logger}
}

// Dispatch logs the notification
func (d *LoggingDispatcher) Dispatch(ctx context.Context, n PaymentNotification) error {
	d.logger.Info("payment notification",
		zap.String("tenant_id", n.TenantID.String()),
		zap.String("kind", string(n.Kind)),
		zap.String("target_type", string(n.Target.Type)),
		zap.String("target_id", n.Target.ID.String()),
		zap.String("amount", n.Amount.String()),
		zap.String("method", string(n.Method)),
	)
	return nil
}

var _ NotificationDispatcher = (*LoggingDispatcher)(nil)
