package kafka

import "time"

// EventType определяет тип события уведомления
type EventType string

const (
	// События жизненного цикла заказа
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderPaid          EventType = "order.paid"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderCanceled      EventType = "order.canceled"
	EventTypeOrderRefunded      EventType = "order.refunded"

	// События платежей
	EventTypePaymentConfirmed EventType = "payment.confirmed"
	EventTypePaymentFailed    EventType = "payment.failed"
)

// Topics для Kafka
const (
	TopicOrderNotifications   = "shop.order.notifications"
	TopicPaymentNotifications = "shop.payment.notifications"
)

// NotificationEvent представляет уведомление получателю о событии заказа.
// ReceiverID — покупатель, которому адресовано уведомление; ключ партиции.
type NotificationEvent struct {
	EventType  EventType              `json:"event_type"`
	ReceiverID string                 `json:"receiver_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// NewNotificationEvent создает новое уведомление
func NewNotificationEvent(eventType EventType, receiverID string, payload map[string]interface{}) *NotificationEvent {
	return &NotificationEvent{
		EventType:  eventType,
		ReceiverID: receiverID,
		Timestamp:  time.Now(),
		Payload:    payload,
	}
}

// TopicFor возвращает топик для данного типа события.
func TopicFor(eventType EventType) string {
	switch eventType {
	case EventTypePaymentConfirmed, EventTypePaymentFailed:
		return TopicPaymentNotifications
	default:
		return TopicOrderNotifications
	}
}
