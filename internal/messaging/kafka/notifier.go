package kafka

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Notifier публикует уведомления о заказах через Kafka producer.
// Публикация fire-and-forget с точки зрения ядра: ошибка возвращается
// вызывающему только для логирования и никогда не откатывает переход.
type Notifier struct {
	producer *Producer
	logger   *log.Entry
}

// NewNotifier создает Notifier поверх producer
func NewNotifier(producer *Producer) *Notifier {
	return &Notifier{
		producer: producer,
		logger:   log.WithField("component", "kafka-notifier"),
	}
}

// Publish публикует уведомление получателю. Ключ сообщения — receiverID,
// чтобы уведомления одного покупателя попадали в одну партицию по порядку.
func (n *Notifier) Publish(ctx context.Context, receiverID, event string, payload map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	eventType := EventType(event)
	notification := NewNotificationEvent(eventType, receiverID, payload)

	if err := n.producer.PublishEvent(TopicFor(eventType), receiverID, notification); err != nil {
		n.logger.WithError(err).WithFields(log.Fields{
			"receiver_id": receiverID,
			"event":       event,
		}).Error("failed to publish notification")
		return err
	}

	return nil
}

var _ domain.NotificationPublisher = (*Notifier)(nil)
