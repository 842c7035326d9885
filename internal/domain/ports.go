package domain

import "context"

// CartStore описывает внешнее хранилище корзин. Ядро заказов только читает
// строки для режима покупки из корзины и удаляет их после успешной оплаты.
type CartStore interface {
	// Lines возвращает строки корзины покупателя по идентификаторам товаров.
	Lines(ctx context.Context, memberID string, itemIDs []string) ([]CartLine, error)
	// Delete удаляет строки корзины по идентификаторам товаров.
	Delete(ctx context.Context, memberID string, itemIDs []string) error
}

// NotificationPublisher публикует уведомления о смене статуса заказа.
// Вызовы fire-and-forget: ошибка публикации логируется и не откатывает переход.
type NotificationPublisher interface {
	Publish(ctx context.Context, receiverID, event string, payload map[string]interface{}) error
}

// PaymentGateway описывает внешний платёжный шлюз. Confirm — сетевой вызов
// к нетранзакционной системе; повторы на стороне ядра не выполняются.
type PaymentGateway interface {
	Confirm(ctx context.Context, paymentKey, gatewayOrderID string, amountMinor int64) (GatewayConfirmation, error)
}
