package domain

// Таблицы переходов намеренно разделены: пользовательский (автоматический)
// путь и административный путь разрешают разные рёбра, и объединение таблиц
// молча изменило бы поведение. Админская таблица уже: из pending админ заказ
// не двигает (оплата и отмена до оплаты принадлежат покупателю и шлюзу).

// userTransitions — рёбра, допустимые для покупателя и автоматики оплаты.
var userTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:       {OrderStatusPaid, OrderStatusCanceled},
	OrderStatusPaid:          {OrderStatusShipmentReady, OrderStatusShipped, OrderStatusCanceled, OrderStatusRefunded, OrderStatusConfirmed},
	OrderStatusShipmentReady: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:       {OrderStatusDelivered, OrderStatusRefunded, OrderStatusConfirmed},
	OrderStatusDelivered:     {OrderStatusConfirmed, OrderStatusRefunded},
}

// adminTransitions — рёбра, допустимые для административного пути.
var adminTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPaid:          {OrderStatusShipmentReady, OrderStatusShipped, OrderStatusCanceled, OrderStatusRefunded},
	OrderStatusShipmentReady: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:       {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:     {OrderStatusConfirmed, OrderStatusRefunded},
}

// IsValidUserTransition проверяет ребро по пользовательской таблице.
func IsValidUserTransition(from, to OrderStatus) bool {
	return contains(userTransitions[from], to)
}

// IsValidAdminTransition проверяет ребро по административной таблице.
func IsValidAdminTransition(from, to OrderStatus) bool {
	return contains(adminTransitions[from], to)
}

func contains(allowed []OrderStatus, to OrderStatus) bool {
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StockEffect описывает складской побочный эффект перехода.
type StockEffect int

const (
	// StockEffectNone — переход не затрагивает остатки.
	StockEffectNone StockEffect = iota
	// StockEffectReserve — списать остаток по каждой позиции (all-or-nothing).
	StockEffectReserve
	// StockEffectRelease — вернуть остаток по каждой позиции.
	StockEffectRelease
)

// TransitionStockEffect возвращает складской эффект ребра. Это единственное
// место, связывающее переходы со стоком: резерв выполняется только при входе
// в paid, возврат — только при выходе из paid в canceled/refunded. Отмена из
// pending остатки не трогает, потому что pending ничего не резервировал.
func TransitionStockEffect(from, to OrderStatus) StockEffect {
	if to == OrderStatusPaid {
		return StockEffectReserve
	}
	if from == OrderStatusPaid && (to == OrderStatusCanceled || to == OrderStatusRefunded) {
		return StockEffectRelease
	}
	return StockEffectNone
}
