package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора покупателя.
	ErrMemberRequired = errors.New("member_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_minor must be non-negative")
	// Ошибка отрицательной стоимости доставки.
	ErrShippingFeeNegative = errors.New("shipping_fee_minor must be non-negative")
	// Ошибка при некорректном количестве товара в позиции (< 1).
	ErrLineQtyInvalid = errors.New("line qty must be at least one")
	// Ошибка, если цена позиции отрицательная.
	ErrLinePriceInvalid = errors.New("line unit price must be non-negative")
	// Ошибка отсутствующей ссылки на товар в позиции.
	ErrLineItemRequired = errors.New("line item_id is required")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match lines sum")
	// Ошибка расхождения денормализованного количества с позициями.
	ErrItemQuantityMismatch = errors.New("item_quantity does not match lines")
	// Ошибка неполного адреса доставки.
	ErrAddressIncomplete = errors.New("shipping address requires zipcode and street")
	// Ошибка отсутствующего получателя в адресе.
	ErrReceiverRequired = errors.New("shipping address requires receiver")

	// Ошибка отсутствующего названия товара.
	ErrItemNameRequired = errors.New("item name is required")
	// Ошибка отрицательного складского остатка.
	ErrStockNegative = errors.New("item available must be non-negative")

	// ErrInvalidRequest возвращается при пустом или некорректном запросе на покупку.
	ErrInvalidRequest = errors.New("invalid purchase request")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrItemNotFound возвращается, если товар каталога не существует.
	ErrItemNotFound = errors.New("item not found")
	// ErrCartLineNotFound возвращается, если запрошенный товар отсутствует в корзине покупателя.
	ErrCartLineNotFound = errors.New("cart line not found")
	// ErrForbidden возвращается при обращении к чужому заказу или без прав администратора.
	ErrForbidden = errors.New("caller is not allowed to access this order")

	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrIllegalTransition возвращается при переходе вне таблицы разрешённых рёбер.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrNotPayable возвращается, когда заказ не в статусе pending для оплаты.
	ErrNotPayable = errors.New("order is not payable")
	// ErrInsufficientStock возвращается, когда резервирование увело бы остаток ниже нуля.
	ErrInsufficientStock = errors.New("insufficient item stock")

	// ErrAmountMismatchClient — сумма из запроса не совпадает с суммой заказа.
	ErrAmountMismatchClient = errors.New("client amount does not match order amount")
	// ErrAmountTooLow — сумма ниже минимального порога платёжного метода.
	ErrAmountTooLow = errors.New("amount is below gateway minimum")
	// ErrGatewayConfirmFailed — шлюз отклонил подтверждение или не ответил вовремя.
	ErrGatewayConfirmFailed = errors.New("gateway confirm failed")
	// ErrPaymentKeyExists — подтверждение с таким payment key уже обработано.
	ErrPaymentKeyExists = errors.New("payment record already exists for key")
	// ErrPaymentNotFound возвращается, если запись о платеже не найдена.
	ErrPaymentNotFound = errors.New("payment record not found")
	// Ошибка отсутствующего payment key в квитанции.
	ErrPaymentKeyRequired = errors.New("payment key is required")
	// Ошибка отсутствующего идентификатора заказа в квитанции.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отрицательной суммы платежа.
	ErrPaymentAmountNegative = errors.New("payment amount must be non-negative")

	// ErrIdempotencyKeyRequired — пустой idempotency key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой hash запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsConflict объединяет ошибки, которые транспортный слой отдаёт как 409.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrNotPayable) ||
		errors.Is(err, ErrInsufficientStock)
}

// IsNotFound объединяет ошибки отсутствующих сущностей (404).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrCartLineNotFound)
}
