package domain

import "time"

// OrderStatus описывает жизненный цикл заказа в магазине.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена; сток не затронут.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid — оплата подтверждена платёжным шлюзом, товары зарезервированы.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusShipmentReady — заказ собран и готов к передаче в доставку.
	OrderStatusShipmentReady OrderStatus = "shipment_ready"
	// OrderStatusShipped — заказ передан перевозчику.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — перевозчик подтвердил доставку.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusConfirmed — покупатель подтвердил получение; терминальный статус.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusCanceled — заказ отменён; терминальный статус.
	OrderStatusCanceled OrderStatus = "canceled"
	// OrderStatusRefunded — средства возвращены покупателю; терминальный статус.
	OrderStatusRefunded OrderStatus = "refunded"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipmentReady,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusConfirmed,
		OrderStatusCanceled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// Terminal сообщает, запрещены ли дальнейшие переходы из статуса.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusCanceled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// ShippingAddress — встроенный value object адреса доставки.
// Заменяется только целиком, частичное обновление полей не поддерживается.
type ShippingAddress struct {
	Zipcode  string
	Street   string
	Detail   string
	Receiver string
	Phone    string
}

// Validate проверяет обязательные поля адреса.
func (a ShippingAddress) Validate() []error {
	var errs []error

	if a.Zipcode == "" || a.Street == "" {
		errs = append(errs, ErrAddressIncomplete)
	}
	if a.Receiver == "" {
		errs = append(errs, ErrReceiverRequired)
	}

	return errs
}

// OrderLine представляет одну позицию заказа. Цена фиксируется в момент
// создания заказа и не пересчитывается при изменении цены товара.
type OrderLine struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ItemID — ссылка на товар каталога (не владеющая).
	ItemID string
	// Qty — количество единиц товара, всегда >= 1.
	Qty int32
	// UnitPriceMinor — снапшот цены за единицу в минимальных денежных единицах.
	UnitPriceMinor int64
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Order агрегирует шапку заказа и его позиции.
type Order struct {
	ID       string
	MemberID string
	Status   OrderStatus
	// ShippingFeeMinor — стоимость доставки, входит в TotalMinor.
	ShippingFeeMinor int64
	// TotalMinor — полная сумма заказа: позиции + доставка.
	TotalMinor int64
	// ItemQuantity — денормализованная сумма количеств по позициям для списков.
	ItemQuantity int32
	// ThumbnailURL — денормализованная картинка первого товара, best-effort.
	ThumbnailURL string
	Address      ShippingAddress
	Lines        []OrderLine
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SubtotalMinor возвращает сумму позиций без доставки.
func (o *Order) SubtotalMinor() int64 {
	return o.TotalMinor - o.ShippingFeeMinor
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.MemberID == "" {
		errs = append(errs, ErrMemberRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if o.ShippingFeeMinor < 0 {
		errs = append(errs, ErrShippingFeeNegative)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	errs = append(errs, o.Address.Validate()...)

	// Сверяем сумму заказа с суммой позиций: qty * price + доставка.
	var calc int64
	var qty int32
	for _, line := range o.Lines {
		if line.ItemID == "" {
			errs = append(errs, ErrLineItemRequired)
		}
		if line.Qty < 1 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		calc += int64(line.Qty) * line.UnitPriceMinor
		qty += line.Qty
	}
	if calc+o.ShippingFeeMinor != o.TotalMinor {
		errs = append(errs, ErrAmountMismatch)
	}
	if qty != o.ItemQuantity {
		errs = append(errs, ErrItemQuantityMismatch)
	}

	return errs
}

// OrderEvent описывает событие жизненного цикла заказа для аудита.
// События append-only: заказы не удаляются, история переходов сохраняется.
type OrderEvent struct {
	OrderID  string
	Type     string
	From     OrderStatus
	To       OrderStatus
	Reason   string
	Occurred time.Time
}

const (
	// EventOrderCreated — заказ создан в статусе pending.
	EventOrderCreated = "OrderCreated"
	// EventStatusChanged — успешный переход статуса.
	EventStatusChanged = "OrderStatusChanged"
	// EventPaymentFailed — платёжный шлюз отклонил подтверждение оплаты.
	EventPaymentFailed = "OrderPaymentFailed"
	// EventAddressChanged — адрес доставки заменён.
	EventAddressChanged = "OrderAddressChanged"
)
