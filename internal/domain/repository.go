package domain

import (
	"context"
	"time"
)

// Page задаёт параметры страницы для списочных выборок.
type Page struct {
	Number int
	Size   int
}

// Offset возвращает смещение первой строки страницы.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit()
}

// Limit возвращает размер страницы с дефолтом и верхней границей.
func (p Page) Limit() int {
	switch {
	case p.Size < 1:
		return 20
	case p.Size > 100:
		return 100
	default:
		return p.Size
	}
}

// ReportFilter задаёт условия ERP-выборки заказов.
type ReportFilter struct {
	From     time.Time
	To       time.Time
	Status   OrderStatus // пустое значение — без фильтра по статусу
	MemberID string      // пустое значение — все покупатели
}

// ReportTotals — агрегированная строка ERP-отчёта по всей отфильтрованной выборке.
type ReportTotals struct {
	Orders        int64
	SubtotalMinor int64
	ShippingMinor int64
	TotalMinor    int64
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями атомарно.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// GetHeader возвращает шапку заказа без загрузки позиций.
	GetHeader(ctx context.Context, id string) (Order, error)
	// List возвращает страницу шапок заказов и общее количество.
	List(ctx context.Context, page Page) ([]Order, int64, error)
	// ListByMember возвращает страницу шапок заказов одного покупателя.
	ListByMember(ctx context.Context, memberID string, page Page) ([]Order, int64, error)
	// Report возвращает страницу заказов по фильтру и агрегаты по всей выборке.
	Report(ctx context.Context, filter ReportFilter, page Page) ([]Order, int64, ReportTotals, error)
	// Save применяет обновления к шапке заказа с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
}

// ItemRepository описывает каталог товаров и атомарные операции над остатками.
type ItemRepository interface {
	// Get возвращает товар или ErrItemNotFound.
	Get(ctx context.Context, id string) (Item, error)
	// Reserve атомарно списывает qty с остатка; ErrInsufficientStock,
	// если остатка не хватает. Остаток никогда не уходит ниже нуля.
	Reserve(ctx context.Context, itemID string, qty int32) error
	// Release возвращает qty на остаток (компенсация отмены/возврата).
	Release(ctx context.Context, itemID string, qty int32) error
}

// PaymentRepository хранит квитанции подтверждений шлюза.
type PaymentRepository interface {
	// Create сохраняет квитанцию; ErrPaymentKeyExists при повторном payment key.
	Create(ctx context.Context, record PaymentRecord) error
	// GetByKey возвращает квитанцию по ключу шлюза или ErrPaymentNotFound.
	GetByKey(ctx context.Context, paymentKey string) (PaymentRecord, error)
}

// OrderEventRepository хранит события жизненного цикла заказа.
type OrderEventRepository interface {
	Append(ctx context.Context, event OrderEvent) error
	List(ctx context.Context, orderID string) ([]OrderEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Tx собирает репозитории, привязанные к одной транзакции хранилища.
// Все мутации заказа выполняются через WithinTx: запись статуса, движение
// остатков и квитанция платежа фиксируются или откатываются вместе.
type Tx interface {
	Orders() OrderRepository
	Items() ItemRepository
	Payments() PaymentRepository
	Events() OrderEventRepository
}

// TxRunner исполняет функцию в границах одной транзакции.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
