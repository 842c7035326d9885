package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// DefaultShippingFeeMinor — стоимость доставки по умолчанию, если покупатель
// не передал переопределение при создании заказа.
const DefaultShippingFeeMinor int64 = 3000

// CreateMode — режим покупки.
type CreateMode string

const (
	// ModeItem — прямая покупка: явный список товар+количество.
	ModeItem CreateMode = "ITEM"
	// ModeCart — покупка из корзины: идентификаторы товаров, количество из корзины.
	ModeCart CreateMode = "CART"
)

// Caller — явная идентичность вызывающего. Передаётся параметром в каждый
// метод сервиса; амбиентного контекста пользователя нет.
type Caller struct {
	MemberID string
	Admin    bool
}

// CreateLine — строка запроса на прямую покупку.
type CreateLine struct {
	ItemID string
	Qty    int32
}

// CreateRequest — запрос на создание заказа.
type CreateRequest struct {
	Mode  CreateMode
	Lines []CreateLine // режим ITEM
	// CartItemIDs — товары, которые должны присутствовать в корзине (режим CART).
	CartItemIDs []string
	Address     domain.ShippingAddress
	// ShippingFeeMinor — переопределение доставки; nil означает дефолт.
	ShippingFeeMinor *int64
}

// Service реализует жизненный цикл заказа: создание, переходы статуса,
// обновление адреса и запросный срез.
type Service struct {
	tx       domain.TxRunner
	orders   domain.OrderRepository
	items    domain.ItemRepository
	events   domain.OrderEventRepository
	carts    domain.CartStore
	notifier domain.NotificationPublisher
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
	now      func() time.Time
	newID    func() string
}

// NewService создаёт рабочий экземпляр сервиса заказов.
func NewService(
	tx domain.TxRunner,
	orders domain.OrderRepository,
	items domain.ItemRepository,
	events domain.OrderEventRepository,
	carts domain.CartStore,
	notifier domain.NotificationPublisher,
	logger *log.Entry,
) *Service {
	svc := newServiceWithoutMetrics(tx, orders, items, events, carts, notifier, logger)
	svc.metrics = metrics.NewOrderMetrics()
	return svc
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	tx domain.TxRunner,
	orders domain.OrderRepository,
	items domain.ItemRepository,
	events domain.OrderEventRepository,
	carts domain.CartStore,
	notifier domain.NotificationPublisher,
	logger *log.Entry,
) *Service {
	return newServiceWithoutMetrics(tx, orders, items, events, carts, notifier, logger)
}

func newServiceWithoutMetrics(
	tx domain.TxRunner,
	orders domain.OrderRepository,
	items domain.ItemRepository,
	events domain.OrderEventRepository,
	carts domain.CartStore,
	notifier domain.NotificationPublisher,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		tx:       tx,
		orders:   orders,
		items:    items,
		events:   events,
		carts:    carts,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Create создаёт заказ в статусе pending. Остатки не резервируются: pending
// заказ не удерживает сток до подтверждения оплаты.
func (s *Service) Create(ctx context.Context, caller Caller, req CreateRequest) (domain.Order, error) {
	if caller.MemberID == "" {
		return domain.Order{}, domain.ErrMemberRequired
	}

	lines, err := s.resolveLines(ctx, caller.MemberID, req)
	if err != nil {
		return domain.Order{}, err
	}

	fee := DefaultShippingFeeMinor
	if req.ShippingFeeMinor != nil {
		fee = *req.ShippingFeeMinor
	}

	now := s.now()
	order := domain.Order{
		ID:               s.newID(),
		MemberID:         caller.MemberID,
		Status:           domain.OrderStatusPending,
		ShippingFeeMinor: fee,
		Address:          req.Address,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var total int64
	var qty int32
	for i := range lines {
		lines[i].ID = s.newID()
		lines[i].CreatedAt = now
		total += int64(lines[i].Qty) * lines[i].UnitPriceMinor
		qty += lines[i].Qty
	}
	order.Lines = lines
	order.TotalMinor = total + fee
	order.ItemQuantity = qty

	// Денормализованная миниатюра первого товара, best-effort.
	if item, err := s.items.Get(ctx, lines[0].ItemID); err == nil {
		order.ThumbnailURL = item.ThumbnailURL
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, errors.Join(errs...))
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	if err := s.events.Append(ctx, domain.OrderEvent{
		OrderID:  order.ID,
		Type:     domain.EventOrderCreated,
		To:       domain.OrderStatusPending,
		Occurred: now,
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to record creation event")
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}

	s.notify(ctx, order.MemberID, kafka.EventTypeOrderCreated, map[string]interface{}{
		"order_id": order.ID,
		"status":   string(order.Status),
	})

	s.logger.WithFields(log.Fields{
		"order_id":  order.ID,
		"member_id": order.MemberID,
		"total":     order.TotalMinor,
	}).Info("order created")

	return order, nil
}

// resolveLines превращает запрос в позиции заказа со снапшотом текущих цен.
func (s *Service) resolveLines(ctx context.Context, memberID string, req CreateRequest) ([]domain.OrderLine, error) {
	switch req.Mode {
	case ModeItem:
		if len(req.Lines) == 0 {
			return nil, domain.ErrInvalidRequest
		}
		lines := make([]domain.OrderLine, 0, len(req.Lines))
		for _, reqLine := range req.Lines {
			qty := reqLine.Qty
			if qty < 1 {
				qty = 1
			}
			item, err := s.items.Get(ctx, reqLine.ItemID)
			if err != nil {
				return nil, err
			}
			lines = append(lines, domain.OrderLine{
				ItemID:         item.ID,
				Qty:            qty,
				UnitPriceMinor: item.PriceMinor,
			})
		}
		return lines, nil

	case ModeCart:
		if len(req.CartItemIDs) == 0 {
			return nil, domain.ErrInvalidRequest
		}
		cartLines, err := s.carts.Lines(ctx, memberID, req.CartItemIDs)
		if err != nil {
			return nil, err
		}
		lines := make([]domain.OrderLine, 0, len(cartLines))
		for _, cartLine := range cartLines {
			qty := cartLine.Qty
			if qty < 1 {
				qty = 1
			}
			item, err := s.items.Get(ctx, cartLine.ItemID)
			if err != nil {
				return nil, err
			}
			lines = append(lines, domain.OrderLine{
				ItemID:         item.ID,
				Qty:            qty,
				UnitPriceMinor: item.PriceMinor,
			})
		}
		return lines, nil

	default:
		return nil, domain.ErrInvalidRequest
	}
}

// ChangeStatusUser применяет переход по пользовательской таблице рёбер.
// Вызывающий должен быть владельцем заказа.
func (s *Service) ChangeStatusUser(ctx context.Context, caller Caller, orderID string, next domain.OrderStatus) (domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !caller.Admin && order.MemberID != caller.MemberID {
		return domain.Order{}, domain.ErrForbidden
	}

	if !next.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, next)
	}
	if !domain.IsValidUserTransition(order.Status, next) {
		if s.metrics != nil {
			s.metrics.RecordTransitionRejected()
		}
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, order.Status, next)
	}

	return s.applyTransition(ctx, order, next, "")
}

// ChangeStatusAdmin применяет переход по административной таблице рёбер.
func (s *Service) ChangeStatusAdmin(ctx context.Context, caller Caller, orderID string, next domain.OrderStatus, reason string) (domain.Order, error) {
	if !caller.Admin {
		return domain.Order{}, domain.ErrForbidden
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if !next.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, next)
	}
	if !domain.IsValidAdminTransition(order.Status, next) {
		if s.metrics != nil {
			s.metrics.RecordTransitionRejected()
		}
		return domain.Order{}, fmt.Errorf("%w: %s -> %s (admin)", domain.ErrIllegalTransition, order.Status, next)
	}

	return s.applyTransition(ctx, order, next, reason)
}

// applyTransition — единственная точка применения перехода: запись статуса,
// движение остатков и событие аудита фиксируются в одной транзакции.
func (s *Service) applyTransition(ctx context.Context, order domain.Order, next domain.OrderStatus, reason string) (domain.Order, error) {
	from := order.Status

	err := s.tx.WithinTx(ctx, func(tx domain.Tx) error {
		return s.applyTransitionTx(ctx, tx, &order, next, reason)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) && s.metrics != nil {
			s.metrics.RecordStockConflict()
		}
		if domain.IsVersionConflict(err) && s.metrics != nil {
			s.metrics.RecordVersionConflict()
		}
		return domain.Order{}, err
	}

	s.afterTransition(ctx, order, from)
	return order, nil
}

// applyTransitionTx выполняет переход внутри уже открытой транзакции.
// Используется и обычными переходами, и подтверждением оплаты, чтобы движение
// остатков происходило ровно в одном месте.
func (s *Service) applyTransitionTx(ctx context.Context, tx domain.Tx, order *domain.Order, next domain.OrderStatus, reason string) error {
	from := order.Status

	switch domain.TransitionStockEffect(from, next) {
	case domain.StockEffectReserve:
		// Все позиции или ни одной: первый отказ откатывает транзакцию целиком.
		for _, line := range order.Lines {
			if err := tx.Items().Reserve(ctx, line.ItemID, line.Qty); err != nil {
				return fmt.Errorf("reserve item %s: %w", line.ItemID, err)
			}
		}
	case domain.StockEffectRelease:
		for _, line := range order.Lines {
			if err := tx.Items().Release(ctx, line.ItemID, line.Qty); err != nil {
				return fmt.Errorf("release item %s: %w", line.ItemID, err)
			}
		}
	}

	order.Status = next
	order.UpdatedAt = s.now()
	if err := tx.Orders().Save(ctx, *order); err != nil {
		return err
	}
	order.Version++

	if err := tx.Events().Append(ctx, domain.OrderEvent{
		OrderID:  order.ID,
		Type:     domain.EventStatusChanged,
		From:     from,
		To:       next,
		Reason:   reason,
		Occurred: s.now(),
	}); err != nil {
		return fmt.Errorf("append order event: %w", err)
	}

	return nil
}

// afterTransition — пост-коммитные эффекты: чистка корзины, метрики и уведомление.
func (s *Service) afterTransition(ctx context.Context, order domain.Order, from domain.OrderStatus) {
	if order.Status == domain.OrderStatusPaid {
		s.purgeCart(ctx, order)
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(string(order.Status))
		s.metrics.RecordOrderEvent()
		if from == domain.OrderStatusPending {
			s.metrics.RecordPendingResolved()
		}
	}

	s.notify(ctx, order.MemberID, notificationEventFor(order.Status), map[string]interface{}{
		"order_id": order.ID,
		"status":   string(order.Status),
	})

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     string(from),
		"to":       string(order.Status),
	}).Info("order status changed")
}

// purgeCart удаляет оплаченные товары из корзины покупателя после любого
// перехода в paid. Best-effort: ошибка логируется и не влияет на заказ.
func (s *Service) purgeCart(ctx context.Context, order domain.Order) {
	if s.carts == nil {
		return
	}

	itemIDs := make([]string, 0, len(order.Lines))
	for _, line := range order.Lines {
		itemIDs = append(itemIDs, line.ItemID)
	}

	purgeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := s.carts.Delete(purgeCtx, order.MemberID, itemIDs); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":  order.ID,
			"member_id": order.MemberID,
		}).Warn("cart purge failed")
	}
}

func notificationEventFor(status domain.OrderStatus) kafka.EventType {
	switch status {
	case domain.OrderStatusPaid:
		return kafka.EventTypeOrderPaid
	case domain.OrderStatusCanceled:
		return kafka.EventTypeOrderCanceled
	case domain.OrderStatusRefunded:
		return kafka.EventTypeOrderRefunded
	default:
		return kafka.EventTypeOrderStatusChanged
	}
}

// notify публикует уведомление fire-and-forget: ошибка логируется и не
// влияет на результат операции.
func (s *Service) notify(ctx context.Context, receiverID string, event kafka.EventType, payload map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, receiverID, string(event), payload); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"receiver_id": receiverID,
			"event":       string(event),
		}).Warn("notification publish failed")
	}
}

// UpdateAddress заменяет адрес доставки целиком. Разрешено только до отгрузки:
// в статусах pending и paid.
func (s *Service) UpdateAddress(ctx context.Context, caller Caller, orderID string, address domain.ShippingAddress) (domain.Order, error) {
	if errs := address.Validate(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, errors.Join(errs...))
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !caller.Admin && order.MemberID != caller.MemberID {
		return domain.Order{}, domain.ErrForbidden
	}
	if order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusPaid {
		return domain.Order{}, fmt.Errorf("%w: address is frozen in status %s", domain.ErrIllegalTransition, order.Status)
	}

	order.Address = address
	order.UpdatedAt = s.now()
	if err := s.orders.Save(ctx, order); err != nil {
		if domain.IsVersionConflict(err) && s.metrics != nil {
			s.metrics.RecordVersionConflict()
		}
		return domain.Order{}, err
	}
	order.Version++

	if err := s.events.Append(ctx, domain.OrderEvent{
		OrderID:  order.ID,
		Type:     domain.EventAddressChanged,
		From:     order.Status,
		To:       order.Status,
		Occurred: s.now(),
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to record address event")
	}

	return order, nil
}

// Get возвращает заказ с позициями. Доступ: владелец или администратор.
func (s *Service) Get(ctx context.Context, caller Caller, orderID string) (domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !caller.Admin && order.MemberID != caller.MemberID {
		return domain.Order{}, domain.ErrForbidden
	}
	return order, nil
}

// List возвращает страницу шапок всех заказов. Только для администратора.
func (s *Service) List(ctx context.Context, caller Caller, page domain.Page) ([]domain.Order, int64, error) {
	if !caller.Admin {
		return nil, 0, domain.ErrForbidden
	}
	return s.orders.List(ctx, page)
}

// ListByMember возвращает страницу заказов одного покупателя.
// Кросс-доступ между покупателями запрещён.
func (s *Service) ListByMember(ctx context.Context, caller Caller, memberID string, page domain.Page) ([]domain.Order, int64, error) {
	if !caller.Admin && caller.MemberID != memberID {
		return nil, 0, domain.ErrForbidden
	}
	return s.orders.ListByMember(ctx, memberID, page)
}

// ERPReport возвращает страницу заказов по фильтру и агрегатную строку
// по всей выборке. Только для администратора. Интервал обязателен: нулевая
// граница означала бы пустую выборку при непустых данных.
func (s *Service) ERPReport(ctx context.Context, caller Caller, filter domain.ReportFilter, page domain.Page) ([]domain.Order, int64, domain.ReportTotals, error) {
	if !caller.Admin {
		return nil, 0, domain.ReportTotals{}, domain.ErrForbidden
	}
	if filter.From.IsZero() || filter.To.IsZero() {
		return nil, 0, domain.ReportTotals{}, fmt.Errorf("%w: report interval from/to is required", domain.ErrInvalidRequest)
	}
	return s.orders.Report(ctx, filter, page)
}

// Events возвращает журнал событий заказа. Доступ: владелец или администратор.
func (s *Service) Events(ctx context.Context, caller Caller, orderID string) ([]domain.OrderEvent, error) {
	order, err := s.orders.GetHeader(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.Admin && order.MemberID != caller.MemberID {
		return nil, domain.ErrForbidden
	}
	return s.events.List(ctx, orderID)
}
