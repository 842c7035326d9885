package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

// gatewayTokenPrefix — префикс корреляционного токена, выдаваемого на prepare.
const gatewayTokenPrefix = "shop"

// methodMinimumMinor — минимальная сумма платежа по методам на стороне шлюза.
var methodMinimumMinor = map[domain.PaymentMethod]int64{
	domain.PaymentMethodCard:     100,
	domain.PaymentMethodTransfer: 100,
	domain.PaymentMethodVirtual:  1000,
}

// PaymentService реализует границу с платёжным шлюзом: подготовку платежа
// и идемпотентное подтверждение.
type PaymentService struct {
	svc      *Service
	payments domain.PaymentRepository
	gateway  domain.PaymentGateway
	logger   *log.Entry
}

// NewPaymentService создаёт платёжный сервис поверх сервиса заказов.
func NewPaymentService(svc *Service, payments domain.PaymentRepository, gateway domain.PaymentGateway, logger *log.Entry) *PaymentService {
	if logger == nil {
		logger = log.New().WithField("component", "payment-service")
	}
	return &PaymentService{
		svc:      svc,
		payments: payments,
		gateway:  gateway,
		logger:   logger,
	}
}

// Prepare проверяет заказ и выдаёт данные для редиректа на шлюз.
// Сумма всегда авторитетная, из заказа; клиентская сумма здесь не принимается.
func (p *PaymentService) Prepare(ctx context.Context, caller Caller, orderID string, method domain.PaymentMethod) (domain.GatewayPreparation, error) {
	minAmount, ok := methodMinimumMinor[method]
	if !ok {
		return domain.GatewayPreparation{}, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidRequest, method)
	}

	// Только шапка: позиции для prepare не нужны.
	order, err := p.svc.orders.GetHeader(ctx, orderID)
	if err != nil {
		return domain.GatewayPreparation{}, err
	}
	if order.MemberID != caller.MemberID {
		return domain.GatewayPreparation{}, domain.ErrForbidden
	}
	if order.Status != domain.OrderStatusPending {
		return domain.GatewayPreparation{}, fmt.Errorf("%w: status %s", domain.ErrNotPayable, order.Status)
	}
	if order.TotalMinor < minAmount {
		return domain.GatewayPreparation{}, fmt.Errorf("%w: %d < %d for method %s", domain.ErrAmountTooLow, order.TotalMinor, minAmount, method)
	}

	return domain.GatewayPreparation{
		GatewayOrderID: fmt.Sprintf("%s-%s-%d", gatewayTokenPrefix, order.ID, p.svc.now().UnixMilli()),
		AmountMinor:    order.TotalMinor,
		// Имя заказа строится только из количества, без обращения к позициям.
		OrderName: fmt.Sprintf("order with %d items", order.ItemQuantity),
	}, nil
}

// parseGatewayOrderID извлекает идентификатор заказа из токена
// вида "shop-<orderID>-<unixmilli>".
func parseGatewayOrderID(token string) (string, error) {
	rest, ok := strings.CutPrefix(token, gatewayTokenPrefix+"-")
	if !ok {
		return "", fmt.Errorf("%w: malformed gateway order id", domain.ErrInvalidRequest)
	}
	cut := strings.LastIndex(rest, "-")
	if cut <= 0 {
		return "", fmt.Errorf("%w: malformed gateway order id", domain.ErrInvalidRequest)
	}
	if _, err := strconv.ParseInt(rest[cut+1:], 10, 64); err != nil {
		return "", fmt.Errorf("%w: malformed gateway order id", domain.ErrInvalidRequest)
	}
	return rest[:cut], nil
}

// ConfirmResult — результат подтверждения оплаты.
type ConfirmResult struct {
	Order   domain.Order
	Payment domain.PaymentRecord
	// AlreadyPaid выставляется при повторном подтверждении: побочные эффекты
	// не применялись, шлюз не вызывался повторно.
	AlreadyPaid bool
	// Raw — сырой ответ шлюза для аудита; пуст при повторном подтверждении.
	Raw []byte
}

// Confirm выполняет идемпотентное подтверждение оплаты. Вызов шлюза происходит
// до открытия транзакции; резервирование остатков — строго после успеха шлюза,
// в одной транзакции с записью квитанции и переходом pending -> paid.
func (p *PaymentService) Confirm(ctx context.Context, paymentKey, gatewayOrderID string, clientAmountMinor int64) (ConfirmResult, error) {
	start := p.svc.now()

	orderID, err := parseGatewayOrderID(gatewayOrderID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if paymentKey == "" {
		return ConfirmResult{}, fmt.Errorf("%w: payment key is empty", domain.ErrInvalidRequest)
	}

	order, err := p.svc.orders.Get(ctx, orderID)
	if err != nil {
		return ConfirmResult{}, err
	}

	// Короткое замыкание: заказ уже оплачен, шлюз не трогаем, эффекты не повторяем.
	if order.Status == domain.OrderStatusPaid {
		return p.alreadyPaid(ctx, order, paymentKey), nil
	}
	if order.Status != domain.OrderStatusPending {
		return ConfirmResult{}, fmt.Errorf("%w: status %s", domain.ErrNotPayable, order.Status)
	}
	if order.TotalMinor != clientAmountMinor {
		return ConfirmResult{}, fmt.Errorf("%w: order %d, client %d", domain.ErrAmountMismatchClient, order.TotalMinor, clientAmountMinor)
	}

	gatewayStart := p.svc.now()
	confirmation, gatewayErr := p.gateway.Confirm(ctx, paymentKey, gatewayOrderID, order.TotalMinor)
	if p.svc.metrics != nil {
		p.svc.metrics.RecordGatewayDuration(p.svc.now().Sub(gatewayStart))
	}
	if gatewayErr != nil {
		return ConfirmResult{}, p.failPayment(ctx, order, gatewayErr)
	}

	record := domain.PaymentRecord{
		ID:             p.svc.newID(),
		PaymentKey:     paymentKey,
		GatewayOrderID: gatewayOrderID,
		OrderID:        order.ID,
		AmountMinor:    order.TotalMinor,
		Method:         confirmation.Method,
		GatewayStatus:  confirmation.Status,
		ApprovedAt:     confirmation.ApprovedAt,
		ReceiptURL:     confirmation.ReceiptURL,
		CreatedAt:      p.svc.now(),
	}

	txErr := p.svc.tx.WithinTx(ctx, func(tx domain.Tx) error {
		if err := tx.Payments().Create(ctx, record); err != nil {
			return err
		}
		return p.svc.applyTransitionTx(ctx, tx, &order, domain.OrderStatusPaid, "")
	})
	if txErr != nil {
		// Гонка подтверждений: победитель уже записал квитанцию и перевёл заказ.
		if errors.Is(txErr, domain.ErrPaymentKeyExists) {
			refreshed, err := p.svc.orders.Get(ctx, orderID)
			if err != nil {
				refreshed = order
			}
			return p.alreadyPaid(ctx, refreshed, paymentKey), nil
		}
		if errors.Is(txErr, domain.ErrInsufficientStock) && p.svc.metrics != nil {
			p.svc.metrics.RecordStockConflict()
		}
		if p.svc.metrics != nil {
			p.svc.metrics.RecordPaymentFailed()
		}
		return ConfirmResult{}, txErr
	}

	// Пост-коммитные эффекты: чистка корзины, метрики, уведомления.
	p.svc.afterTransition(ctx, order, domain.OrderStatusPending)
	if p.svc.metrics != nil {
		p.svc.metrics.RecordPaymentConfirmed()
		p.svc.metrics.RecordConfirmDuration(p.svc.now().Sub(start))
	}
	p.svc.notify(ctx, order.MemberID, kafka.EventTypePaymentConfirmed, map[string]interface{}{
		"order_id":    order.ID,
		"payment_key": paymentKey,
		"amount":      order.TotalMinor,
	})

	p.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"payment_key": paymentKey,
		"amount":      order.TotalMinor,
	}).Info("payment confirmed")

	return ConfirmResult{Order: order, Payment: record, Raw: confirmation.Raw}, nil
}

// alreadyPaid собирает результат повторного подтверждения.
func (p *PaymentService) alreadyPaid(ctx context.Context, order domain.Order, paymentKey string) ConfirmResult {
	if p.svc.metrics != nil {
		p.svc.metrics.RecordPaymentDuplicated()
	}

	result := ConfirmResult{Order: order, AlreadyPaid: true}
	if record, err := p.payments.GetByKey(ctx, paymentKey); err == nil {
		result.Payment = record
	}

	p.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"payment_key": paymentKey,
	}).Info("duplicate payment confirmation short-circuited")

	return result
}

// failPayment — компенсация отказа шлюза: pending -> canceled (сток не
// резервировался, возвращать нечего) плюс событие и уведомление об отказе.
func (p *PaymentService) failPayment(ctx context.Context, order domain.Order, cause error) error {
	from := order.Status

	txErr := p.svc.tx.WithinTx(ctx, func(tx domain.Tx) error {
		if err := p.svc.applyTransitionTx(ctx, tx, &order, domain.OrderStatusCanceled, "gateway confirm failed"); err != nil {
			return err
		}
		return tx.Events().Append(ctx, domain.OrderEvent{
			OrderID:  order.ID,
			Type:     domain.EventPaymentFailed,
			From:     from,
			To:       domain.OrderStatusCanceled,
			Reason:   cause.Error(),
			Occurred: p.svc.now(),
		})
	})
	if txErr != nil {
		p.logger.WithError(txErr).WithField("order_id", order.ID).Error("failed to cancel order after gateway failure")
	} else {
		if p.svc.metrics != nil {
			p.svc.metrics.RecordTransition(string(domain.OrderStatusCanceled))
			p.svc.metrics.RecordPendingResolved()
		}
		p.svc.notify(ctx, order.MemberID, kafka.EventTypePaymentFailed, map[string]interface{}{
			"order_id": order.ID,
			"reason":   cause.Error(),
		})
	}

	if p.svc.metrics != nil {
		p.svc.metrics.RecordPaymentFailed()
	}

	p.logger.WithError(cause).WithField("order_id", order.ID).Warn("gateway confirm failed")

	if errors.Is(cause, domain.ErrGatewayConfirmFailed) {
		return cause
	}
	return fmt.Errorf("%w: %v", domain.ErrGatewayConfirmFailed, cause)
}
