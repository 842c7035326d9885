package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Stub — заглушка платёжного шлюза для локальной разработки и демо-стендов.
// Любое подтверждение завершается успехом с методом оплаты "card".
type Stub struct {
	now func() time.Time
}

// NewStub создаёт заглушку шлюза.
func NewStub() *Stub {
	return &Stub{now: time.Now}
}

var _ domain.PaymentGateway = (*Stub)(nil)

// Confirm возвращает успешное подтверждение без сетевого вызова.
func (s *Stub) Confirm(_ context.Context, paymentKey, gatewayOrderID string, amountMinor int64) (domain.GatewayConfirmation, error) {
	if paymentKey == "" {
		return domain.GatewayConfirmation{}, fmt.Errorf("%w: empty payment key", domain.ErrGatewayConfirmFailed)
	}

	approvedAt := s.now().UTC()
	raw, _ := json.Marshal(map[string]interface{}{
		"paymentKey":  paymentKey,
		"orderId":     gatewayOrderID,
		"status":      "DONE",
		"method":      "card",
		"totalAmount": amountMinor,
		"approvedAt":  approvedAt.Format(time.RFC3339),
	})

	return domain.GatewayConfirmation{
		PaymentKey:  paymentKey,
		GatewayID:   "stub-" + gatewayOrderID,
		Status:      "DONE",
		Method:      domain.PaymentMethodCard,
		AmountMinor: amountMinor,
		ApprovedAt:  approvedAt,
		Raw:         raw,
	}, nil
}
