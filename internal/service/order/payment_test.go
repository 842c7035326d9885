package order

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestPrepare(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 2)

	prep, err := f.pay.Prepare(context.Background(), buyer(), order.ID, domain.PaymentMethodCard)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prep.GatewayOrderID, "shop-"+order.ID+"-"))
	assert.Equal(t, int64(5000), prep.AmountMinor)
	assert.Equal(t, "order with 2 items", prep.OrderName)

	// токен разбирается обратно в идентификатор заказа
	parsed, err := parseGatewayOrderID(prep.GatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, parsed)
}

func TestPrepareForbidden(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	_, err := f.pay.Prepare(context.Background(), stranger(), order.ID, domain.PaymentMethodCard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestPrepareNotPayable(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	_, err := f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusCanceled)
	require.NoError(t, err)

	_, err = f.pay.Prepare(context.Background(), buyer(), order.ID, domain.PaymentMethodCard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotPayable))
}

func TestPrepareAmountTooLow(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 500, 10)

	fee := int64(0)
	order, err := f.svc.Create(context.Background(), buyer(), CreateRequest{
		Mode:             ModeItem,
		Lines:            []CreateLine{{ItemID: "item-1", Qty: 1}},
		Address:          testAddress(),
		ShippingFeeMinor: &fee,
	})
	require.NoError(t, err)

	// карта: минимум 100, сумма 500 проходит
	_, err = f.pay.Prepare(context.Background(), buyer(), order.ID, domain.PaymentMethodCard)
	require.NoError(t, err)

	// виртуальный счёт: минимум 1000, сумма 500 не проходит
	_, err = f.pay.Prepare(context.Background(), buyer(), order.ID, domain.PaymentMethodVirtual)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAmountTooLow))
}

func TestPrepareUnknownMethod(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	_, err := f.pay.Prepare(context.Background(), buyer(), order.ID, "crypto")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
}

func TestParseGatewayOrderID(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{name: "valid", token: "shop-ord-1-1700000000000", want: "ord-1"},
		{name: "uuid order id", token: "shop-9f3c6c1a-2f74-4c8e-9a77-0c64a7e3c111-1700000000000", want: "9f3c6c1a-2f74-4c8e-9a77-0c64a7e3c111"},
		{name: "missing prefix", token: "ord-1-1700000000000", wantErr: true},
		{name: "no timestamp", token: "shop-ord1", wantErr: true},
		{name: "non-numeric timestamp", token: "shop-ord-1-abc", wantErr: true},
		{name: "empty", token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGatewayOrderID(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// prepareToken — helper: prepare и возврат токена для confirm.
func (f *fixture) prepareToken(t *testing.T, orderID string) string {
	t.Helper()
	prep, err := f.pay.Prepare(context.Background(), buyer(), orderID, domain.PaymentMethodCard)
	require.NoError(t, err)
	return prep.GatewayOrderID
}

func TestConfirmHappyPath(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	f.carts.Put(domain.CartLine{MemberID: "member-1", ItemID: "item-1", Qty: 2, AddedAt: time.Now()})

	order, err := f.svc.Create(context.Background(), buyer(), CreateRequest{
		Mode:        ModeCart,
		CartItemIDs: []string{"item-1"},
		Address:     testAddress(),
	})
	require.NoError(t, err)
	require.Equal(t, int64(5000), order.TotalMinor)

	token := f.prepareToken(t, order.ID)

	result, err := f.pay.Confirm(context.Background(), "pay-key-1", token, 5000)
	require.NoError(t, err)

	assert.False(t, result.AlreadyPaid)
	assert.Equal(t, domain.OrderStatusPaid, result.Order.Status)
	assert.NotEmpty(t, result.Raw)
	assert.Equal(t, "pay-key-1", result.Payment.PaymentKey)
	assert.Equal(t, int64(5000), result.Payment.AmountMinor)

	// сток списан по количеству позиций
	item, err := f.items.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), item.Available)

	// квитанция ровно одна
	record, err := f.payments.GetByKey(context.Background(), "pay-key-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, record.OrderID)

	// корзина вычищена после оплаты
	assert.Equal(t, 0, f.carts.Len("member-1"))

	// шлюз вызван один раз
	assert.Equal(t, 1, f.gateway.calls)

	require.Len(t, f.notifier.byEvent("payment.confirmed"), 1)
	require.Len(t, f.notifier.byEvent("order.paid"), 1)
}

func TestConfirmAmountMismatch(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 2)
	token := f.prepareToken(t, order.ID)

	_, err := f.pay.Confirm(context.Background(), "pay-key-1", token, 4000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAmountMismatchClient))

	// шлюз не вызывался, статус и сток не тронуты
	assert.Equal(t, 0, f.gateway.calls)

	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)

	item, err := f.items.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), item.Available)
}

func TestConfirmIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 2)
	token := f.prepareToken(t, order.ID)

	first, err := f.pay.Confirm(context.Background(), "pay-key-1", token, 5000)
	require.NoError(t, err)
	require.False(t, first.AlreadyPaid)

	second, err := f.pay.Confirm(context.Background(), "pay-key-1", token, 5000)
	require.NoError(t, err)
	assert.True(t, second.AlreadyPaid)
	assert.Equal(t, domain.OrderStatusPaid, second.Order.Status)
	assert.Equal(t, "pay-key-1", second.Payment.PaymentKey)

	// шлюз вызван ровно один раз, сток списан ровно один раз
	assert.Equal(t, 1, f.gateway.calls)

	item, err := f.items.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), item.Available)
}

func TestConfirmGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 2)
	token := f.prepareToken(t, order.ID)

	f.gateway.failWith = domain.ErrGatewayConfirmFailed

	_, err := f.pay.Confirm(context.Background(), "pay-key-1", token, 5000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGatewayConfirmFailed))

	// компенсация: заказ отменён, стока возвращать нечего
	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCanceled, stored.Status)

	item, err := f.items.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), item.Available)

	// квитанция не создана
	_, err = f.payments.GetByKey(context.Background(), "pay-key-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPaymentNotFound))

	// уведомление об отказе ровно одно
	require.Len(t, f.notifier.byEvent("payment.failed"), 1)

	// событие отказа в журнале
	events, err := f.events.List(context.Background(), order.ID)
	require.NoError(t, err)
	var failures int
	for _, event := range events {
		if event.Type == domain.EventPaymentFailed {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestConfirmInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 1)
	order := f.createPendingOrder(t, 2)
	token := f.prepareToken(t, order.ID)

	_, err := f.pay.Confirm(context.Background(), "pay-key-1", token, 5000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))

	// транзакция откатилась целиком: квитанция не сохранилась, заказ pending
	_, err = f.payments.GetByKey(context.Background(), "pay-key-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPaymentNotFound))

	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)

	item, err := f.items.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.Available)
}

func TestConfirmStockContention(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 1)

	first := f.createPendingOrder(t, 1)
	second := f.createPendingOrder(t, 1)

	firstToken := f.prepareToken(t, first.ID)
	secondToken := f.prepareToken(t, second.ID)

	// последняя единица стока достаётся ровно одному заказу
	_, err := f.pay.Confirm(context.Background(), "pay-key-1", firstToken, 4000)
	require.NoError(t, err)

	_, err = f.pay.Confirm(context.Background(), "pay-key-2", secondToken, 4000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))

	stored, err := f.orders.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)

	item, err := f.items.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), item.Available)
}

func TestConfirmNotPayable(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)
	token := f.prepareToken(t, order.ID)

	_, err := f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusCanceled)
	require.NoError(t, err)

	_, err = f.pay.Confirm(context.Background(), "pay-key-1", token, 4000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotPayable))
	assert.Equal(t, 0, f.gateway.calls)
}

func TestConfirmMalformedToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.pay.Confirm(context.Background(), "pay-key-1", "bogus-token", 5000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
}

func TestConfirmUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.pay.Confirm(context.Background(), "pay-key-1", "shop-ghost-1700000000000", 5000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOrderNotFound))
}

func TestConfirmEmptyPaymentKey(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)
	token := f.prepareToken(t, order.ID)

	_, err := f.pay.Confirm(context.Background(), "", token, 4000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
}
