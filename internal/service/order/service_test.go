package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

// recordedNotification — одно перехваченное уведомление.
type recordedNotification struct {
	ReceiverID string
	Event      string
	Payload    map[string]interface{}
}

// recordingNotifier запоминает уведомления вместо публикации в Kafka.
type recordingNotifier struct {
	notifications []recordedNotification
	failWith      error
}

func (n *recordingNotifier) Publish(_ context.Context, receiverID, event string, payload map[string]interface{}) error {
	if n.failWith != nil {
		return n.failWith
	}
	n.notifications = append(n.notifications, recordedNotification{
		ReceiverID: receiverID,
		Event:      event,
		Payload:    payload,
	})
	return nil
}

func (n *recordingNotifier) byEvent(event string) []recordedNotification {
	var out []recordedNotification
	for _, notification := range n.notifications {
		if notification.Event == event {
			out = append(out, notification)
		}
	}
	return out
}

// stubGateway — управляемый из теста платёжный шлюз.
type stubGateway struct {
	calls    int
	failWith error
}

func (g *stubGateway) Confirm(_ context.Context, paymentKey, gatewayOrderID string, amountMinor int64) (domain.GatewayConfirmation, error) {
	g.calls++
	if g.failWith != nil {
		return domain.GatewayConfirmation{}, g.failWith
	}
	return domain.GatewayConfirmation{
		PaymentKey:  paymentKey,
		GatewayID:   gatewayOrderID,
		Status:      "DONE",
		Method:      domain.PaymentMethodCard,
		AmountMinor: amountMinor,
		ApprovedAt:  time.Now(),
		ReceiptURL:  "https://gw.example/receipt",
		Raw:         []byte(`{"status":"DONE"}`),
	}, nil
}

// fixture собирает сервис поверх in-memory хранилища.
type fixture struct {
	store    *memory.Store
	items    domain.ItemRepository
	orders   domain.OrderRepository
	payments domain.PaymentRepository
	events   domain.OrderEventRepository
	carts    *memory.CartStore
	notifier *recordingNotifier
	gateway  *stubGateway
	svc      *Service
	pay      *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	f := &fixture{
		store:    store,
		items:    memory.NewItemRepository(store),
		orders:   memory.NewOrderRepository(store),
		payments: memory.NewPaymentRepository(store),
		events:   memory.NewEventRepository(store),
		carts:    memory.NewCartStore(),
		notifier: &recordingNotifier{},
		gateway:  &stubGateway{},
	}
	f.svc = NewServiceWithoutMetrics(store, f.orders, f.items, f.events, f.carts, f.notifier, nil)
	f.pay = NewPaymentService(f.svc, f.payments, f.gateway, nil)
	return f
}

func (f *fixture) seedItem(t *testing.T, id string, priceMinor, available int64) {
	t.Helper()
	f.store.SeedItem(domain.Item{
		ID:           id,
		Name:         "item " + id,
		PriceMinor:   priceMinor,
		Available:    available,
		ThumbnailURL: "https://img.example/" + id,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	})
}

func testAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		Zipcode:  "04524",
		Street:   "Main st 1",
		Detail:   "apt 2",
		Receiver: "Ivan",
		Phone:    "010-1234-5678",
	}
}

func buyer() Caller  { return Caller{MemberID: "member-1"} }
func admin() Caller  { return Caller{MemberID: "admin-1", Admin: true} }
func stranger() Caller { return Caller{MemberID: "member-2"} }

// createPendingOrder создаёт заказ: товар 1000 за единицу, qty штук,
// доставка по умолчанию 3000.
func (f *fixture) createPendingOrder(t *testing.T, qty int32) domain.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), buyer(), CreateRequest{
		Mode:    ModeItem,
		Lines:   []CreateLine{{ItemID: "item-1", Qty: qty}},
		Address: testAddress(),
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrderItemMode(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)

	order := f.createPendingOrder(t, 2)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, int64(5000), order.TotalMinor) // 2*1000 + 3000 доставка
	assert.Equal(t, int64(3000), order.ShippingFeeMinor)
	assert.Equal(t, int64(2000), order.SubtotalMinor())
	assert.Equal(t, int32(2), order.ItemQuantity)
	assert.Equal(t, "https://img.example/item-1", order.ThumbnailURL)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, int64(1000), order.Lines[0].UnitPriceMinor)

	// pending не удерживает сток
	item, err := f.items.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), item.Available)

	// заказ читается назад вместе с позициями
	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.TotalMinor, stored.TotalMinor)
	require.Len(t, stored.Lines, 1)
}

func TestCreateOrderPriceSnapshot(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)

	order := f.createPendingOrder(t, 1)

	// Смена цены товара после создания не влияет на заказ.
	f.seedItem(t, "item-1", 9999, 10)

	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stored.Lines[0].UnitPriceMinor)
	assert.Equal(t, int64(4000), stored.TotalMinor)
}

func TestCreateOrderCartMode(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	f.carts.Put(domain.CartLine{MemberID: "member-1", ItemID: "item-1", Qty: 3, AddedAt: time.Now()})

	order, err := f.svc.Create(context.Background(), buyer(), CreateRequest{
		Mode:        ModeCart,
		CartItemIDs: []string{"item-1"},
		Address:     testAddress(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(6000), order.TotalMinor) // 3*1000 + 3000
	assert.Equal(t, int32(3), order.ItemQuantity)

	// создание заказа корзину не трогает, чистка происходит после оплаты
	assert.Equal(t, 1, f.carts.Len("member-1"))
}

func TestCreateOrderCartLineMissing(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)

	_, err := f.svc.Create(context.Background(), buyer(), CreateRequest{
		Mode:        ModeCart,
		CartItemIDs: []string{"item-1"},
		Address:     testAddress(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCartLineNotFound))
}

func TestCreateOrderUnknownItem(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), buyer(), CreateRequest{
		Mode:    ModeItem,
		Lines:   []CreateLine{{ItemID: "ghost", Qty: 1}},
		Address: testAddress(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrItemNotFound))
}

func TestCreateOrderInvalidRequest(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{name: "unknown mode", req: CreateRequest{Mode: "GIFT", Address: testAddress()}},
		{name: "item mode without lines", req: CreateRequest{Mode: ModeItem, Address: testAddress()}},
		{name: "cart mode without ids", req: CreateRequest{Mode: ModeCart, Address: testAddress()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), buyer(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
		})
	}
}

func TestCreateOrderQtyClampedToOne(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)

	order, err := f.svc.Create(context.Background(), buyer(), CreateRequest{
		Mode:    ModeItem,
		Lines:   []CreateLine{{ItemID: "item-1", Qty: 0}},
		Address: testAddress(),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), order.ItemQuantity)
	assert.Equal(t, int64(4000), order.TotalMinor)
}

func TestCreateOrderShippingFeeOverride(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)

	fee := int64(0)
	order, err := f.svc.Create(context.Background(), buyer(), CreateRequest{
		Mode:             ModeItem,
		Lines:            []CreateLine{{ItemID: "item-1", Qty: 1}},
		Address:          testAddress(),
		ShippingFeeMinor: &fee,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), order.TotalMinor)
	assert.Equal(t, int64(0), order.ShippingFeeMinor)
}

func TestChangeStatusUserCancelFromPending(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 2)

	updated, err := f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCanceled, updated.Status)

	// отмена из pending не возвращает сток, потому что он не резервировался
	item, err := f.items.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), item.Available)

	events, err := f.events.List(context.Background(), order.ID)
	require.NoError(t, err)
	var changed int
	for _, event := range events {
		if event.Type == domain.EventStatusChanged {
			changed++
		}
	}
	assert.Equal(t, 1, changed)

	require.Len(t, f.notifier.byEvent("order.canceled"), 1)
}

func TestChangeStatusUserToPaidReservesStock(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 2)

	updated, err := f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, updated.Status)

	item, err := f.items.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), item.Available)
}

func TestChangeStatusUserToPaidPurgesCart(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	f.carts.Put(domain.CartLine{MemberID: "member-1", ItemID: "item-1", Qty: 2, AddedAt: time.Now()})

	order, err := f.svc.Create(context.Background(), buyer(), CreateRequest{
		Mode:        ModeCart,
		CartItemIDs: []string{"item-1"},
		Address:     testAddress(),
	})
	require.NoError(t, err)

	// переход в paid минуя платёжный сервис тоже чистит корзину
	_, err = f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusPaid)
	require.NoError(t, err)

	assert.Equal(t, 0, f.carts.Len("member-1"))
}

func TestChangeStatusUserIllegalTransition(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	_, err := f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusShipped)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))

	// статус не изменился
	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
}

func TestChangeStatusUserInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 1)
	order := f.createPendingOrder(t, 2)

	_, err := f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusPaid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))

	// транзакция откатилась целиком: статус и сток не изменились
	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)

	item, err := f.items.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.Available)
}

func TestChangeStatusUserForbidden(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	_, err := f.svc.ChangeStatusUser(context.Background(), stranger(), order.ID, domain.OrderStatusCanceled)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestChangeStatusAdminRefundReleasesStock(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 2)

	_, err := f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusPaid)
	require.NoError(t, err)

	updated, err := f.svc.ChangeStatusAdmin(context.Background(), admin(), order.ID, domain.OrderStatusRefunded, "customer request")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefunded, updated.Status)

	// сток восстановлен по исходным количествам позиций
	item, err := f.items.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), item.Available)

	// повторный перевод в refunded отклоняется: терминальный статус
	_, err = f.svc.ChangeStatusAdmin(context.Background(), admin(), order.ID, domain.OrderStatusRefunded, "again")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))
}

func TestChangeStatusAdminCannotTouchPending(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	// административная таблица не содержит рёбер из pending
	_, err := f.svc.ChangeStatusAdmin(context.Background(), admin(), order.ID, domain.OrderStatusCanceled, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))
}

func TestChangeStatusAdminRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	_, err := f.svc.ChangeStatusAdmin(context.Background(), buyer(), order.ID, domain.OrderStatusShipped, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	f.notifier.failWith = errors.New("broker down")

	updated, err := f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCanceled, updated.Status)
}

func TestUpdateAddress(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	newAddress := testAddress()
	newAddress.Street = "Second st 7"

	updated, err := f.svc.UpdateAddress(context.Background(), buyer(), order.ID, newAddress)
	require.NoError(t, err)
	assert.Equal(t, "Second st 7", updated.Address.Street)

	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Second st 7", stored.Address.Street)
}

func TestUpdateAddressFrozenAfterShipment(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	_, err := f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusPaid)
	require.NoError(t, err)
	_, err = f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusShipped)
	require.NoError(t, err)

	_, err = f.svc.UpdateAddress(context.Background(), buyer(), order.ID, testAddress())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))
}

func TestUpdateAddressIncomplete(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	_, err := f.svc.UpdateAddress(context.Background(), buyer(), order.ID, domain.ShippingAddress{Receiver: "Ivan"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
}

func TestGetAccessControl(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	_, err := f.svc.Get(context.Background(), buyer(), order.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), admin(), order.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), stranger(), order.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = f.svc.Get(context.Background(), buyer(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOrderNotFound))
}

func TestListAccessControl(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	f.createPendingOrder(t, 1)
	f.createPendingOrder(t, 1)

	_, _, err := f.svc.List(context.Background(), buyer(), domain.Page{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	orders, total, err := f.svc.List(context.Background(), admin(), domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, orders, 2)
}

func TestListByMemberAccessControl(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	f.createPendingOrder(t, 1)

	// сам покупатель
	orders, total, err := f.svc.ListByMember(context.Background(), buyer(), "member-1", domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, orders, 1)

	// администратор
	_, _, err = f.svc.ListByMember(context.Background(), admin(), "member-1", domain.Page{})
	require.NoError(t, err)

	// кросс-доступ запрещён
	_, _, err = f.svc.ListByMember(context.Background(), stranger(), "member-1", domain.Page{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestERPReport(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)

	first := f.createPendingOrder(t, 2)  // 5000
	f.createPendingOrder(t, 1)           // 4000, остаётся pending

	_, err := f.svc.ChangeStatusUser(context.Background(), buyer(), first.ID, domain.OrderStatusPaid)
	require.NoError(t, err)

	filter := domain.ReportFilter{
		From:   time.Now().Add(-time.Hour),
		To:     time.Now().Add(time.Hour),
		Status: domain.OrderStatusPaid,
	}

	orders, total, totals, err := f.svc.ERPReport(context.Background(), admin(), filter, domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, orders, 1)
	assert.Equal(t, first.ID, orders[0].ID)
	assert.Equal(t, int64(1), totals.Orders)
	assert.Equal(t, int64(2000), totals.SubtotalMinor)
	assert.Equal(t, int64(3000), totals.ShippingMinor)
	assert.Equal(t, int64(5000), totals.TotalMinor)

	_, _, _, err = f.svc.ERPReport(context.Background(), buyer(), filter, domain.Page{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestERPReportIntervalRequired(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	f.createPendingOrder(t, 1)

	// пустой интервал не должен тихо давать пустой отчёт по непустой базе
	_, _, _, err := f.svc.ERPReport(context.Background(), admin(), domain.ReportFilter{}, domain.Page{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))

	_, _, _, err = f.svc.ERPReport(context.Background(), admin(), domain.ReportFilter{From: time.Now().Add(-time.Hour)}, domain.Page{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
}

func TestOrderEventsAudit(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "item-1", 1000, 10)
	order := f.createPendingOrder(t, 1)

	_, err := f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusPaid)
	require.NoError(t, err)
	_, err = f.svc.ChangeStatusUser(context.Background(), buyer(), order.ID, domain.OrderStatusShipped)
	require.NoError(t, err)

	events, err := f.svc.Events(context.Background(), buyer(), order.ID)
	require.NoError(t, err)
	require.Len(t, events, 3) // created + два перехода
	assert.Equal(t, domain.EventOrderCreated, events[0].Type)
	assert.Equal(t, domain.OrderStatusPaid, events[1].To)
	assert.Equal(t, domain.OrderStatusShipped, events[2].To)

	_, err = f.svc.Events(context.Background(), stranger(), order.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}
