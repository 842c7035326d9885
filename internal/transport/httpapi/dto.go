package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Статусы во внешнем контракте пишутся в верхнем регистре и двумя именами
// отличаются от внутренних: CONFIRMATION и CANCELLED.
var apiStatusNames = map[domain.OrderStatus]string{
	domain.OrderStatusPending:       "PENDING",
	domain.OrderStatusPaid:          "PAID",
	domain.OrderStatusShipmentReady: "SHIPMENT_READY",
	domain.OrderStatusShipped:       "SHIPPED",
	domain.OrderStatusDelivered:     "DELIVERED",
	domain.OrderStatusConfirmed:     "CONFIRMATION",
	domain.OrderStatusCanceled:      "CANCELLED",
	domain.OrderStatusRefunded:      "REFUNDED",
}

var apiStatusValues = map[string]domain.OrderStatus{
	"PENDING":        domain.OrderStatusPending,
	"PAID":           domain.OrderStatusPaid,
	"SHIPMENT_READY": domain.OrderStatusShipmentReady,
	"SHIPPED":        domain.OrderStatusShipped,
	"DELIVERED":      domain.OrderStatusDelivered,
	"CONFIRMATION":   domain.OrderStatusConfirmed,
	"CANCELLED":      domain.OrderStatusCanceled,
	"REFUNDED":       domain.OrderStatusRefunded,
}

func statusToAPI(status domain.OrderStatus) string {
	if name, ok := apiStatusNames[status]; ok {
		return name
	}
	return string(status)
}

func statusFromAPI(raw string) (domain.OrderStatus, error) {
	status, ok := apiStatusValues[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, raw)
	}
	return status, nil
}

// AddressDTO — адрес доставки во внешнем контракте.
type AddressDTO struct {
	Zipcode  string `json:"zipcode"`
	Street   string `json:"street"`
	Detail   string `json:"detail,omitempty"`
	Receiver string `json:"receiver"`
	Phone    string `json:"phone,omitempty"`
}

func (a AddressDTO) toDomain() domain.ShippingAddress {
	return domain.ShippingAddress{
		Zipcode:  a.Zipcode,
		Street:   a.Street,
		Detail:   a.Detail,
		Receiver: a.Receiver,
		Phone:    a.Phone,
	}
}

func addressToDTO(a domain.ShippingAddress) AddressDTO {
	return AddressDTO{
		Zipcode:  a.Zipcode,
		Street:   a.Street,
		Detail:   a.Detail,
		Receiver: a.Receiver,
		Phone:    a.Phone,
	}
}

// CreateOrderRequest — тело POST /order/buy.
type CreateOrderRequest struct {
	Mode        string     `json:"mode"`
	ItemID      string     `json:"itemId,omitempty"`
	Quantity    int32      `json:"quantity,omitempty"`
	ItemIDs     []string   `json:"itemIds,omitempty"`
	ShippingFee *int64     `json:"shippingFee,omitempty"`
	Address     AddressDTO `json:"shippingAddress"`
}

// CreateOrderResponse — ответ POST /order/buy.
type CreateOrderResponse struct {
	OrdersID string `json:"ordersId"`
}

// OrderLineDTO — позиция заказа в детальном ответе.
type OrderLineDTO struct {
	ItemID    string `json:"itemId"`
	Quantity  int32  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	LineTotal int64  `json:"lineTotal"`
}

// OrderSummaryDTO — строка списочных выборок.
type OrderSummaryDTO struct {
	OrdersID     string     `json:"ordersId"`
	MemberID     string     `json:"memberId"`
	Status       string     `json:"status"`
	TotalAmount  int64      `json:"totalAmount"`
	Subtotal     int64      `json:"subtotal"`
	ShippingFee  int64      `json:"shippingFee"`
	ItemQuantity int32      `json:"itemQuantity"`
	Thumbnail    string     `json:"thumbnail,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// OrderDetailDTO — полный заказ с позициями.
type OrderDetailDTO struct {
	OrderSummaryDTO
	Address AddressDTO     `json:"shippingAddress"`
	Lines   []OrderLineDTO `json:"lines"`
}

func orderToSummary(o domain.Order) OrderSummaryDTO {
	return OrderSummaryDTO{
		OrdersID:     o.ID,
		MemberID:     o.MemberID,
		Status:       statusToAPI(o.Status),
		TotalAmount:  o.TotalMinor,
		Subtotal:     o.SubtotalMinor(),
		ShippingFee:  o.ShippingFeeMinor,
		ItemQuantity: o.ItemQuantity,
		Thumbnail:    o.ThumbnailURL,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func orderToDetail(o domain.Order) OrderDetailDTO {
	lines := make([]OrderLineDTO, 0, len(o.Lines))
	for _, line := range o.Lines {
		lines = append(lines, OrderLineDTO{
			ItemID:    line.ItemID,
			Quantity:  line.Qty,
			UnitPrice: line.UnitPriceMinor,
			LineTotal: int64(line.Qty) * line.UnitPriceMinor,
		})
	}
	return OrderDetailDTO{
		OrderSummaryDTO: orderToSummary(o),
		Address:         addressToDTO(o.Address),
		Lines:           lines,
	}
}

// PageResponse — страница списочной выборки.
type PageResponse struct {
	Content       []OrderSummaryDTO `json:"content"`
	Page          int               `json:"page"`
	Size          int               `json:"size"`
	TotalElements int64             `json:"totalElements"`
}

// ReportSummaryDTO — агрегатная строка ERP-отчёта.
type ReportSummaryDTO struct {
	Orders   int64 `json:"orders"`
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

// ReportResponse — ERP-отчёт: агрегат перед страницей данных.
type ReportResponse struct {
	Summary       ReportSummaryDTO  `json:"summary"`
	Content       []OrderSummaryDTO `json:"content"`
	Page          int               `json:"page"`
	Size          int               `json:"size"`
	TotalElements int64             `json:"totalElements"`
}

// OrderEventDTO — событие журнала заказа.
type OrderEventDTO struct {
	Type       string    `json:"type"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// UpdateAddressRequest — тело PATCH /order/{ordersID}/address.
type UpdateAddressRequest struct {
	Address AddressDTO `json:"shippingAddress"`
}

// PrepareRequest — тело POST /api/pay/toss/prepare.
type PrepareRequest struct {
	OrderNo string `json:"orderNo"`
	Method  string `json:"method"`
}

// PrepareResponse — данные для редиректа на шлюз.
type PrepareResponse struct {
	OrderID     string `json:"orderId"`
	TotalAmount int64  `json:"totalAmount"`
	OrderName   string `json:"orderName"`
}

// ConfirmRequest — тело POST /api/pay/toss/confirm.
type ConfirmRequest struct {
	PaymentKey  string `json:"paymentKey"`
	OrderID     string `json:"orderId"`
	TotalAmount int64  `json:"totalAmount"`
}

// AlreadyPaidResponse — ответ на повторное подтверждение.
type AlreadyPaidResponse struct {
	Status string `json:"status"`
}

// ErrorResponse — структурированная ошибка внешнего контракта.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
