package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:               "order-1",
		MemberID:         "member-1",
		Status:           domain.OrderStatusPending,
		ShippingFeeMinor: 3000,
		TotalMinor:       5000,
		ItemQuantity:     2,
		Address: domain.ShippingAddress{
			Zipcode:  "04524",
			Street:   "main street 1",
			Receiver: "receiver-1",
			Phone:    "010-0000-0000",
		},
		Lines: []domain.OrderLine{
			{
				ID:             "line-1",
				ItemID:         "item-1",
				Qty:            2,
				UnitPriceMinor: 1000,
				CreatedAt:      now,
			},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderSubtotal(t *testing.T) {
	order := makeOrder()
	if got := order.SubtotalMinor(); got != 2000 {
		t.Fatalf("expected subtotal 2000, got %d", got)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no member",
			mut: func(o *domain.Order) {
				o.MemberID = ""
			},
		},
		{
			name: "no lines",
			mut: func(o *domain.Order) {
				o.Lines = nil
			},
		},
		{
			name: "qty below one",
			mut: func(o *domain.Order) {
				o.Lines[0].Qty = 0
			},
		},
		{
			name: "negative price",
			mut: func(o *domain.Order) {
				o.Lines[0].UnitPriceMinor = -5
			},
		},
		{
			name: "amount mismatch",
			mut: func(o *domain.Order) {
				o.TotalMinor = 9999
			},
		},
		{
			name: "negative shipping fee",
			mut: func(o *domain.Order) {
				o.ShippingFeeMinor = -1
			},
		},
		{
			name: "quantity denormalization broken",
			mut: func(o *domain.Order) {
				o.ItemQuantity = 7
			},
		},
		{
			name: "address without receiver",
			mut: func(o *domain.Order) {
				o.Address.Receiver = ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			// Изменяем состояние согласно сценарию.
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestItemSellStatus(t *testing.T) {
	item := domain.Item{ID: "item-1", Name: "mug", PriceMinor: 1000, Available: 3}
	if item.SellStatus() != domain.SellStatusSell {
		t.Fatalf("expected sell status for positive stock")
	}

	item.Available = 0
	if item.SellStatus() != domain.SellStatusSoldOut {
		t.Fatalf("expected sold_out status for zero stock")
	}
}

func TestPaymentRecordValidate(t *testing.T) {
	record := domain.PaymentRecord{
		PaymentKey:  "pay-key-1",
		OrderID:     "order-1",
		AmountMinor: 5000,
	}
	if errs := record.Validate(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	record.PaymentKey = ""
	record.AmountMinor = -1
	if errs := record.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}
