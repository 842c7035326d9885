package domain

import "time"

// PaymentMethod — способ оплаты, выбранный покупателем на стороне шлюза.
type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodVirtual  PaymentMethod = "virtual_account"
)

// PaymentRecord — сохранённая квитанция подтверждения шлюза. Запись создаётся
// ровно один раз на успешное подтверждение и после этого не изменяется;
// уникальность PaymentKey обеспечивает хранилище.
type PaymentRecord struct {
	ID string
	// PaymentKey — ключ платежа на стороне шлюза, ключ идемпотентности.
	PaymentKey string
	// GatewayOrderID — токен корреляции, выданный на этапе prepare.
	GatewayOrderID string
	OrderID        string
	AmountMinor    int64
	Method         PaymentMethod
	// GatewayStatus — сырой статус из ответа шлюза ("DONE" и т.п.).
	GatewayStatus string
	ApprovedAt    time.Time
	ReceiptURL    string
	CreatedAt     time.Time
}

// Validate проверяет корректность полей квитанции.
func (p *PaymentRecord) Validate() []error {
	var errs []error

	if p.PaymentKey == "" {
		errs = append(errs, ErrPaymentKeyRequired)
	}
	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrPaymentAmountNegative)
	}

	return errs
}

// GatewayConfirmation — разобранный ответ шлюза на confirm.
// Возвращается вызывающей стороне как есть для аудита.
type GatewayConfirmation struct {
	PaymentKey  string
	GatewayID   string
	Status      string
	Method      PaymentMethod
	AmountMinor int64
	ApprovedAt  time.Time
	ReceiptURL  string
	Raw         []byte
}

// GatewayPreparation — данные для редиректа покупателя на шлюз.
type GatewayPreparation struct {
	// GatewayOrderID — корреляционный токен вида "<prefix>-<orderID>-<timestamp>".
	GatewayOrderID string
	AmountMinor    int64
	OrderName      string
}
