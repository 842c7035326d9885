package domain

import "time"

// SellStatus — производный флаг доступности товара к продаже.
type SellStatus string

const (
	// SellStatusSell — товар в продаже, остаток положительный.
	SellStatusSell SellStatus = "sell"
	// SellStatusSoldOut — остаток нулевой.
	SellStatusSoldOut SellStatus = "sold_out"
)

// Item — товар каталога со складским остатком. Остаток — разделяемый
// изменяемый ресурс: его мутации идут только через Reserve/Release репозитория.
type Item struct {
	ID           string
	Name         string
	PriceMinor   int64
	Available    int64
	ThumbnailURL string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SellStatus всегда вычисляется из остатка и нигде не хранится отдельно.
func (i *Item) SellStatus() SellStatus {
	if i.Available == 0 {
		return SellStatusSoldOut
	}
	return SellStatusSell
}

// Validate проверяет корректность полей товара.
func (i *Item) Validate() []error {
	var errs []error

	if i.Name == "" {
		errs = append(errs, ErrItemNameRequired)
	}
	if i.PriceMinor < 0 {
		errs = append(errs, ErrLinePriceInvalid)
	}
	if i.Available < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}

// CartLine — строка корзины покупателя у внешнего хранилища корзин.
// Ядро заказов читает и удаляет строки, но не создаёт их.
type CartLine struct {
	MemberID string
	ItemID   string
	Qty      int32
	AddedAt  time.Time
}
