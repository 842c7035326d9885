package memory

import (
	"context"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// paymentRepository — in-memory реализация PaymentRepository поверх Store.
type paymentRepository struct {
	store  *Store
	locked bool
}

// NewPaymentRepository возвращает репозиторий для использования вне транзакции.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{store: store}
}

func (r *paymentRepository) lock() func() {
	if r.locked {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *paymentRepository) Create(_ context.Context, record domain.PaymentRecord) error {
	defer r.lock()()

	if _, exists := r.store.payments[record.PaymentKey]; exists {
		return domain.ErrPaymentKeyExists
	}
	r.store.payments[record.PaymentKey] = record
	return nil
}

func (r *paymentRepository) GetByKey(_ context.Context, paymentKey string) (domain.PaymentRecord, error) {
	defer r.lock()()

	record, ok := r.store.payments[paymentKey]
	if !ok {
		return domain.PaymentRecord{}, domain.ErrPaymentNotFound
	}
	return record, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
