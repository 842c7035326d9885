package memory

import (
	"context"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// eventRepository — in-memory реализация OrderEventRepository поверх Store.
type eventRepository struct {
	store  *Store
	locked bool
}

// NewEventRepository возвращает репозиторий для использования вне транзакции.
func NewEventRepository(store *Store) domain.OrderEventRepository {
	return &eventRepository{store: store}
}

func (r *eventRepository) lock() func() {
	if r.locked {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *eventRepository) Append(_ context.Context, event domain.OrderEvent) error {
	defer r.lock()()

	r.store.events[event.OrderID] = append(r.store.events[event.OrderID], event)
	return nil
}

func (r *eventRepository) List(_ context.Context, orderID string) ([]domain.OrderEvent, error) {
	defer r.lock()()

	return append([]domain.OrderEvent(nil), r.store.events[orderID]...), nil
}

var _ domain.OrderEventRepository = (*eventRepository)(nil)
