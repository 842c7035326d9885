package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// itemRepository — in-memory реализация ItemRepository поверх Store.
type itemRepository struct {
	store  *Store
	locked bool
}

// NewItemRepository возвращает репозиторий для использования вне транзакции.
func NewItemRepository(store *Store) domain.ItemRepository {
	return &itemRepository{store: store}
}

// SeedItem кладёт товар в хранилище; используется тестами и локальным запуском.
func (s *Store) SeedItem(item domain.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

func (r *itemRepository) lock() func() {
	if r.locked {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *itemRepository) Get(_ context.Context, id string) (domain.Item, error) {
	defer r.lock()()

	item, ok := r.store.items[id]
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return item, nil
}

func (r *itemRepository) Reserve(_ context.Context, itemID string, qty int32) error {
	defer r.lock()()

	item, ok := r.store.items[itemID]
	if !ok {
		return domain.ErrItemNotFound
	}
	// Условный декремент: остаток никогда не уходит ниже нуля.
	if item.Available < int64(qty) {
		return domain.ErrInsufficientStock
	}
	item.Available -= int64(qty)
	item.UpdatedAt = time.Now().UTC()
	r.store.items[itemID] = item
	return nil
}

func (r *itemRepository) Release(_ context.Context, itemID string, qty int32) error {
	defer r.lock()()

	item, ok := r.store.items[itemID]
	if !ok {
		return domain.ErrItemNotFound
	}
	item.Available += int64(qty)
	item.UpdatedAt = time.Now().UTC()
	r.store.items[itemID] = item
	return nil
}

var _ domain.ItemRepository = (*itemRepository)(nil)
