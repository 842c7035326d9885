package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// CartStore — in-memory реализация внешнего хранилища корзин для тестов
// и локального запуска без Redis.
type CartStore struct {
	mu    sync.RWMutex
	lines map[string]map[string]domain.CartLine // memberID -> itemID -> line
}

// NewCartStore возвращает пустое хранилище корзин.
func NewCartStore() *CartStore {
	return &CartStore{lines: make(map[string]map[string]domain.CartLine)}
}

// Put кладёт строку корзины; используется тестами для подготовки состояния.
func (c *CartStore) Put(line domain.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	member, ok := c.lines[line.MemberID]
	if !ok {
		member = make(map[string]domain.CartLine)
		c.lines[line.MemberID] = member
	}
	member[line.ItemID] = line
}

// Len возвращает число строк в корзине покупателя.
func (c *CartStore) Len(memberID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines[memberID])
}

func (c *CartStore) Lines(_ context.Context, memberID string, itemIDs []string) ([]domain.CartLine, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	member := c.lines[memberID]
	result := make([]domain.CartLine, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		line, ok := member[itemID]
		if !ok {
			return nil, domain.ErrCartLineNotFound
		}
		result = append(result, line)
	}
	return result, nil
}

func (c *CartStore) Delete(_ context.Context, memberID string, itemIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	member := c.lines[memberID]
	for _, itemID := range itemIDs {
		delete(member, itemID)
	}
	return nil
}

var _ domain.CartStore = (*CartStore)(nil)
