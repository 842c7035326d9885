package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Store — общее in-memory состояние для локальной разработки и unit-тестов.
// Один мьютекс на всё состояние: транзакция — это критическая секция со
// снапшотом для отката, что повторяет семантику WithinTx у PostgreSQL.
type Store struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	lines    map[string][]domain.OrderLine
	items    map[string]domain.Item
	payments map[string]domain.PaymentRecord
	events   map[string][]domain.OrderEvent
}

// NewStore возвращает пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		orders:   make(map[string]domain.Order),
		lines:    make(map[string][]domain.OrderLine),
		items:    make(map[string]domain.Item),
		payments: make(map[string]domain.PaymentRecord),
		events:   make(map[string][]domain.OrderEvent),
	}
}

// WithinTx исполняет fn под общим мьютексом; ошибка fn откатывает все
// изменения к снапшоту, сделанному на входе.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.clone()
	bundle := &txBundle{store: s}

	if err := fn(bundle); err != nil {
		s.restore(snapshot)
		return err
	}

	return nil
}

func (s *Store) clone() *Store {
	c := &Store{
		orders:   make(map[string]domain.Order, len(s.orders)),
		lines:    make(map[string][]domain.OrderLine, len(s.lines)),
		items:    make(map[string]domain.Item, len(s.items)),
		payments: make(map[string]domain.PaymentRecord, len(s.payments)),
		events:   make(map[string][]domain.OrderEvent, len(s.events)),
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]domain.OrderLine(nil), v...)
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.events {
		c.events[k] = append([]domain.OrderEvent(nil), v...)
	}
	return c
}

func (s *Store) restore(snapshot *Store) {
	s.orders = snapshot.orders
	s.lines = snapshot.lines
	s.items = snapshot.items
	s.payments = snapshot.payments
	s.events = snapshot.events
}

// txBundle отдаёт репозитории, работающие без захвата мьютекса:
// он уже удержан на время WithinTx.
type txBundle struct {
	store *Store
}

func (t *txBundle) Orders() domain.OrderRepository      { return &orderRepository{store: t.store, locked: true} }
func (t *txBundle) Items() domain.ItemRepository        { return &itemRepository{store: t.store, locked: true} }
func (t *txBundle) Payments() domain.PaymentRepository  { return &paymentRepository{store: t.store, locked: true} }
func (t *txBundle) Events() domain.OrderEventRepository { return &eventRepository{store: t.store, locked: true} }

var _ domain.TxRunner = (*Store)(nil)
var _ domain.Tx = (*txBundle)(nil)
