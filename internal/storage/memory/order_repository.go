package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository поверх Store.
type orderRepository struct {
	store *Store
	// locked=true означает, что мьютекс уже удержан транзакцией.
	locked bool
}

// NewOrderRepository возвращает репозиторий для использования вне транзакции.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{store: store}
}

func (r *orderRepository) lock() func() {
	if r.locked {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *orderRepository) Create(_ context.Context, order domain.Order) error {
	defer r.lock()()

	if _, exists := r.store.orders[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	// Позиции храним отдельно, как и таблицы в PostgreSQL-реализации.
	lines := append([]domain.OrderLine(nil), order.Lines...)
	order.Lines = nil
	r.store.orders[order.ID] = order
	r.store.lines[order.ID] = lines
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	defer r.lock()()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Lines = append([]domain.OrderLine(nil), r.store.lines[id]...)
	return order, nil
}

func (r *orderRepository) GetHeader(_ context.Context, id string) (domain.Order, error) {
	defer r.lock()()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (r *orderRepository) List(_ context.Context, page domain.Page) ([]domain.Order, int64, error) {
	defer r.lock()()
	return paginate(r.collect(func(domain.Order) bool { return true }), page)
}

func (r *orderRepository) ListByMember(_ context.Context, memberID string, page domain.Page) ([]domain.Order, int64, error) {
	defer r.lock()()
	return paginate(r.collect(func(o domain.Order) bool { return o.MemberID == memberID }), page)
}

func (r *orderRepository) Report(_ context.Context, filter domain.ReportFilter, page domain.Page) ([]domain.Order, int64, domain.ReportTotals, error) {
	defer r.lock()()

	matched := r.collect(func(o domain.Order) bool {
		if o.CreatedAt.Before(filter.From) || !o.CreatedAt.Before(filter.To) {
			return false
		}
		if filter.Status != "" && o.Status != filter.Status {
			return false
		}
		if filter.MemberID != "" && o.MemberID != filter.MemberID {
			return false
		}
		return true
	})

	var totals domain.ReportTotals
	for _, o := range matched {
		totals.Orders++
		totals.SubtotalMinor += o.SubtotalMinor()
		totals.ShippingMinor += o.ShippingFeeMinor
		totals.TotalMinor += o.TotalMinor
	}

	orders, total, err := paginate(matched, page)
	if err != nil {
		return nil, 0, domain.ReportTotals{}, err
	}
	return orders, total, totals, nil
}

func (r *orderRepository) Save(_ context.Context, order domain.Order) error {
	defer r.lock()()

	current, ok := r.store.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	// Инкрементируем версию перед сохранением (optimistic locking).
	order.Version++
	order.Lines = nil
	r.store.orders[order.ID] = order
	return nil
}

func (r *orderRepository) collect(match func(domain.Order) bool) []domain.Order {
	result := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		if match(order) {
			result = append(result, order)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result
}

func paginate(orders []domain.Order, page domain.Page) ([]domain.Order, int64, error) {
	total := int64(len(orders))
	offset := page.Offset()
	if offset >= len(orders) {
		return []domain.Order{}, total, nil
	}
	end := offset + page.Limit()
	if end > len(orders) {
		end = len(orders)
	}
	return append([]domain.Order(nil), orders[offset:end]...), total, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
