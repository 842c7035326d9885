package postgres

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type eventRepository struct {
	q querier
}

// NewEventRepository создаёт PostgreSQL-реализацию OrderEventRepository вне транзакции.
func NewEventRepository(store *Store) domain.OrderEventRepository {
	return &eventRepository{q: store.DB()}
}

func (r *eventRepository) Append(ctx context.Context, event domain.OrderEvent) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO order_events (
			order_id, event_type, from_status, to_status, reason, occurred_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		event.OrderID, event.Type, string(event.From), string(event.To),
		event.Reason, event.Occurred,
	)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}

	return nil
}

func (r *eventRepository) List(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT order_id, event_type, from_status, to_status, reason, occurred_at
		FROM order_events
		WHERE order_id = $1
		ORDER BY occurred_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.OrderEvent, 0)
	for rows.Next() {
		var (
			event    domain.OrderEvent
			from, to string
		)
		if err := rows.Scan(&event.OrderID, &event.Type, &from, &to, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		event.From = domain.OrderStatus(from)
		event.To = domain.OrderStatus(to)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order events: %w", err)
	}

	return events, nil
}

var _ domain.OrderEventRepository = (*eventRepository)(nil)
