package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// querier покрывает общие методы *sql.DB и *sql.Tx, чтобы репозитории
// одинаково работали и в транзакции, и вне её.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// txBundle связывает репозитории с одной открытой транзакцией.
type txBundle struct {
	orders   *orderRepository
	items    *itemRepository
	payments *paymentRepository
	events   *eventRepository
}

func (t *txBundle) Orders() domain.OrderRepository        { return t.orders }
func (t *txBundle) Items() domain.ItemRepository          { return t.items }
func (t *txBundle) Payments() domain.PaymentRepository    { return t.payments }
func (t *txBundle) Events() domain.OrderEventRepository   { return t.events }

// WithinTx исполняет fn в одной транзакции PostgreSQL. Ошибка fn или паника
// откатывает всё: запись статуса, движение остатков и квитанцию платежа.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	bundle := &txBundle{
		orders:   &orderRepository{q: sqlTx},
		items:    &itemRepository{q: sqlTx},
		payments: &paymentRepository{q: sqlTx},
		events:   &eventRepository{q: sqlTx},
	}

	if err := fn(bundle); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

var _ domain.TxRunner = (*Store)(nil)
var _ domain.Tx = (*txBundle)(nil)
