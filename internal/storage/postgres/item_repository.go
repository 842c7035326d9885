package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type itemRepository struct {
	q querier
}

// NewItemRepository создаёт PostgreSQL-реализацию ItemRepository вне транзакции.
func NewItemRepository(store *Store) domain.ItemRepository {
	return &itemRepository{q: store.DB()}
}

func (r *itemRepository) Get(ctx context.Context, id string) (domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var item domain.Item
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, price_minor, available, thumbnail_url, created_at, updated_at
		FROM items
		WHERE id = $1
	`, id).Scan(
		&item.ID, &item.Name, &item.PriceMinor, &item.Available,
		&item.ThumbnailURL, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, domain.ErrItemNotFound
		}
		return domain.Item{}, fmt.Errorf("select item: %w", err)
	}

	return item, nil
}

// Reserve — условный атомарный декремент: проигрыш гонки за последние единицы
// остатка выражается нулём затронутых строк, а не отрицательным остатком.
func (r *itemRepository) Reserve(ctx context.Context, itemID string, qty int32) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE items
		SET available = available - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND available >= $2
	`, itemID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.itemExists(ctx, itemID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrItemNotFound
		}
		return domain.ErrInsufficientStock
	}

	return nil
}

func (r *itemRepository) Release(ctx context.Context, itemID string, qty int32) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE items
		SET available = available + $2,
		    updated_at = NOW()
		WHERE id = $1
	`, itemID, qty)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrItemNotFound
	}

	return nil
}

func (r *itemRepository) itemExists(ctx context.Context, itemID string) (bool, error) {
	var id string
	err := r.q.QueryRowContext(ctx, `SELECT id FROM items WHERE id = $1`, itemID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check item exists: %w", err)
}

var _ domain.ItemRepository = (*itemRepository)(nil)
