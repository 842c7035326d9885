package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	orderColumns = `id, member_id, status, shipping_fee_minor, total_minor, item_quantity,
		thumbnail_url, addr_zipcode, addr_street, addr_detail, addr_receiver, addr_phone,
		version, created_at, updated_at`
)

type orderRepository struct {
	q querier
	// db не nil только вне транзакции: Create тогда открывает собственную.
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository вне транзакции.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{q: store.DB(), db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if r.db != nil {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := createOrder(ctx, tx, order); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit create order: %w", err)
		}
		return nil
	}

	return createOrder(ctx, r.q, order)
}

func createOrder(ctx context.Context, q querier, order domain.Order) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (
			id, member_id, status, shipping_fee_minor, total_minor, item_quantity,
			thumbnail_url, addr_zipcode, addr_street, addr_detail, addr_receiver, addr_phone,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		order.ID, order.MemberID, string(order.Status), order.ShippingFeeMinor,
		order.TotalMinor, order.ItemQuantity, order.ThumbnailURL,
		order.Address.Zipcode, order.Address.Street, order.Address.Detail,
		order.Address.Receiver, order.Address.Phone,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO order_lines (
				id, order_id, item_id, qty, unit_price_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			line.ID, order.ID, line.ItemID, line.Qty, line.UnitPriceMinor, line.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	order, err := r.GetHeader(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) GetHeader(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	return order, nil
}

func (r *orderRepository) List(ctx context.Context, page domain.Page) ([]domain.Order, int64, error) {
	return r.listWhere(ctx, "", nil, page)
}

func (r *orderRepository) ListByMember(ctx context.Context, memberID string, page domain.Page) ([]domain.Order, int64, error) {
	return r.listWhere(ctx, "WHERE member_id = $1", []interface{}{memberID}, page)
}

func (r *orderRepository) listWhere(ctx context.Context, where string, args []interface{}, page domain.Page) ([]domain.Order, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var total int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, orderColumns, where, len(args)+1, len(args)+2)

	rows, err := r.q.QueryContext(ctx, query, append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *orderRepository) Report(ctx context.Context, filter domain.ReportFilter, page domain.Page) ([]domain.Order, int64, domain.ReportTotals, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	conds := []string{"created_at >= $1", "created_at < $2"}
	args := []interface{}{filter.From, filter.To}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.MemberID != "" {
		args = append(args, filter.MemberID)
		conds = append(conds, fmt.Sprintf("member_id = $%d", len(args)))
	}
	where := "WHERE " + strings.Join(conds, " AND ")

	// Агрегаты считаются по всей выборке, страница — только по контенту.
	var totals domain.ReportTotals
	if err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_minor - shipping_fee_minor), 0),
		       COALESCE(SUM(shipping_fee_minor), 0),
		       COALESCE(SUM(total_minor), 0)
		FROM orders `+where, args...,
	).Scan(&totals.Orders, &totals.SubtotalMinor, &totals.ShippingMinor, &totals.TotalMinor); err != nil {
		return nil, 0, domain.ReportTotals{}, fmt.Errorf("report totals: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, orderColumns, where, len(args)+1, len(args)+2)

	rows, err := r.q.QueryContext(ctx, query, append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, 0, domain.ReportTotals{}, fmt.Errorf("report orders: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, domain.ReportTotals{}, err
	}

	return orders, totals.Orders, totals, nil
}

func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    thumbnail_url = $2,
		    addr_zipcode = $3,
		    addr_street = $4,
		    addr_detail = $5,
		    addr_receiver = $6,
		    addr_phone = $7,
		    version = version + 1,
		    updated_at = $8
		WHERE id = $9
		  AND version = $10
	`,
		string(order.Status), order.ThumbnailURL,
		order.Address.Zipcode, order.Address.Street, order.Address.Detail,
		order.Address.Receiver, order.Address.Phone,
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, item_id, qty, unit_price_minor, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.ItemID, &line.Qty, &line.UnitPriceMinor, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.q.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	var status string
	if err := row.Scan(
		&order.ID, &order.MemberID, &status, &order.ShippingFeeMinor,
		&order.TotalMinor, &order.ItemQuantity, &order.ThumbnailURL,
		&order.Address.Zipcode, &order.Address.Street, &order.Address.Detail,
		&order.Address.Receiver, &order.Address.Phone,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	return order, nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
