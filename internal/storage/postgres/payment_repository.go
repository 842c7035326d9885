package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type paymentRepository struct {
	q querier
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository вне транзакции.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{q: store.DB()}
}

func (r *paymentRepository) Create(ctx context.Context, record domain.PaymentRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var approvedAt interface{}
	if !record.ApprovedAt.IsZero() {
		approvedAt = record.ApprovedAt
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payments (
			id, payment_key, gateway_order_id, order_id, amount_minor,
			method, gateway_status, approved_at, receipt_url, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		record.ID, record.PaymentKey, record.GatewayOrderID, record.OrderID,
		record.AmountMinor, string(record.Method), record.GatewayStatus,
		approvedAt, record.ReceiptURL, record.CreatedAt,
	)
	if err != nil {
		// Уникальный индекс по payment_key — гарантия "не больше одной квитанции на ключ".
		if isUniqueViolation(err) {
			return domain.ErrPaymentKeyExists
		}
		return fmt.Errorf("insert payment record: %w", err)
	}

	return nil
}

func (r *paymentRepository) GetByKey(ctx context.Context, paymentKey string) (domain.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		record     domain.PaymentRecord
		method     string
		approvedAt sql.NullTime
	)

	err := r.q.QueryRowContext(ctx, `
		SELECT id, payment_key, gateway_order_id, order_id, amount_minor,
		       method, gateway_status, approved_at, receipt_url, created_at
		FROM payments
		WHERE payment_key = $1
	`, paymentKey).Scan(
		&record.ID, &record.PaymentKey, &record.GatewayOrderID, &record.OrderID,
		&record.AmountMinor, &method, &record.GatewayStatus,
		&approvedAt, &record.ReceiptURL, &record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PaymentRecord{}, domain.ErrPaymentNotFound
		}
		return domain.PaymentRecord{}, fmt.Errorf("select payment record: %w", err)
	}

	record.Method = domain.PaymentMethod(method)
	if approvedAt.Valid {
		record.ApprovedAt = approvedAt.Time
	}

	return record, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
