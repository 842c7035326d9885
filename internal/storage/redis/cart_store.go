package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const opTimeout = 3 * time.Second

// cartLinePayload — формат строки корзины в Redis.
type cartLinePayload struct {
	Qty     int32     `json:"qty"`
	AddedAt time.Time `json:"added_at"`
}

// CartStore реализует domain.CartStore поверх Redis. Корзина покупателя —
// hash с ключом cart:<memberID>, полями-идентификаторами товаров и JSON-значениями.
// Корзины пишет внешний cart-сервис; ядро заказов читает и удаляет строки.
type CartStore struct {
	client *redis.Client
}

// NewCartStore подключается к Redis и проверяет доступность.
func NewCartStore(ctx context.Context, addr string) (*CartStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &CartStore{client: client}, nil
}

// NewCartStoreWithClient оборачивает готовый клиент; используется тестами.
func NewCartStoreWithClient(client *redis.Client) *CartStore {
	return &CartStore{client: client}
}

func cartKey(memberID string) string {
	return "cart:" + memberID
}

func (c *CartStore) Lines(ctx context.Context, memberID string, itemIDs []string) ([]domain.CartLine, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	values, err := c.client.HMGet(ctx, cartKey(memberID), itemIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("read cart lines: %w", err)
	}

	lines := make([]domain.CartLine, 0, len(itemIDs))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok || raw == "" {
			return nil, domain.ErrCartLineNotFound
		}

		var payload cartLinePayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("decode cart line %s: %w", itemIDs[i], err)
		}

		lines = append(lines, domain.CartLine{
			MemberID: memberID,
			ItemID:   itemIDs[i],
			Qty:      payload.Qty,
			AddedAt:  payload.AddedAt,
		})
	}

	return lines, nil
}

func (c *CartStore) Delete(ctx context.Context, memberID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.HDel(ctx, cartKey(memberID), itemIDs...).Err(); err != nil {
		return fmt.Errorf("delete cart lines: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis; используется health-чекером.
func (c *CartStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close закрывает подключение.
func (c *CartStore) Close() error {
	return c.client.Close()
}

var _ domain.CartStore = (*CartStore)(nil)
