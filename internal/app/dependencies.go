package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/gateway"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
	"github.com/vladislavdragonenkov/shop/internal/storage/redis"
)

// Config описывает настройки запуска приложения. Пустые адреса внешних
// систем включают in-memory/stub режим: сервис поднимается без PostgreSQL,
// Redis, Kafka и платёжного шлюза для локальной разработки.
type Config struct {
	HTTPAddr         string
	MetricsAddr      string
	PostgresDSN      string
	RedisAddr        string
	KafkaBrokers     string
	GatewayBaseURL   string
	GatewaySecretKey string
}

// DefaultConfig возвращает базовые адреса HTTP API и метрик.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
	}
}

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	TxRunner    domain.TxRunner
	Orders      domain.OrderRepository
	Items       domain.ItemRepository
	Payments    domain.PaymentRepository
	Events      domain.OrderEventRepository
	Idempotency domain.IdempotencyRepository
	Carts       domain.CartStore
	Notifier    domain.NotificationPublisher
	Gateway     domain.PaymentGateway
	Logger      *log.Entry

	pg            *postgres.Store
	redisCarts    *redis.CartStore
	kafkaProducer *kafka.Producer
}

// NewDependencies создаёт и инициализирует все зависимости приложения.
// PostgreSQL и Redis подключаются только при заданных адресах, иначе
// используются in-memory реализации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		deps.pg = store
		deps.TxRunner = store
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Items = postgres.NewItemRepository(store)
		deps.Payments = postgres.NewPaymentRepository(store)
		deps.Events = postgres.NewEventRepository(store)
		deps.Idempotency = postgres.NewIdempotencyRepository(store)
		logger.Info("postgres storage initialized")
	} else {
		store := memory.NewStore()
		deps.TxRunner = store
		deps.Orders = memory.NewOrderRepository(store)
		deps.Items = memory.NewItemRepository(store)
		deps.Payments = memory.NewPaymentRepository(store)
		deps.Events = memory.NewEventRepository(store)
		deps.Idempotency = memory.NewIdempotencyRepository()
		logger.Warn("POSTGRES_DSN is empty, using in-memory storage")
	}

	if cfg.RedisAddr != "" {
		carts, err := redis.NewCartStore(ctx, cfg.RedisAddr)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		deps.redisCarts = carts
		deps.Carts = carts
		logger.WithField("addr", cfg.RedisAddr).Info("redis cart store initialized")
	} else {
		deps.Carts = memory.NewCartStore()
		logger.Warn("REDIS_ADDR is empty, using in-memory cart store")
	}

	if producer, err := initKafkaProducer(cfg.KafkaBrokers, logger); err == nil && producer != nil {
		deps.kafkaProducer = producer
		deps.Notifier = kafka.NewNotifier(producer)
	}

	if cfg.GatewayBaseURL != "" && cfg.GatewaySecretKey != "" {
		deps.Gateway = gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewaySecretKey)
		logger.WithField("base_url", cfg.GatewayBaseURL).Info("payment gateway client initialized")
	} else {
		deps.Gateway = gateway.NewStub()
		logger.Warn("payment gateway is not configured, using stub")
	}

	return deps, nil
}

// Close освобождает внешние подключения в обратном порядке инициализации.
func (d *Dependencies) Close() {
	closeKafka(d.kafkaProducer, d.Logger)

	if d.redisCarts != nil {
		if err := d.redisCarts.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis cart store")
		}
	}

	if d.pg != nil {
		if err := d.pg.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
