package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики ядра заказов.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated       prometheus.Counter
	paymentsConfirmed   prometheus.Counter
	paymentsDuplicated  prometheus.Counter
	paymentsFailed      prometheus.Counter
	transitionsApplied  *prometheus.CounterVec
	transitionsRejected prometheus.Counter
	stockConflicts      prometheus.Counter
	versionConflicts    prometheus.Counter

	// Гистограммы времени выполнения
	confirmDuration prometheus.Histogram
	gatewayDuration prometheus.Histogram

	// Счётчик событий журнала заказа
	orderEvents prometheus.Counter

	// Gauge для заказов, ожидающих оплаты
	pendingOrders prometheus.Gauge
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Total number of orders created",
		}),
		paymentsConfirmed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_payments_confirmed_total",
			Help: "Total number of payments confirmed successfully",
		}),
		paymentsDuplicated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_payments_duplicated_total",
			Help: "Total number of duplicate payment confirmations short-circuited",
		}),
		paymentsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_payments_failed_total",
			Help: "Total number of payment confirmations failed",
		}),
		transitionsApplied: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_transitions_total",
			Help: "Total number of order status transitions applied",
		}, []string{"to"}),
		transitionsRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_order_transitions_rejected_total",
			Help: "Total number of order status transitions rejected",
		}),
		stockConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_stock_conflicts_total",
			Help: "Total number of stock reservations rejected due to insufficient stock",
		}),
		versionConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_order_version_conflicts_total",
			Help: "Total number of optimistic lock conflicts on order updates",
		}),
		confirmDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_payment_confirm_duration_seconds",
			Help:    "Duration of end-to-end payment confirmation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		gatewayDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_gateway_confirm_duration_seconds",
			Help:    "Duration of the external gateway confirm call in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		orderEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_order_events_total",
			Help: "Total number of order audit events recorded",
		}),
		pendingOrders: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shop_pending_orders",
			Help: "Number of orders currently awaiting payment",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
	m.pendingOrders.Inc()
}

// RecordPaymentConfirmed увеличивает счётчик подтверждённых платежей.
func (m *OrderMetrics) RecordPaymentConfirmed() {
	m.paymentsConfirmed.Inc()
}

// RecordPaymentDuplicated увеличивает счётчик повторных подтверждений.
func (m *OrderMetrics) RecordPaymentDuplicated() {
	m.paymentsDuplicated.Inc()
}

// RecordPaymentFailed увеличивает счётчик неудачных подтверждений.
func (m *OrderMetrics) RecordPaymentFailed() {
	m.paymentsFailed.Inc()
}

// RecordTransition увеличивает счётчик переходов в указанный статус.
func (m *OrderMetrics) RecordTransition(to string) {
	m.transitionsApplied.WithLabelValues(to).Inc()
}

// RecordTransitionRejected увеличивает счётчик отклонённых переходов.
func (m *OrderMetrics) RecordTransitionRejected() {
	m.transitionsRejected.Inc()
}

// RecordStockConflict увеличивает счётчик отказов резервирования.
func (m *OrderMetrics) RecordStockConflict() {
	m.stockConflicts.Inc()
}

// RecordVersionConflict увеличивает счётчик конфликтов оптимистичной блокировки.
func (m *OrderMetrics) RecordVersionConflict() {
	m.versionConflicts.Inc()
}

// RecordConfirmDuration записывает полное время подтверждения платежа.
func (m *OrderMetrics) RecordConfirmDuration(duration time.Duration) {
	m.confirmDuration.Observe(duration.Seconds())
}

// RecordGatewayDuration записывает время вызова шлюза.
func (m *OrderMetrics) RecordGatewayDuration(duration time.Duration) {
	m.gatewayDuration.Observe(duration.Seconds())
}

// RecordOrderEvent увеличивает счётчик записанных событий журнала.
func (m *OrderMetrics) RecordOrderEvent() {
	m.orderEvents.Inc()
}

// RecordPendingResolved уменьшает количество заказов, ожидающих оплаты.
func (m *OrderMetrics) RecordPendingResolved() {
	m.pendingOrders.Dec()
}
