package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewOrderMetrics(t *testing.T) {
	metrics := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("NewOrderMetrics should not return nil")
	}

	if metrics.ordersCreated == nil {
		t.Error("ordersCreated counter should not be nil")
	}

	if metrics.paymentsConfirmed == nil {
		t.Error("paymentsConfirmed counter should not be nil")
	}

	if metrics.paymentsDuplicated == nil {
		t.Error("paymentsDuplicated counter should not be nil")
	}

	if metrics.paymentsFailed == nil {
		t.Error("paymentsFailed counter should not be nil")
	}

	if metrics.transitionsApplied == nil {
		t.Error("transitionsApplied counter vec should not be nil")
	}

	if metrics.confirmDuration == nil {
		t.Error("confirmDuration histogram should not be nil")
	}

	if metrics.gatewayDuration == nil {
		t.Error("gatewayDuration histogram should not be nil")
	}

	if metrics.pendingOrders == nil {
		t.Error("pendingOrders gauge should not be nil")
	}
}

func TestNewOrderMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newOrderMetricsWithRegisterer(reg)
	second := newOrderMetricsWithRegisterer(reg)

	// Повторная регистрация возвращает уже существующие коллекторы
	if first.ordersCreated != second.ordersCreated {
		t.Error("expected the same collector on repeated registration")
	}
}

func TestRecordOrderCreated(t *testing.T) {
	metrics := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOrderCreated()
	metrics.RecordOrderCreated()

	if got := counterValue(t, metrics.ordersCreated); got != 2 {
		t.Errorf("expected ordersCreated 2, got %v", got)
	}

	if got := gaugeValue(t, metrics.pendingOrders); got != 2 {
		t.Errorf("expected pendingOrders 2, got %v", got)
	}

	metrics.RecordPendingResolved()

	if got := gaugeValue(t, metrics.pendingOrders); got != 1 {
		t.Errorf("expected pendingOrders 1, got %v", got)
	}
}

func TestRecordPaymentOutcomes(t *testing.T) {
	metrics := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordPaymentConfirmed()
	metrics.RecordPaymentDuplicated()
	metrics.RecordPaymentFailed()
	metrics.RecordPaymentFailed()

	if got := counterValue(t, metrics.paymentsConfirmed); got != 1 {
		t.Errorf("expected paymentsConfirmed 1, got %v", got)
	}
	if got := counterValue(t, metrics.paymentsDuplicated); got != 1 {
		t.Errorf("expected paymentsDuplicated 1, got %v", got)
	}
	if got := counterValue(t, metrics.paymentsFailed); got != 2 {
		t.Errorf("expected paymentsFailed 2, got %v", got)
	}
}

func TestRecordTransition(t *testing.T) {
	metrics := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordTransition("paid")
	metrics.RecordTransition("paid")
	metrics.RecordTransition("canceled")
	metrics.RecordTransitionRejected()

	if got := counterValue(t, metrics.transitionsApplied.WithLabelValues("paid")); got != 2 {
		t.Errorf("expected paid transitions 2, got %v", got)
	}
	if got := counterValue(t, metrics.transitionsApplied.WithLabelValues("canceled")); got != 1 {
		t.Errorf("expected canceled transitions 1, got %v", got)
	}
	if got := counterValue(t, metrics.transitionsRejected); got != 1 {
		t.Errorf("expected rejected transitions 1, got %v", got)
	}
}

func TestRecordDurations(t *testing.T) {
	metrics := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordConfirmDuration(150 * time.Millisecond)
	metrics.RecordGatewayDuration(80 * time.Millisecond)

	var m dto.Metric
	if err := metrics.confirmDuration.Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.GetHistogram().GetSampleCount() != 1 {
		t.Errorf("expected 1 confirm sample, got %d", m.GetHistogram().GetSampleCount())
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetGauge().GetValue()
}
