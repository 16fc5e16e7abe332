// Package metrics exposes the connector's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chargeTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_charge_transitions_total",
		Help: "Persisted charge status transitions",
	}, []string{"from", "to"})

	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connector_gateway_request_duration_seconds",
		Help:    "Duration of calls to payment gateways",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{
		"gateway",
		"operation",
		"outcome", // success, connection_error, processing_error
	})

	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_async_executions_total",
		Help: "Async executor submissions by result",
	}, []string{
		"status", // completed, in_progress, rejected, stopped, guard_error
	})

	inFlightExecutions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "connector_async_executions_in_flight",
		Help: "Gateway tasks currently running in the async executor",
	})

	captureBatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_capture_batch_charges_total",
		Help: "Charges handled by the capture batch",
	}, []string{
		"outcome", // captured, submitted, retry, error, skipped
	})

	expiryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_expiry_charges_total",
		Help: "Charges handled by the expiry service",
	}, []string{
		"outcome", // expired, cancel_submitted, cancel_failed, error
	})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_notifications_total",
		Help: "Gateway notifications by processing outcome",
	}, []string{"gateway", "outcome"})
)

func RecordTransition(from, to string) {
	chargeTransitionsTotal.WithLabelValues(from, to).Inc()
}

func ObserveGatewayRequest(gateway, operation, outcome string, elapsed time.Duration) {
	gatewayRequestDuration.WithLabelValues(gateway, operation, outcome).Observe(elapsed.Seconds())
}

func RecordExecution(status string) {
	executionsTotal.WithLabelValues(status).Inc()
}

func ExecutionStarted() { inFlightExecutions.Inc() }

func ExecutionFinished() { inFlightExecutions.Dec() }

func RecordCaptureBatch(outcome string) {
	captureBatchTotal.WithLabelValues(outcome).Inc()
}

func RecordExpiry(outcome string) {
	expiryTotal.WithLabelValues(outcome).Inc()
}

func RecordNotification(gateway, outcome string) {
	notificationsTotal.WithLabelValues(gateway, outcome).Inc()
}
