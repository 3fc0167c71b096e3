package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Webhook Processing Metrics
	webhookTransactionsTotal *prometheus.CounterVec
	transfersEvaluatedTotal  prometheus.Counter
	transfersSkippedTotal    *prometheus.CounterVec
	transferSupplyPercentage prometheus.Histogram

	// Alert Metrics
	alertsDispatchedTotal *prometheus.CounterVec
	alertDispatchDuration *prometheus.HistogramVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		// Webhook Processing Metrics
		webhookTransactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_transactions_total",
				Help: "Total number of transactions received in webhook payloads by outcome",
			},
			[]string{"outcome"},
		),
		transfersEvaluatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "token_transfers_evaluated_total",
				Help: "Total number of token transfers whose supply percentage was computed",
			},
		),
		transfersSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_transfers_skipped_total",
				Help: "Total number of token transfers skipped by reason",
			},
			[]string{"reason"},
		),
		transferSupplyPercentage: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "token_transfer_supply_percentage",
				Help:    "Transferred amount as a percentage of total supply",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.2, 0.5, 1, 5, 10},
			},
		),

		// Alert Metrics
		alertsDispatchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_dispatched_total",
				Help: "Total number of alert dispatch attempts by channel and status",
			},
			[]string{"channel", "status"},
		),
		alertDispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alert_dispatch_duration_seconds",
				Help:    "Duration of alert dispatches in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"channel"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"stream", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"stream"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	if m == nil {
		return
	}
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// Webhook processing metric helpers

// RecordWebhookTransaction records one transaction from a webhook payload.
// Outcome is "processed" or the reason it was ignored.
func (m *Metrics) RecordWebhookTransaction(outcome string) {
	if m == nil {
		return
	}
	m.webhookTransactionsTotal.WithLabelValues(outcome).Inc()
}

// RecordTransferEvaluated records a transfer whose supply percentage was computed.
func (m *Metrics) RecordTransferEvaluated(percentage float64) {
	if m == nil {
		return
	}
	m.transfersEvaluatedTotal.Inc()
	m.transferSupplyPercentage.Observe(percentage)
}

// RecordTransferSkipped records a transfer that was dropped before or during evaluation.
func (m *Metrics) RecordTransferSkipped(reason string) {
	if m == nil {
		return
	}
	m.transfersSkippedTotal.WithLabelValues(reason).Inc()
}

// Alert metric helpers

// RecordAlertDispatch records one dispatch attempt on a channel.
func (m *Metrics) RecordAlertDispatch(channel string, err error, duration float64) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.alertsDispatchedTotal.WithLabelValues(channel, status).Inc()
	m.alertDispatchDuration.WithLabelValues(channel).Observe(duration)
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(stream, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(stream, status).Inc()
	m.natsPublishDuration.WithLabelValues(stream).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
