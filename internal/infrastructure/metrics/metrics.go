package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/gotransfer/internal/domain"
)

const namespace = "gotransfer"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transfer metrics
	Transfers        *prometheus.CounterVec
	TransferDuration *prometheus.HistogramVec
	TransferAmount   prometheus.Histogram

	// Compensation metrics
	Compensations        *prometheus.CounterVec
	PendingCompensations prometheus.Gauge

	// Store metrics
	StoreRetries *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	GRPCRequests *prometheus.CounterVec
	GRPCDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Transfers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Total number of transfers by terminal status",
			},
			[]string{"status"},
		),
		TransferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transfer_duration_seconds",
				Help:      "Duration of transfer operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		TransferAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_amount",
			Help:      "Amounts of successful transfers in minor units",
			Buckets:   []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),

		Compensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compensations_total",
				Help:      "Compensation outcomes: reversed, scheduled, resolved, escalated",
			},
			[]string{"outcome"},
		),
		PendingCompensations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compensations_pending",
			Help:      "Compensations waiting to be applied",
		}),

		StoreRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_retries_total",
				Help:      "Retries of transient store errors",
			},
			[]string{"retrier"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),

		GRPCRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grpc_requests_total",
				Help:      "Total unary gRPC calls by status code",
			},
			[]string{"method", "code"},
		),
		GRPCDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "grpc_request_duration_seconds",
				Help:      "Unary gRPC call duration",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),

		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total authentication failures",
			},
			[]string{"reason"},
		),

		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}
}

// ObserveTransfer records a finished transfer.
func (m *Metrics) ObserveTransfer(status domain.TransferStatus, amount int64, duration time.Duration) {
	m.Transfers.WithLabelValues(string(status)).Inc()
	m.TransferDuration.WithLabelValues(string(status)).Observe(duration.Seconds())

	if status == domain.TransferStatusSuccess {
		m.TransferAmount.Observe(float64(amount))
	}
}

// IncCompensation counts a compensation outcome.
func (m *Metrics) IncCompensation(outcome string) {
	m.Compensations.WithLabelValues(outcome).Inc()
}

// SetPendingCompensations sets the pending compensation gauge.
func (m *Metrics) SetPendingCompensations(count int) {
	m.PendingCompensations.Set(float64(count))
}

// ObserveStoreRetry counts a retry. Its signature matches retry.Config.OnRetry.
func (m *Metrics) ObserveStoreRetry(name string, _ int, _ error) {
	m.StoreRetries.WithLabelValues(name).Inc()
}
