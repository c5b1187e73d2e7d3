package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. It implements the
// observer hooks of the carrier client, the cache and the shipping service.
type Metrics struct {
	CarrierRequests *prometheus.CounterVec
	CarrierDuration *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	Retries         *prometheus.CounterVec
	RequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CarrierRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yalidine_carrier_requests_total",
				Help: "Total HTTP requests to the Yalidine API by method, endpoint, and status",
			},
			[]string{"method", "endpoint", "status"},
		),
		CarrierDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yalidine_carrier_request_duration_seconds",
				Help:    "Yalidine API request duration in seconds by method and endpoint",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yalidine_cache_lookups_total",
				Help: "Reference cache lookups by result",
			},
			[]string{"result"},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yalidine_retries_total",
				Help: "Retried carrier calls by operation",
			},
			[]string{"operation"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yalidine_requests_total",
				Help: "Shipping operations by operation and outcome",
			},
			[]string{"operation", "status"},
		),
	}
}

// ObserveRequest records one carrier HTTP exchange. status 0 means no
// response was received.
func (m *Metrics) ObserveRequest(method, endpoint string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.CarrierRequests.WithLabelValues(method, endpoint, label).Inc()
	m.CarrierDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveLookup records a cache hit or miss.
func (m *Metrics) ObserveLookup(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// ObserveRetry records a retried carrier call.
func (m *Metrics) ObserveRetry(operation string) {
	m.Retries.WithLabelValues(operation).Inc()
}

// ObserveOperation records the outcome of a shipping operation.
func (m *Metrics) ObserveOperation(operation, status string) {
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
}
