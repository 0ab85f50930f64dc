package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	ledgerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "library",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by outcome.",
		},
		[]string{"op", "outcome"},
	)

	ledgerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "library",
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Duration of ledger operations, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"op"},
	)

	txRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "library",
			Subsystem: "ledger",
			Name:      "tx_retries_total",
			Help:      "Transactions retried after a transient storage error.",
		},
		[]string{"op"},
	)

	availabilityCapHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "library",
			Subsystem: "ledger",
			Name:      "availability_cap_hits_total",
			Help:      "Returns whose increment was suppressed because available_copies already equalled total_copies.",
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "library",
			Subsystem: "notifier",
			Name:      "events_total",
			Help:      "Notification events by kind and delivery result.",
		},
		[]string{"kind", "result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "library",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "library",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		ledgerOps, ledgerDuration, txRetries, availabilityCapHits,
		notifications, httpRequests, httpDuration,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordLedgerOp(op, outcome string, d time.Duration) {
	ledgerOps.WithLabelValues(op, outcome).Inc()
	ledgerDuration.WithLabelValues(op).Observe(d.Seconds())
}

func RecordTxRetry(op string) { txRetries.WithLabelValues(op).Inc() }

func RecordAvailabilityCapHit() { availabilityCapHits.Inc() }

func RecordNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}

func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
