// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "suiflow"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of ledger JSON-RPC requests.",
		},
		[]string{"method", "result"},
	)

	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Duration of ledger JSON-RPC requests.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"method"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "submissions_total",
			Help:      "Transaction submissions by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	submissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "submission_duration_seconds",
			Help:      "Time from submission to reported execution.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"operation"},
	)

	eventQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "queries_total",
			Help:      "Event topic queries by kind and result.",
		},
		[]string{"kind", "result"},
	)

	reconciliationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciliation",
			Name:      "runs_total",
			Help:      "Reconciliation runs by status.",
		},
		[]string{"status"},
	)

	reconciliationLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconciliation",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful reconciliation run.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		rpcRequests,
		rpcDuration,
		submissions,
		submissionDuration,
		eventQueries,
		reconciliationRuns,
		reconciliationLastSuccess,
		httpRequests,
		httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRPC records one ledger RPC round trip.
func RecordRPC(method, result string, d time.Duration) {
	rpcRequests.WithLabelValues(method, result).Inc()
	rpcDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordSubmission records a submission outcome.
func RecordSubmission(operation, outcome string, d time.Duration) {
	submissions.WithLabelValues(operation, outcome).Inc()
	submissionDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordEventQuery records an event topic query.
func RecordEventQuery(kind, result string) {
	eventQueries.WithLabelValues(kind, result).Inc()
}

// RecordReconciliation records a reconciliation run.
func RecordReconciliation(status string, at time.Time) {
	reconciliationRuns.WithLabelValues(status).Inc()
	if status != "error" {
		reconciliationLastSuccess.Set(float64(at.Unix()))
	}
}

// RecordHTTPRequest records a handled HTTP request.
func RecordHTTPRequest(method, path, status string, d time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
