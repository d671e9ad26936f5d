// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "finwise"

// ─── Import ─────────────────────────────────────────────────────────────────

// ImportRuns counts import attempts by result.
var ImportRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "import",
	Name:      "runs_total",
	Help:      "Import runs by result (ok, header_mismatch, storage_failure, too_large).",
}, []string{"result"})

// ImportRows counts processed data rows.
var ImportRows = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "import",
	Name:      "rows_total",
	Help:      "Imported and skipped rows.",
}, []string{"outcome"})

// ImportRowErrors counts skipped rows by error code.
var ImportRowErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "import",
	Name:      "row_errors_total",
	Help:      "Skipped rows by error code.",
}, []string{"code"})

// CategoriesCreated counts categories created by reconciliation.
var CategoriesCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "import",
	Name:      "categories_created_total",
	Help:      "Categories created while importing.",
})

// ─── Ledger ─────────────────────────────────────────────────────────────────

// GuardDecisions counts negative balance guard outcomes.
var GuardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "guard",
	Name:      "decisions_total",
	Help:      "Negative balance guard decisions by policy.",
}, []string{"decision", "policy"})

// LedgerMutations counts writes by operation.
var LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "mutations_total",
	Help:      "Ledger writes by operation.",
}, []string{"operation"})

// SummaryCache counts summary cache lookups.
var SummaryCache = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "summary",
	Name:      "cache_lookups_total",
	Help:      "Summary cache lookups by result (hit, miss).",
}, []string{"result"})

// ─── Transport ──────────────────────────────────────────────────────────────

// HTTPDuration tracks request latency per route.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route and status class.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// AMQPPublished counts change notifications by result.
var AMQPPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "amqp",
	Name:      "published_total",
	Help:      "Ledger change notifications published by result.",
}, []string{"result"})

// WorkerMessages counts consumed notifications by result.
var WorkerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "worker",
	Name:      "messages_total",
	Help:      "Ledger change notifications handled by the worker.",
}, []string{"result"})

// RecordImport updates the import collectors for a finished run.
func RecordImport(imported, skipped, newCategories int, codes []string) {
	ImportRuns.WithLabelValues("ok").Inc()
	ImportRows.WithLabelValues("imported").Add(float64(imported))
	ImportRows.WithLabelValues("skipped").Add(float64(skipped))
	for _, c := range codes {
		ImportRowErrors.WithLabelValues(c).Inc()
	}
	CategoriesCreated.Add(float64(newCategories))
}

// RecordImportFailure counts an aborted run.
func RecordImportFailure(reason string) {
	ImportRuns.WithLabelValues(reason).Inc()
}

// StatusClass buckets HTTP status codes as 2xx, 4xx and so on.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// RateLimited counts requests rejected by the rate limiter.
var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the rate limiter.",
})
