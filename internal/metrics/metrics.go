// Package metrics holds the Prometheus collectors for session processing and
// the HTTP surface.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fieldtrack"

var (
	once sync.Once

	// SessionsActive is the number of sessions held in memory.
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Number of processing sessions currently held in memory.",
	})

	// SessionsTotal counts sessions by how they ended.
	SessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "total",
		Help:      "Processing sessions by lifecycle event (created, committed, abandoned).",
	}, []string{"event"})

	// RecordsEvaluatedTotal counts evaluated records by routing outcome.
	RecordsEvaluatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "validation",
		Name:      "records_evaluated_total",
		Help:      "Property records evaluated, labeled by outcome (valid, excluded, issue).",
	}, []string{"outcome"})

	// OverridesTotal counts manager decisions.
	OverridesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "validation",
		Name:      "overrides_total",
		Help:      "Override decisions recorded, labeled by decision (accepted, rejected).",
	}, []string{"decision"})

	// CommitsTotal counts commit attempts by result.
	CommitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "commits_total",
		Help:      "Session commits, labeled by status (success, failure).",
	}, []string{"status"})

	// FetchDurationSeconds is the time spent retrieving a session's records.
	FetchDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "records",
		Name:      "fetch_duration_seconds",
		Help:      "Time to retrieve a file version's records, labeled by result.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"result"})

	// HTTPRequestsTotal counts API requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDurationSeconds is request latency per route.
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, labeled by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Outcome labels for RecordsEvaluatedTotal.
const (
	OutcomeValid    = "valid"
	OutcomeExcluded = "excluded"
	OutcomeIssue    = "issue"
)

// Register registers every collector with the default registry. Safe to call
// multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			SessionsActive,
			SessionsTotal,
			RecordsEvaluatedTotal,
			OverridesTotal,
			CommitsTotal,
			FetchDurationSeconds,
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
