// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

// Package metrics provides Prometheus instrumentation for Refectory:
// refresh orchestration, upstream fetches, database queries, and the API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Refresh Orchestration Metrics
	RefreshTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refectory_refresh_tasks_total",
			Help: "Total refresh tasks processed, by trigger and outcome",
		},
		[]string{"trigger", "outcome"}, // trigger: sync|forced|queued, outcome: success|fetch_error|store_error
	)

	RefreshQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refectory_refresh_queue_depth",
			Help: "Dates currently queued for background refresh",
		},
	)

	RefreshInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refectory_refresh_in_flight",
			Help: "Dates currently being fetched (0 or 1 from the worker, plus synchronous refreshes)",
		},
	)

	RefreshDuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refectory_refresh_duplicates_total",
			Help: "Refresh requests dropped because the date was already queued or in flight",
		},
	)

	// Upstream Fetch Metrics
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refectory_upstream_request_duration_seconds",
			Help:    "Duration of upstream provider requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"}, // periods | menu
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refectory_upstream_requests_total",
			Help: "Total upstream provider requests, by endpoint and result",
		},
		[]string{"endpoint", "result"}, // result: success|error|rate_limited
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refectory_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refectory_circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"name", "result"}, // result: success|failure|rejected
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refectory_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refectory_db_query_errors_total",
			Help: "Total DuckDB query errors",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refectory_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refectory_api_request_duration_seconds",
			Help:    "API request duration",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refectory_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
