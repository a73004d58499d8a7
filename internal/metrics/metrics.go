// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

// Package metrics provides Prometheus metrics for the telemetry layer.
//
// Metrics are registered via promauto at package load and exposed by the
// ops server at /metrics. Instrumented concerns:
//   - Vendor fetch latency and outcomes (per parking system / traffic platform)
//   - Credential cache efficiency and refresh outcomes
//   - Rate limiting and retry activity
//   - Circuit breaker state transitions
//   - Device staleness sweeps
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcome label values used with TelemetryFetchTotal.
const (
	OutcomeSuccess = "success"
	OutcomeNoData  = "no_data"
	OutcomeError   = "error"
)

var (
	// Vendor fetch metrics

	TelemetryFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telemetry_fetch_duration_seconds",
			Help:    "Duration of vendor telemetry fetches in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"vendor"},
	)

	TelemetryFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_fetch_total",
			Help: "Total vendor telemetry fetches by outcome",
		},
		[]string{"vendor", "outcome"},
	)

	// Credential cache metrics

	CredentialCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_cache_hits_total",
			Help: "Credential cache hits (unexpired entry served without refresh)",
		},
		[]string{"key"},
	)

	CredentialCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_cache_misses_total",
			Help: "Credential cache misses (absent or expired entry)",
		},
		[]string{"key"},
	)

	CredentialRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_refresh_total",
			Help: "Credential refresh executions by outcome",
		},
		[]string{"key", "outcome"},
	)

	// Retry and rate limit metrics

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "HTTP 429 responses received from vendor APIs",
		},
		[]string{"vendor"},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Retry attempts performed after retryable failures",
		},
		[]string{"operation"},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through circuit breakers by result",
		},
		[]string{"name", "result"},
	)

	// Staleness sweep metrics

	StalenessSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "staleness_sweep_duration_seconds",
			Help:    "Duration of device staleness sweeps in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DevicesOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "devices_online",
			Help: "Traffic devices currently considered online",
		},
	)

	DevicesOffline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "devices_offline",
			Help: "Traffic devices currently considered offline",
		},
	)

	DevicesNewlyOffline = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devices_newly_offline_total",
			Help: "Devices flipped offline by staleness sweeps",
		},
	)
)

// ObserveFetch records the duration and outcome of a single vendor fetch.
func ObserveFetch(vendor, outcome string, start time.Time) {
	TelemetryFetchDuration.WithLabelValues(vendor).Observe(time.Since(start).Seconds())
	TelemetryFetchTotal.WithLabelValues(vendor, outcome).Inc()
}
