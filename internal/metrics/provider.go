// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderCacheResults counts media-resource cache lookups.
	ProviderCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplay_provider_cache_total",
		Help: "Media resource cache lookups by result (hit, miss)",
	}, []string{"result"})

	// ProviderFetchDuration tracks remote media-resource fetch latency.
	ProviderFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamplay_provider_fetch_duration_seconds",
		Help:    "Latency of media resource lookups by provider and result",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"provider", "result"})

	// CircuitBreakerState exposes breaker state (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamplay_circuit_breaker_state",
		Help: "Circuit breaker state by component (0 closed, 1 half-open, 2 open)",
	}, []string{"component"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplay_circuit_breaker_trips_total",
		Help: "Total circuit breaker trips by component and reason",
	}, []string{"component", "reason"})
)

// IncProviderCache records a cache hit or miss.
func IncProviderCache(hit bool) {
	if hit {
		ProviderCacheResults.WithLabelValues("hit").Inc()
		return
	}
	ProviderCacheResults.WithLabelValues("miss").Inc()
}

// ObserveProviderFetch records the duration of a provider lookup.
func ObserveProviderFetch(provider string, success bool, d time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	ProviderFetchDuration.WithLabelValues(provider, result).Observe(d.Seconds())
}

// SetCircuitBreakerState publishes a breaker state transition.
func SetCircuitBreakerState(component, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(component).Set(v)
}

// RecordCircuitBreakerTrip increments the trip counter when a breaker opens.
func RecordCircuitBreakerTrip(component, reason string) {
	circuitBreakerTrips.WithLabelValues(component, reason).Inc()
}
