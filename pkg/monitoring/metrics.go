// Package monitoring exposes Prometheus metrics and health endpoints for the
// trip emissions service.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServiceName is the metric namespace and the service reported by /health.
const ServiceName = "tripcarbon"

// Computation kinds
const (
	KindEmissions    = "emissions"
	KindAlternatives = "alternatives"
	KindVariants     = "variants"
	KindPlan         = "plan"
)

// Computation outcomes
const (
	OutcomeOK       = "ok"
	OutcomeWarnings = "warnings"
	OutcomeFailed   = "failed"
)

func counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ServiceName, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func gauge(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ServiceName, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func histogram(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ServiceName, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

var (
	toolBuckets     = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	providerBuckets = prometheus.ExponentialBuckets(0.05, 2, 10)
	waitBuckets     = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

var (
	ToolRequestsTotal   = counter("tool", "requests_total", "MCP tool calls by tool and status.", "tool", "status")
	ToolRequestDuration = histogram("tool", "request_duration_seconds", "MCP tool call latency.", toolBuckets, "tool")

	ProviderRequestsTotal   = counter("provider", "requests_total", "Requests to the external data provider.", "provider", "operation", "status")
	ProviderRequestDuration = histogram("provider", "request_duration_seconds", "External data provider latency.", providerBuckets, "provider", "operation")

	// ProviderFallbacks counts lookups answered by local heuristics instead.
	ProviderFallbacks = counter("provider", "fallbacks_total", "Provider lookups answered locally.", "operation", "reason")

	ComputationsTotal = counter("", "computations_total", "Engine computations by kind and outcome.", "kind", "outcome")

	RateLimitExceeded = counter("rate_limit", "exceeded_total", "Requests refused or delayed by a rate limiter.", "service")
	RateLimitWaitTime = histogram("rate_limit", "wait_duration_seconds", "Time spent waiting for a rate limiter.", waitBuckets, "service")

	CacheHits   = counter("cache", "hits_total", "Cache hits by backend.", "cache_type")
	CacheMisses = counter("cache", "misses_total", "Cache misses by backend.", "cache_type")
	CacheSize   = gauge("cache", "size", "Live entries by backend.", "cache_type")

	ActiveConnections = gauge("", "active_connections", "Open client connections.", "transport", "type")
	ErrorsTotal       = counter("", "errors_total", "Errors by component and type.", "component", "error_type")
	SystemInfo        = gauge("", "system_info", "Build information; always 1.", "version", "go_version", "build_commit", "build_date")

	GoRoutines  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: ServiceName, Name: "goroutines", Help: "Goroutines at the last sample."})
	MemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{Namespace: ServiceName, Name: "memory_usage_bytes", Help: "Heap bytes allocated at the last sample."})
	GCRuns      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: ServiceName, Name: "gc_cycles", Help: "Completed GC cycles at the last sample."})
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordToolRequest counts one MCP tool call and observes its latency.
func RecordToolRequest(tool string, duration time.Duration, success bool) {
	ToolRequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	ToolRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordProviderRequest counts one request to the external data provider.
func RecordProviderRequest(provider, operation string, duration time.Duration, success bool) {
	ProviderRequestsTotal.WithLabelValues(provider, operation, statusLabel(success)).Inc()
	ProviderRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

func RecordProviderFallback(operation, reason string) {
	ProviderFallbacks.WithLabelValues(operation, reason).Inc()
}

func RecordComputation(kind, outcome string) {
	ComputationsTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

func RecordRateLimitExceeded(service string) {
	RateLimitExceeded.WithLabelValues(service).Inc()
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func UpdateActiveConnections(transport, connType string, count int) {
	ActiveConnections.WithLabelValues(transport, connType).Set(float64(count))
}
