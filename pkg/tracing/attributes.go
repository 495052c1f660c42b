package tracing

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	AttrTripOrigin      = "trip.origin"
	AttrTripDestination = "trip.destination"
	AttrTripModes       = "trip.modes"
	AttrTripTravelers   = "trip.travelers"
	AttrTripDistanceKm  = "trip.distance_km"
	AttrTripWarnings    = "trip.warnings"
	AttrTripFallback    = "trip.used_fallback"

	AttrProviderName      = "provider.name"
	AttrProviderOperation = "provider.operation"

	AttrCacheType = "cache.type"
	AttrCacheHit  = "cache.hit"
	AttrCacheKey  = "cache.key"

	AttrRateLimitService = "ratelimit.service"
	AttrRateLimitWaitMs  = "ratelimit.wait_ms"

	AttrHTTPMethod       = "http.method"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPPath         = "http.path"
	AttrHTTPSessionID    = "http.session_id"
	AttrHTTPSurface      = "http.surface"
	AttrHTTPRequestID    = "http.request_id"
	AttrHTTPSubject      = "http.subject"
	AttrRetryMaxAttempts = "http.retry.max_attempts"
	AttrRetryAttempts    = "http.retry.attempts"
)

// Tool call outcomes recorded under AttrMCPToolStatus.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Provider operations
const (
	OperationEmissionFactor = "emission_factor"
	OperationRoute          = "route"
)

const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// MCPToolAttributes describes a finished tool call.
func MCPToolAttributes(toolName, status string, elapsed time.Duration, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, elapsed.Milliseconds()),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}

// TripAttributes describes the trip a span evaluates.
func TripAttributes(origin, destination string, modes []string, travelers int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTripOrigin, origin),
		attribute.String(AttrTripDestination, destination),
		attribute.StringSlice(AttrTripModes, modes),
		attribute.Int(AttrTripTravelers, travelers),
	}
}

func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}
