// Package provider fetches emission factors and routes from an optional
// external data service. Every failure is recoverable: callers fall back to
// the local heuristics through a Resolver.
package provider

import (
	"context"
	"errors"

	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/emissions"
)

var (
	// ErrUnavailable reports a provider that is not configured or not reachable.
	ErrUnavailable = core.NewError(core.ErrServiceUnavailable, "external data provider unavailable")
	// ErrUnauthorized reports rejected credentials. It is never retried.
	ErrUnauthorized = core.NewError(core.ErrUnauthorized, "external data provider rejected the API key")
	// ErrInvalidResponse reports a response body that could not be used.
	ErrInvalidResponse = core.NewError(core.ErrParseError, "external data provider returned an unusable response")
)

// RouteInfo is a measured route for one mode.
type RouteInfo struct {
	DistanceKm    float64  `json:"distance_km"`
	DurationHours float64  `json:"duration_hours"`
	Path          []string `json:"path,omitempty"`
}

// Provider is an external source of emission factors and routes.
type Provider interface {
	FetchEmissionFactor(ctx context.Context, mode emissions.Mode, distanceKm float64, region emissions.Region) (float64, error)
	FetchRoute(ctx context.Context, origin, destination string, mode emissions.Mode) (RouteInfo, error)
}

// Reason classifies a provider error for fallback metrics.
func Reason(err error) string {
	var mcpErr *core.MCPError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &mcpErr):
		return mcpErr.Code
	}
	return "error"
}
