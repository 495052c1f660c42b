package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidateCoords checks a WGS84 coordinate in decimal degrees.
func ValidateCoords(lat, lon float64) error {
	if !finite(lat) || math.Abs(lat) > 90 {
		return NewError(ErrInvalidLatitude, fmt.Sprintf("latitude %g is outside [-90, 90]", lat)).
			WithGuidance("Pass latitude in decimal degrees, e.g. 13.08 for Chennai.")
	}
	if !finite(lon) || math.Abs(lon) > 180 {
		return NewError(ErrInvalidLongitude, fmt.Sprintf("longitude %g is outside [-180, 180]", lon)).
			WithGuidance("Pass longitude in decimal degrees, e.g. 80.27 for Chennai.")
	}
	return nil
}

// ValidateRadius accepts radii in (0, maxKm]. A zero maxKm means no cap.
func ValidateRadius(radiusKm, maxKm float64) error {
	if !finite(radiusKm) || radiusKm <= 0 {
		return NewError(ErrInvalidRadius, fmt.Sprintf("radius %g km is not positive", radiusKm))
	}
	if maxKm > 0 && radiusKm > maxKm {
		return NewError(ErrRadiusTooLarge, fmt.Sprintf("radius %g km exceeds the %g km limit", radiusKm, maxKm)).
			WithGuidance(fmt.Sprintf("Search at most %g km around the point.", maxKm))
	}
	return nil
}

// ValidateRange checks that value lies in [min, max]. A zero max disables
// the upper bound.
func ValidateRange(name string, value, min, max float64) error {
	if !finite(value) {
		return NewValidationError(ErrInvalidParameter, name+" must be a finite number")
	}
	switch {
	case max > 0 && (value < min || value > max):
		return NewValidationError(ErrOutOfRange, fmt.Sprintf("%s must be between %g and %g, got %g", name, min, max, value))
	case value < min:
		return NewValidationError(ErrOutOfRange, fmt.Sprintf("%s must be at least %g, got %g", name, min, value))
	}
	return nil
}

// RequireString rejects blank values for a named parameter.
func RequireString(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(ErrEmptyParameter, name+" must not be empty")
	}
	return nil
}

// Area is a circular search region around a coordinate.
type Area struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"radius_km"`
}

// ParseArea reads latitude, longitude and radius from a tool request.
// A missing radius becomes defaultKm.
func ParseArea(req mcp.CallToolRequest, defaultKm, maxKm float64) (Area, error) {
	a := Area{
		Latitude:  mcp.ParseFloat64(req, "latitude", math.NaN()),
		Longitude: mcp.ParseFloat64(req, "longitude", math.NaN()),
		RadiusKm:  mcp.ParseFloat64(req, "radius", defaultKm),
	}
	if err := ValidateCoords(a.Latitude, a.Longitude); err != nil {
		return Area{}, err
	}
	if err := ValidateRadius(a.RadiusKm, maxKm); err != nil {
		return Area{}, err
	}
	return a, nil
}
