// Package geo provides the location catalog and the great-circle geometry
// the trip engine uses to resolve distances between named places.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for all distance calculations.
const EarthRadiusKm = 6371.0

// Location is a named place with coordinates in decimal degrees.
type Location struct {
	Name      string  `json:"name" yaml:"name"`
	Region    string  `json:"region" yaml:"region"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Validate reports whether the location can be stored in a catalog.
func (l Location) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("location name must not be empty")
	}
	return ValidateCoords(l.Latitude, l.Longitude)
}

// ValidateCoords checks latitude and longitude ranges.
func ValidateCoords(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %f", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %f", lon)
	}
	return nil
}

// GreatCircleKm returns the great-circle distance between two coordinates in kilometers.
func GreatCircleKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// DistanceTo returns the great-circle distance to another location.
func (l Location) DistanceTo(other Location) float64 {
	return GreatCircleKm(l.Latitude, l.Longitude, other.Latitude, other.Longitude)
}

// Bearing returns the initial bearing from point 1 to point 2 in degrees (0-360).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)

	lonDiff := p2.Lng.Radians() - p1.Lng.Radians()
	y := math.Sin(lonDiff) * math.Cos(p2.Lat.Radians())
	x := math.Cos(p1.Lat.Radians())*math.Sin(p2.Lat.Radians()) -
		math.Sin(p1.Lat.Radians())*math.Cos(p2.Lat.Radians())*math.Cos(lonDiff)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// Midpoint returns the point halfway along the great circle between two coordinates.
func Midpoint(lat1, lon1, lat2, lon2 float64) (float64, float64) {
	a := s2.PointFromLatLng(s2.LatLngFromDegrees(lat1, lon1))
	b := s2.PointFromLatLng(s2.LatLngFromDegrees(lat2, lon2))
	mid := s2.LatLngFromPoint(s2.Interpolate(0.5, a, b))
	return mid.Lat.Degrees(), mid.Lng.Degrees()
}

// BoundingBox is an axis-aligned latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoxAround returns the smallest box containing both locations.
func BoxAround(a, b Location) BoundingBox {
	return BoundingBox{
		MinLat: math.Min(a.Latitude, b.Latitude),
		MinLon: math.Min(a.Longitude, b.Longitude),
		MaxLat: math.Max(a.Latitude, b.Latitude),
		MaxLon: math.Max(a.Longitude, b.Longitude),
	}
}

// Expand grows the box on every side by fraction of its span on that axis.
func (b BoundingBox) Expand(fraction float64) BoundingBox {
	latPad := (b.MaxLat - b.MinLat) * fraction
	lonPad := (b.MaxLon - b.MinLon) * fraction
	return BoundingBox{
		MinLat: b.MinLat - latPad,
		MinLon: b.MinLon - lonPad,
		MaxLat: b.MaxLat + latPad,
		MaxLon: b.MaxLon + lonPad,
	}
}

// Contains reports whether the coordinate lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}
