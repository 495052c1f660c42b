package core

import (
	"errors"
	"math"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func codeOf(err error) ErrorCode {
	var e *MCPError
	if errors.As(err, &e) {
		return ErrorCode(e.Code)
	}
	return ""
}

func TestValidateCoords(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     ErrorCode
	}{
		{"Chennai", 13.0827, 80.2707, ""},
		{"poles", -90, 180, ""},
		{"lat too high", 90.1, 0, ErrInvalidLatitude},
		{"lon too low", 0, -180.5, ErrInvalidLongitude},
		{"nan lat", math.NaN(), 0, ErrInvalidLatitude},
		{"nan lon", 0, math.NaN(), ErrInvalidLongitude},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := codeOf(ValidateCoords(tt.lat, tt.lon)); got != tt.want {
				t.Errorf("ValidateCoords(%v, %v) = %q, want %q", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestValidateRadius(t *testing.T) {
	if err := ValidateRadius(100, 2000); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	if got := codeOf(ValidateRadius(0, 2000)); got != ErrInvalidRadius {
		t.Errorf("zero radius gave %q", got)
	}
	if got := codeOf(ValidateRadius(2500, 2000)); got != ErrRadiusTooLarge {
		t.Errorf("large radius gave %q", got)
	}
	if err := ValidateRadius(1e6, 0); err != nil {
		t.Errorf("a zero max should not bound the radius: %v", err)
	}
}

func TestValidateRange(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		min, max float64
		want     ErrorCode
	}{
		{"inside", 5, 0, 10, ""},
		{"at max", 10, 0, 10, ""},
		{"below", -1, 0, 10, ErrOutOfRange},
		{"above", 11, 0, 10, ErrOutOfRange},
		{"unbounded", 1e9, 0, 0, ""},
		{"infinite", math.Inf(1), 0, 0, ErrInvalidParameter},
		{"nan", math.NaN(), 0, 10, ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := codeOf(ValidateRange("x", tt.value, tt.min, tt.max)); got != tt.want {
				t.Errorf("ValidateRange(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestRequireString(t *testing.T) {
	if err := RequireString("origin", "Delhi"); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	if got := codeOf(RequireString("origin", "   ")); got != ErrEmptyParameter {
		t.Errorf("blank value gave %q", got)
	}
}

func TestParseArea(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"latitude": 19.07, "longitude": 72.87}

	area, err := ParseArea(req, 100, 2000)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if area != (Area{Latitude: 19.07, Longitude: 72.87, RadiusKm: 100}) {
		t.Errorf("got %+v", area)
	}

	req.Params.Arguments = map[string]any{"longitude": 72.87}
	if _, err := ParseArea(req, 100, 2000); codeOf(err) != ErrInvalidLatitude {
		t.Errorf("missing latitude gave %v", err)
	}

	req.Params.Arguments = map[string]any{"latitude": 19.07, "longitude": 72.87, "radius": 5000}
	if _, err := ParseArea(req, 100, 2000); codeOf(err) != ErrRadiusTooLarge {
		t.Errorf("oversized radius gave %v", err)
	}
}
