package tools

import (
	"context"
	"testing"

	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/geo"
)

func TestHandleSuggestLocations(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		query    string
		contains string
		empty    bool
	}{
		{query: "che", contains: "Chennai"},
		{query: "PUR", contains: "Jaipur"},
		{query: "", empty: true},
		{query: "zzz", empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			result, err := r.HandleSuggestLocations(context.Background(), NewToolRequest("suggest_locations", map[string]any{"query": tt.query}))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			requireSuccess(t, result)

			var out struct {
				Suggestions []string `json:"suggestions"`
			}
			decodeResult(t, result, &out)
			if tt.empty {
				if len(out.Suggestions) != 0 {
					t.Errorf("expected no suggestions, got %v", out.Suggestions)
				}
				return
			}
			if len(out.Suggestions) > geo.MaxSuggestions {
				t.Errorf("too many suggestions: %v", out.Suggestions)
			}
			found := false
			for _, s := range out.Suggestions {
				if s == tt.contains {
					found = true
				}
			}
			if !found {
				t.Errorf("expected %s in %v", tt.contains, out.Suggestions)
			}
		})
	}
}

func TestHandleLocationDistance(t *testing.T) {
	r := newTestRegistry()

	result, err := r.HandleLocationDistance(context.Background(), NewToolRequest("location_distance", map[string]any{
		"from": "salem",
		"to":   "Chennai",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	requireSuccess(t, result)

	var out DistanceOutput
	decodeResult(t, result, &out)
	if out.DistanceKm < 275 || out.DistanceKm > 285 {
		t.Errorf("distance %.2f outside 275-285", out.DistanceKm)
	}
	if out.From.Name != "Salem" {
		t.Errorf("expected canonical name Salem, got %s", out.From.Name)
	}
	if out.BearingDeg <= 0 || out.BearingDeg >= 90 {
		t.Errorf("Chennai lies north-east of Salem, got bearing %.1f", out.BearingDeg)
	}

	result, _ = r.HandleLocationDistance(context.Background(), NewToolRequest("location_distance", map[string]any{
		"from": "Salem",
		"to":   "Narnia",
	}))
	requireToolError(t, result)
}

func TestHandleNearbyLocations(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name        string
		args        map[string]any
		expectError core.ErrorCode
		first       string
	}{
		{
			name:  "Around Chennai",
			args:  map[string]any{"latitude": 13.0827, "longitude": 80.2707, "radius": 150},
			first: "Chennai",
		},
		{
			name:        "Invalid latitude",
			args:        map[string]any{"latitude": 95, "longitude": 80},
			expectError: core.ErrInvalidLatitude,
		},
		{
			name:        "Missing coordinates",
			args:        map[string]any{},
			expectError: core.ErrInvalidLatitude,
		},
		{
			name:        "Radius too large",
			args:        map[string]any{"latitude": 13, "longitude": 80, "radius": 5000},
			expectError: core.ErrRadiusTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.HandleNearbyLocations(context.Background(), NewToolRequest("nearby_locations", tt.args))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.expectError != "" {
				requireToolError(t, result)
				if e := errorCode(t, ResultText(result)); e.Code != string(tt.expectError) {
					t.Errorf("expected %s, got %s", tt.expectError, e.Code)
				}
				return
			}

			requireSuccess(t, result)
			var out struct {
				Locations []geo.Neighbor `json:"locations"`
			}
			decodeResult(t, result, &out)
			if len(out.Locations) == 0 || out.Locations[0].Name != tt.first {
				t.Fatalf("expected %s first, got %+v", tt.first, out.Locations)
			}
			for i := 1; i < len(out.Locations); i++ {
				if out.Locations[i].DistanceKm < out.Locations[i-1].DistanceKm {
					t.Errorf("locations not ordered by distance")
				}
			}
		})
	}
}

func TestHandlePopularRoutes(t *testing.T) {
	r := newTestRegistry()

	result, err := r.HandlePopularRoutes(context.Background(), NewToolRequest("popular_routes", nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	requireSuccess(t, result)

	var out struct {
		Routes []PopularRoute `json:"routes"`
	}
	decodeResult(t, result, &out)
	if len(out.Routes) != len(geo.DefaultPopularPairs()) {
		t.Fatalf("expected every popular pair, got %d", len(out.Routes))
	}
	for _, p := range out.Routes {
		if p.DistanceKm <= 0 {
			t.Errorf("%s to %s has no distance", p.Origin, p.Destination)
		}
	}
}
