package tools

import (
	"context"
	"testing"

	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/route"
)

func TestHandlePredictRoute(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name        string
		args        map[string]any
		expectError core.ErrorCode
		routes      int
	}{
		{
			name:   "Single mode",
			args:   map[string]any{"origin": "Salem", "destination": "Chennai", "mode": "train"},
			routes: 1,
		},
		{
			name:   "Every mode",
			args:   map[string]any{"origin": "Salem", "destination": "Chennai"},
			routes: 4,
		},
		{
			name:        "Unknown destination",
			args:        map[string]any{"origin": "Salem", "destination": "Gotham"},
			expectError: core.ErrUnknownLocation,
		},
		{
			name:        "Unsupported mode",
			args:        map[string]any{"origin": "Salem", "destination": "Chennai", "mode": "teleport"},
			expectError: core.ErrUnsupportedMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.HandlePredictRoute(context.Background(), NewToolRequest("predict_route", tt.args))
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
			var out RoutesOutput
			decodeResult(t, result, &out)
			if len(out.Routes) != tt.routes {
				t.Fatalf("expected %d routes, got %d", tt.routes, len(out.Routes))
			}
			for _, p := range out.Routes {
				if !p.Resolved || p.DistanceKm <= 0 || p.DurationHours < 0.5 {
					t.Errorf("implausible prediction %+v", p)
				}
			}
		})
	}
}

func TestHandleCompareRoutes(t *testing.T) {
	r := newTestRegistry()

	result, err := r.HandleCompareRoutes(context.Background(), NewToolRequest("compare_routes", map[string]any{
		"origin":      "Delhi",
		"destination": "Mumbai",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	requireSuccess(t, result)

	var out struct {
		Routes  []route.Prediction `json:"routes"`
		Fastest string             `json:"fastest"`
	}
	decodeResult(t, result, &out)
	if len(out.Routes) != 4 {
		t.Fatalf("expected 4 routes, got %d", len(out.Routes))
	}
	for i := 1; i < len(out.Routes); i++ {
		if out.Routes[i].DurationHours < out.Routes[i-1].DurationHours {
			t.Errorf("routes not ordered by duration at %d", i)
		}
	}
	if out.Fastest != "Flight" {
		t.Errorf("expected Flight to be fastest over 1150 km, got %s", out.Fastest)
	}
}

func TestHandleRecommendRoutes(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	result, _ := r.HandleRecommendRoutes(ctx, NewToolRequest("recommend_routes", map[string]any{
		"origin":      "Salem",
		"destination": "Chennai",
		"priority":    "distance",
	}))
	requireSuccess(t, result)
	var out struct {
		Recommendations []route.Prediction `json:"recommendations"`
	}
	decodeResult(t, result, &out)
	if len(out.Recommendations) != 4 {
		t.Fatalf("expected 4 recommendations, got %d", len(out.Recommendations))
	}
	if out.Recommendations[0].Mode != "Flight" {
		t.Errorf("shortest distance should be the flight, got %s", out.Recommendations[0].Mode)
	}

	result, _ = r.HandleRecommendRoutes(ctx, NewToolRequest("recommend_routes", map[string]any{
		"origin":             "Salem",
		"destination":        "Chennai",
		"max_duration_hours": 4,
	}))
	requireSuccess(t, result)
	out.Recommendations = nil
	decodeResult(t, result, &out)
	for _, p := range out.Recommendations {
		if p.DurationHours > 4 {
			t.Errorf("%s takes %.2f h, above the limit", p.Mode, p.DurationHours)
		}
	}

	result, _ = r.HandleRecommendRoutes(ctx, NewToolRequest("recommend_routes", map[string]any{
		"origin":             "Salem",
		"destination":        "Chennai",
		"max_duration_hours": -1,
	}))
	requireToolError(t, result)
}

func TestHandleRouteVariants(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	result, err := r.HandleRouteVariants(ctx, NewToolRequest("route_variants", map[string]any{
		"origin":      "Salem",
		"destination": "Chennai",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	requireSuccess(t, result)

	var out VariantsOutput
	decodeResult(t, result, &out)
	if len(out.Variants) == 0 || len(out.Variants) > 3 {
		t.Fatalf("expected 1-3 variants, got %d", len(out.Variants))
	}
	if out.Shortest == nil {
		t.Fatal("expected a shortest variant")
	}
	for _, v := range out.Variants {
		if v.DistanceKm < out.Shortest.DistanceKm {
			t.Errorf("variant %s is shorter than the reported shortest", v.ID)
		}
	}

	result, _ = r.HandleRouteVariants(ctx, NewToolRequest("route_variants", map[string]any{
		"origin":       "Salem",
		"destination":  "Chennai",
		"num_variants": 7,
	}))
	requireToolError(t, result)
	if e := errorCode(t, ResultText(result)); e.Code != string(core.ErrOutOfRange) {
		t.Errorf("expected OUT_OF_RANGE, got %s", e.Code)
	}
}
