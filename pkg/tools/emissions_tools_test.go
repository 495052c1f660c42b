package tools

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/NERVsystems/tripcarbon/pkg/core"
)

func newTestRegistry() *Registry {
	return NewRegistry(nil, nil, nil)
}

func errorCode(t *testing.T, text string) core.MCPError {
	t.Helper()
	var e core.MCPError
	if err := json.Unmarshal([]byte(text), &e); err != nil {
		t.Fatalf("error result is not structured JSON: %q", text)
	}
	return e
}

func TestHandleComputeEmissions(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name        string
		args        map[string]any
		expectError string
		check       func(t *testing.T, out EmissionsOutput)
	}{
		{
			name: "Salem to Chennai by train",
			args: map[string]any{
				"origin":      "Salem",
				"destination": "Chennai",
				"modes":       []string{"train"},
				"travelers":   2,
			},
			check: func(t *testing.T, out EmissionsOutput) {
				if out.DistanceKm < 275 || out.DistanceKm > 285 {
					t.Errorf("distance %.2f outside 275-285", out.DistanceKm)
				}
				if out.Emissions.TotalKg <= 0 {
					t.Errorf("expected positive total, got %v", out.Emissions.TotalKg)
				}
				if math.Abs(out.Emissions.PerPersonKg*2-out.Emissions.TotalKg) > 0.002 {
					t.Errorf("per person %.3f inconsistent with total %.3f", out.Emissions.PerPersonKg, out.Emissions.TotalKg)
				}
				if math.Abs(out.Breakdown.TransportPct-100) > 0.05 {
					t.Errorf("expected all transport, got %+v", out.Breakdown)
				}
			},
		},
		{
			name: "Explicit distance",
			args: map[string]any{
				"origin":      "Delhi",
				"destination": "Mumbai",
				"modes":       []string{"Flight", "Train"},
				"distance_km": 1150,
				"nights":      2,
			},
			check: func(t *testing.T, out EmissionsOutput) {
				if out.DistanceKm != 1150 {
					t.Errorf("expected distance 1150, got %v", out.DistanceKm)
				}
				if len(out.Emissions.PerModeKg) != 2 {
					t.Errorf("expected two modes, got %v", out.Emissions.PerModeKg)
				}
				if out.Emissions.AccommodationKg <= 0 {
					t.Errorf("expected accommodation emissions")
				}
			},
		},
		{
			name: "Accommodation only",
			args: map[string]any{
				"origin":      "Chennai",
				"destination": "Chennai",
				"nights":      3,
			},
			check: func(t *testing.T, out EmissionsOutput) {
				if out.DistanceKm != 0 || len(out.Emissions.PerModeKg) != 0 {
					t.Errorf("expected no transport, got %+v", out)
				}
				if out.Emissions.TotalKg != out.Emissions.AccommodationKg {
					t.Errorf("total %v should equal accommodation %v", out.Emissions.TotalKg, out.Emissions.AccommodationKg)
				}
			},
		},
		{
			name: "Unknown origin degrades to warnings",
			args: map[string]any{
				"origin":      "Atlantis",
				"destination": "Chennai",
				"modes":       []string{"Car"},
			},
			check: func(t *testing.T, out EmissionsOutput) {
				if out.Emissions.TotalKg != 0 {
					t.Errorf("expected zero total, got %v", out.Emissions.TotalKg)
				}
				if len(out.Emissions.Warnings) == 0 {
					t.Errorf("expected warnings for an unknown origin")
				}
			},
		},
		{
			name: "Invalid travelers",
			args: map[string]any{
				"origin":      "Salem",
				"destination": "Chennai",
				"modes":       []string{"Bus"},
				"travelers":   -1,
			},
			expectError: string(core.ErrInvalidTrip),
		},
		{
			name: "Negative distance",
			args: map[string]any{
				"origin":      "Salem",
				"destination": "Chennai",
				"modes":       []string{"Bus"},
				"distance_km": -5,
			},
			expectError: string(core.ErrOutOfRange),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.HandleComputeEmissions(context.Background(), NewToolRequest("compute_emissions", tt.args))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if tt.expectError != "" {
				requireToolError(t, result)
				if e := errorCode(t, ResultText(result)); e.Code != tt.expectError {
					t.Errorf("expected code %s, got %s", tt.expectError, e.Code)
				}
				return
			}

			requireSuccess(t, result)
			var out EmissionsOutput
			decodeResult(t, result, &out)
			tt.check(t, out)
		})
	}
}

func TestHandleEmissionFactors(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	result, err := r.HandleEmissionFactors(ctx, NewToolRequest("emission_factors", nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	requireSuccess(t, result)
	var table struct {
		Factors []struct {
			Mode string  `json:"mode"`
			Base float64 `json:"base"`
		} `json:"factors"`
	}
	decodeResult(t, result, &table)
	if len(table.Factors) != 5 {
		t.Errorf("expected 5 factor rows, got %d", len(table.Factors))
	}

	result, _ = r.HandleEmissionFactors(ctx, NewToolRequest("emission_factors", map[string]any{
		"mode":        "train",
		"distance_km": 500,
	}))
	requireSuccess(t, result)
	var out FactorOutput
	decodeResult(t, result, &out)
	if out.Factor <= 0 || out.Mode != "Train" {
		t.Errorf("unexpected factor output %+v", out)
	}
	if out.UsedFallback {
		t.Errorf("no provider is configured, fallback should not be reported")
	}

	result, _ = r.HandleEmissionFactors(ctx, NewToolRequest("emission_factors", map[string]any{"mode": "rocket"}))
	requireToolError(t, result)
	if e := errorCode(t, ResultText(result)); e.Code != string(core.ErrUnsupportedMode) {
		t.Errorf("expected UNSUPPORTED_MODE, got %s", e.Code)
	}
}

func TestHandleComputeAlternatives(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	result, err := r.HandleComputeAlternatives(ctx, NewToolRequest("compute_alternatives", map[string]any{
		"origin":                "Delhi",
		"destination":           "Mumbai",
		"baseline_emissions_kg": 250,
		"selected_modes":        []string{"Flight"},
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	requireSuccess(t, result)

	var out AlternativesOutput
	decodeResult(t, result, &out)
	if len(out.Options) != 4 {
		t.Fatalf("expected one option per mode, got %d", len(out.Options))
	}
	for i := 1; i < len(out.Options); i++ {
		if out.Options[i].EmissionsKg < out.Options[i-1].EmissionsKg {
			t.Errorf("options not sorted by emissions at %d", i)
		}
	}
	for _, o := range out.Options {
		if math.Abs(250-o.EmissionsKg-o.EmissionsSavingsKg) > 0.001 {
			t.Errorf("%s savings %.3f inconsistent", o.Mode, o.EmissionsSavingsKg)
		}
		if o.Selected != (o.Mode == "Flight") {
			t.Errorf("%s selected=%v", o.Mode, o.Selected)
		}
		if o.CostDifference != 0 {
			t.Errorf("cost difference without a baseline cost should be 0, got %v", o.CostDifference)
		}
	}
	if out.BestEmissions == nil || out.BestEmissions.Mode != out.Options[0].Mode {
		t.Errorf("best_by_emissions should be the first option")
	}
	if out.Summary.Count != 4 {
		t.Errorf("summary count %d", out.Summary.Count)
	}
}

func TestHandleComputeAlternativesErrors(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name string
		args map[string]any
		code core.ErrorCode
	}{
		{
			name: "Misspelled origin",
			args: map[string]any{"origin": "Chenai", "destination": "Salem", "baseline_emissions_kg": 10},
			code: core.ErrUnknownLocation,
		},
		{
			name: "Negative baseline",
			args: map[string]any{"origin": "Chennai", "destination": "Salem", "baseline_emissions_kg": -1},
			code: core.ErrOutOfRange,
		},
		{
			name: "Bad selected mode",
			args: map[string]any{"origin": "Chennai", "destination": "Salem", "selected_modes": []string{"boat"}},
			code: core.ErrUnsupportedMode,
		},
		{
			name: "Missing destination",
			args: map[string]any{"origin": "Chennai"},
			code: core.ErrEmptyParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.HandleComputeAlternatives(context.Background(), NewToolRequest("compute_alternatives", tt.args))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			requireToolError(t, result)
			e := errorCode(t, ResultText(result))
			if e.Code != string(tt.code) {
				t.Errorf("expected %s, got %s", tt.code, e.Code)
			}
			if tt.code == core.ErrUnknownLocation && len(e.Suggestions) == 0 {
				t.Errorf("expected suggestions for a misspelled location")
			}
		})
	}
}

func TestHandlePlanTrip(t *testing.T) {
	r := newTestRegistry()

	result, err := r.HandlePlanTrip(context.Background(), NewToolRequest("plan_trip", map[string]any{
		"origin":        "Delhi",
		"destination":   "Mumbai",
		"outbound_date": "2024-03-01",
		"return_date":   "2024-03-05",
		"modes":         []string{"Flight"},
		"travelers":     2,
		"nights":        4,
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	requireSuccess(t, result)

	var plan struct {
		ID           string  `json:"id"`
		DistanceKm   float64 `json:"distance_km"`
		Alternatives struct {
			Options []json.RawMessage `json:"alternatives"`
		} `json:"alternatives"`
		Variants []json.RawMessage `json:"route_variants"`
	}
	decodeResult(t, result, &plan)
	if len(plan.ID) != 26 {
		t.Errorf("expected a ULID id, got %q", plan.ID)
	}
	if plan.DistanceKm < 1145 || plan.DistanceKm > 1155 {
		t.Errorf("Delhi to Mumbai distance %.2f outside 1145-1155", plan.DistanceKm)
	}
	if len(plan.Alternatives.Options) == 0 {
		t.Errorf("expected alternatives in the plan")
	}
	if len(plan.Variants) == 0 {
		t.Errorf("expected route variants in the plan")
	}

	result, _ = r.HandlePlanTrip(context.Background(), NewToolRequest("plan_trip", map[string]any{
		"origin":        "Delhi",
		"destination":   "Mumbai",
		"outbound_date": "2024-03-05",
		"return_date":   "2024-03-01",
		"modes":         []string{"Flight"},
	}))
	requireToolError(t, result)
}

func TestHandleEstimateCost(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name        string
		args        map[string]any
		expectError bool
		total       float64
	}{
		{
			name:  "Standard train for two",
			args:  map[string]any{"mode": "Train", "distance_km": 350, "travelers": 2},
			total: 940,
		},
		{
			name:  "Sleeper class",
			args:  map[string]any{"mode": "train", "distance_km": 100, "service_class": "sleeper"},
			total: 130,
		},
		{
			name:        "Lodging is not a transport mode",
			args:        map[string]any{"mode": "hotel", "distance_km": 100},
			expectError: true,
		},
		{
			name:        "Too many travelers",
			args:        map[string]any{"mode": "Car", "distance_km": 100, "travelers": 1000},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.HandleEstimateCost(context.Background(), NewToolRequest("estimate_cost", tt.args))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.expectError {
				requireToolError(t, result)
				return
			}
			requireSuccess(t, result)
			var out CostOutput
			decodeResult(t, result, &out)
			if math.Abs(out.Total-tt.total) > 0.01 {
				t.Errorf("expected total %.2f, got %.2f", tt.total, out.Total)
			}
			if len(out.Classes) == 0 {
				t.Errorf("expected available classes")
			}
		})
	}
}
