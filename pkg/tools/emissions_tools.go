package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripcarbon/pkg/alternatives"
	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/cost"
	"github.com/NERVsystems/tripcarbon/pkg/emissions"
	"github.com/NERVsystems/tripcarbon/pkg/trip"
)

func tripArguments() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("origin",
			mcp.Required(),
			mcp.Description("Origin location name, e.g. Salem"),
		),
		mcp.WithString("destination",
			mcp.Required(),
			mcp.Description("Destination location name, e.g. Chennai"),
		),
		mcp.WithArray("modes",
			mcp.Description("Transport modes used: Flight, Train, Car, Bus"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithNumber("travelers",
			mcp.Description("Number of travelers (default 1)"),
		),
		mcp.WithNumber("nights",
			mcp.Description("Nights of lodging (default 0)"),
		),
		mcp.WithString("outbound_date",
			mcp.Description("Outbound date, YYYY-MM-DD"),
		),
		mcp.WithString("return_date",
			mcp.Description("Return date, YYYY-MM-DD, after the outbound date"),
		),
		mcp.WithString("lodging_class",
			mcp.Description("Lodging class: budget, standard or luxury"),
		),
		mcp.WithString("region",
			mcp.Description("Region for factor adjustments (default domestic India)"),
		),
	}
}

// ComputeEmissionsTool returns a tool definition for trip emissions
func ComputeEmissionsTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Compute total, per-mode, accommodation and per-person CO2e (kg) for a trip"),
	}, tripArguments()...)
	opts = append(opts, mcp.WithNumber("distance_km",
		mcp.Description("Trip distance in km; resolved from the location catalog when omitted"),
	))
	return mcp.NewTool("compute_emissions", opts...)
}

// ComputeEmissionsInput is the compute_emissions argument set.
type ComputeEmissionsInput struct {
	trip.Input
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// EmissionsOutput is the compute_emissions result.
type EmissionsOutput struct {
	DistanceKm float64             `json:"distance_km"`
	Emissions  emissions.Result    `json:"emissions"`
	Breakdown  emissions.Breakdown `json:"breakdown"`
}

// HandleComputeEmissions computes the emissions of a trip.
func (r *Registry) HandleComputeEmissions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("compute_emissions", func(ctx context.Context, input ComputeEmissionsInput, logger *slog.Logger) (interface{}, error) {
		t, err := input.Request()
		if err != nil {
			return nil, err
		}

		var warnings []string
		var distance float64
		switch {
		case input.DistanceKm != nil:
			if err := emissions.ValidateDistance(*input.DistanceKm); err != nil {
				return nil, core.NewValidationError(core.ErrOutOfRange, err.Error())
			}
			distance = *input.DistanceKm
		case len(t.Modes) > 0:
			distance, err = r.engine.ResolveDistance(ctx, t.Origin, t.Destination)
			if err != nil {
				warnings = append(warnings, err.Error())
			}
		}

		res := r.engine.ComputeEmissions(ctx, t, distance)
		res.Warnings = append(warnings, res.Warnings...)
		logger.Debug("emissions computed", "total_kg", res.TotalKg, "warnings", len(res.Warnings))

		return EmissionsOutput{
			DistanceKm: distance,
			Emissions:  res,
			Breakdown:  res.Breakdown(),
		}, nil
	})(ctx, req)
}

// EmissionFactorsTool returns a tool definition for the emission factor table
func EmissionFactorsTool() mcp.Tool {
	return mcp.NewTool("emission_factors",
		mcp.WithDescription("List the emission factor table, or the distance-adjusted factor for one mode"),
		mcp.WithString("mode",
			mcp.Description("Mode to evaluate: Flight, Train, Car, Bus or Lodging; omit for the whole table"),
		),
		mcp.WithNumber("distance_km",
			mcp.Description("Trip distance used for distance-sensitive factors"),
		),
		mcp.WithString("region",
			mcp.Description("Region for adjustments (default domestic India)"),
		),
	)
}

// EmissionFactorsInput is the emission_factors argument set.
type EmissionFactorsInput struct {
	Mode       string  `json:"mode,omitempty"`
	DistanceKm float64 `json:"distance_km,omitempty"`
	Region     string  `json:"region,omitempty"`
}

// FactorOutput is the adjusted factor for one mode.
type FactorOutput struct {
	Mode         emissions.Mode   `json:"mode"`
	DistanceKm   float64          `json:"distance_km"`
	Region       emissions.Region `json:"region,omitempty"`
	Factor       float64          `json:"factor"`
	Unit         string           `json:"unit"`
	UsedFallback bool             `json:"used_fallback,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
}

// HandleEmissionFactors describes emission factors.
func (r *Registry) HandleEmissionFactors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("emission_factors", func(ctx context.Context, input EmissionFactorsInput, logger *slog.Logger) (interface{}, error) {
		if strings.TrimSpace(input.Mode) == "" {
			return map[string]interface{}{"factors": emissions.Model{}.Table()}, nil
		}

		mode, err := emissions.ParseMode(input.Mode)
		if err != nil {
			return nil, core.NewError(core.ErrUnsupportedMode, err.Error()).WithGuidance(GuidanceModes)
		}
		if err := emissions.ValidateDistance(input.DistanceKm); err != nil {
			return nil, core.NewValidationError(core.ErrOutOfRange, err.Error())
		}

		region := emissions.Region(strings.TrimSpace(input.Region))
		session := r.engine.Resolver().Session(ctx)
		out := FactorOutput{
			Mode:       mode,
			DistanceKm: input.DistanceKm,
			Region:     region,
			Factor:     session.Factor(mode, input.DistanceKm, region),
			Unit:       "kg CO2e per passenger-km",
		}
		if mode == emissions.Lodging {
			out.Unit = "kg CO2e per guest-night"
		}
		out.UsedFallback = session.UsedFallback()
		out.Warnings = session.Warnings()
		return out, nil
	})(ctx, req)
}

// ComputeAlternativesTool returns a tool definition for ranking alternatives
func ComputeAlternativesTool() mcp.Tool {
	return mcp.NewTool("compute_alternatives",
		mcp.WithDescription("Rank every transport mode for a trip by per-person emissions, with cost, duration and savings against a baseline"),
		mcp.WithString("origin",
			mcp.Required(),
			mcp.Description("Origin location name"),
		),
		mcp.WithString("destination",
			mcp.Required(),
			mcp.Description("Destination location name"),
		),
		mcp.WithNumber("baseline_emissions_kg",
			mcp.Required(),
			mcp.Description("Emissions of the trip as planned, in kg CO2e"),
		),
		mcp.WithNumber("baseline_cost",
			mcp.Description("Cost of the trip as planned; cost differences are zero when omitted"),
		),
		mcp.WithArray("selected_modes",
			mcp.Description("Modes the traveler chose; their options are marked selected"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("modes",
			mcp.Description("Restrict the candidates to these modes"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("service_class",
			mcp.Description("Service class used for costs, e.g. economy, sleeper, volvo"),
		),
		mcp.WithString("region",
			mcp.Description("Region for factor adjustments"),
		),
		mcp.WithNumber("travelers",
			mcp.Description("Scale per-person figures to this many travelers"),
		),
	)
}

// ComputeAlternativesInput is the compute_alternatives argument set.
type ComputeAlternativesInput struct {
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	BaselineKg    float64  `json:"baseline_emissions_kg"`
	BaselineCost  *float64 `json:"baseline_cost,omitempty"`
	SelectedModes []string `json:"selected_modes,omitempty"`
	Modes         []string `json:"modes,omitempty"`
	ServiceClass  string   `json:"service_class,omitempty"`
	Region        string   `json:"region,omitempty"`
	Travelers     int      `json:"travelers,omitempty"`
}

// AlternativesOutput is the compute_alternatives result.
type AlternativesOutput struct {
	alternatives.Result
	BestEmissions *alternatives.Option `json:"best_by_emissions,omitempty"`
	BestCost      *alternatives.Option `json:"best_by_cost,omitempty"`
	Summary       alternatives.Summary `json:"summary"`
}

// HandleComputeAlternatives ranks the transport alternatives for a trip.
func (r *Registry) HandleComputeAlternatives(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("compute_alternatives", func(ctx context.Context, input ComputeAlternativesInput, logger *slog.Logger) (interface{}, error) {
		if err := r.requireLocations(input.Origin, input.Destination); err != nil {
			return nil, err
		}
		if err := core.ValidateRange("baseline_emissions_kg", input.BaselineKg, 0, 0); err != nil {
			return nil, err
		}
		if input.BaselineCost != nil {
			if err := core.ValidateRange("baseline_cost", *input.BaselineCost, 0, 0); err != nil {
				return nil, err
			}
		}
		if err := core.ValidateRange("travelers", float64(input.Travelers), 0, emissions.MaxTravelers); err != nil {
			return nil, err
		}

		selected, err := trip.ParseModes(input.SelectedModes)
		if err != nil {
			return nil, core.NewError(core.ErrUnsupportedMode, err.Error()).WithGuidance(GuidanceModes)
		}
		modes, err := trip.ParseModes(input.Modes)
		if err != nil {
			return nil, core.NewError(core.ErrUnsupportedMode, err.Error()).WithGuidance(GuidanceModes)
		}

		res, err := r.engine.Alternatives(ctx, alternatives.Request{
			Origin:       input.Origin,
			Destination:  input.Destination,
			BaselineKg:   input.BaselineKg,
			BaselineCost: input.BaselineCost,
			Modes:        modes,
			Selected:     selected,
			Region:       emissions.Region(input.Region),
			ServiceClass: input.ServiceClass,
		})
		if err != nil {
			return nil, err
		}
		if input.Travelers > 1 {
			res = res.Scale(input.Travelers)
		}

		out := AlternativesOutput{Result: res, Summary: res.Summarize()}
		if best, ok := res.BestByEmissions(); ok {
			out.BestEmissions = &best
		}
		if best, ok := res.BestByCost(); ok {
			out.BestCost = &best
		}
		logger.Debug("alternatives ranked", "count", len(res.Options))
		return out, nil
	})(ctx, req)
}

// PlanTripTool returns a tool definition for a complete trip assessment
func PlanTripTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Assess a trip end to end: distance, emissions with breakdown, greener alternatives against the trip total, and waypoint route variants"),
	}, tripArguments()...)
	return mcp.NewTool("plan_trip", opts...)
}

// HandlePlanTrip assesses a complete trip.
func (r *Registry) HandlePlanTrip(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("plan_trip", func(ctx context.Context, input trip.Input, logger *slog.Logger) (interface{}, error) {
		t, err := input.Request()
		if err != nil {
			return nil, err
		}
		if len(t.Modes) > 0 {
			if err := r.requireLocations(t.Origin, t.Destination); err != nil {
				return nil, err
			}
		}
		plan, err := r.engine.Plan(ctx, t)
		if err != nil {
			return nil, err
		}
		logger.Info("trip planned", "id", plan.ID, "total_kg", plan.Emissions.TotalKg)
		return plan, nil
	})(ctx, req)
}

// EstimateCostTool returns a tool definition for cost estimates
func EstimateCostTool() mcp.Tool {
	return mcp.NewTool("estimate_cost",
		mcp.WithDescription("Estimate the cost (INR) of a journey by mode, distance, travelers and service class"),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Transport mode: Flight, Train, Car or Bus"),
		),
		mcp.WithNumber("distance_km",
			mcp.Required(),
			mcp.Description("Journey distance in km"),
		),
		mcp.WithNumber("travelers",
			mcp.Description("Number of travelers (default 1)"),
		),
		mcp.WithString("service_class",
			mcp.Description("Service class, e.g. economy, business, sleeper, ac_2tier, volvo"),
		),
	)
}

// EstimateCostInput is the estimate_cost argument set.
type EstimateCostInput struct {
	Mode         string  `json:"mode"`
	DistanceKm   float64 `json:"distance_km"`
	Travelers    int     `json:"travelers,omitempty"`
	ServiceClass string  `json:"service_class,omitempty"`
}

// CostOutput is the estimate_cost result.
type CostOutput struct {
	cost.Breakdown
	Travelers int      `json:"travelers"`
	Classes   []string `json:"available_classes"`
}

// HandleEstimateCost estimates the cost of a journey.
func (r *Registry) HandleEstimateCost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("estimate_cost", func(ctx context.Context, input EstimateCostInput, logger *slog.Logger) (interface{}, error) {
		mode, err := emissions.ParseMode(input.Mode)
		if err != nil || !mode.IsTransport() {
			return nil, core.NewError(core.ErrUnsupportedMode, fmt.Sprintf("unsupported transport mode %q", input.Mode)).
				WithGuidance(GuidanceModes)
		}
		if err := emissions.ValidateDistance(input.DistanceKm); err != nil {
			return nil, core.NewValidationError(core.ErrOutOfRange, err.Error())
		}
		if input.Travelers == 0 {
			input.Travelers = 1
		}
		if err := core.ValidateRange("travelers", float64(input.Travelers), 1, emissions.MaxTravelers); err != nil {
			return nil, err
		}

		return CostOutput{
			Breakdown: cost.Estimate(mode, input.DistanceKm, input.Travelers, input.ServiceClass),
			Travelers: input.Travelers,
			Classes:   cost.Classes(mode),
		}, nil
	})(ctx, req)
}
