package tools

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/emissions"
	"github.com/NERVsystems/tripcarbon/pkg/route"
	"github.com/NERVsystems/tripcarbon/pkg/trip"
	"github.com/NERVsystems/tripcarbon/pkg/waypoints"
)

const maxVariants = 6

func endpointArguments() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("origin",
			mcp.Required(),
			mcp.Description("Origin location name"),
		),
		mcp.WithString("destination",
			mcp.Required(),
			mcp.Description("Destination location name"),
		),
	}
}

// PredictRouteTool returns a tool definition for route prediction
func PredictRouteTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Predict road/rail/air distance, duration, stops and average speed between two locations"),
	}, endpointArguments()...)
	opts = append(opts, mcp.WithString("mode",
		mcp.Description("Transport mode: Flight, Train, Car or Bus; omit for every mode"),
	))
	return mcp.NewTool("predict_route", opts...)
}

// PredictRouteInput is the predict_route argument set.
type PredictRouteInput struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Mode        string `json:"mode,omitempty"`
}

// RoutesOutput lists predictions between two locations.
type RoutesOutput struct {
	Origin      string             `json:"origin"`
	Destination string             `json:"destination"`
	Routes      []route.Prediction `json:"routes"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// HandlePredictRoute predicts the route for one or all modes.
func (r *Registry) HandlePredictRoute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("predict_route", func(ctx context.Context, input PredictRouteInput, logger *slog.Logger) (interface{}, error) {
		if err := r.requireLocations(input.Origin, input.Destination); err != nil {
			return nil, err
		}

		var modes []emissions.Mode
		if strings.TrimSpace(input.Mode) != "" {
			m, err := trip.ParseModes([]string{input.Mode})
			if err != nil {
				return nil, core.NewError(core.ErrUnsupportedMode, err.Error()).WithGuidance(GuidanceModes)
			}
			modes = m
		}

		preds, warnings := r.engine.Routes(ctx, input.Origin, input.Destination, modes...)
		return RoutesOutput{
			Origin:      input.Origin,
			Destination: input.Destination,
			Routes:      preds,
			Warnings:    warnings,
		}, nil
	})(ctx, req)
}

// CompareRoutesTool returns a tool definition for comparing modes
func CompareRoutesTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Compare transport modes between two locations, ordered fastest first"),
	}, endpointArguments()...)
	opts = append(opts, mcp.WithArray("modes",
		mcp.Description("Modes to compare; omit for every mode"),
		mcp.Items(map[string]any{"type": "string"}),
	))
	return mcp.NewTool("compare_routes", opts...)
}

// CompareRoutesInput is the compare_routes argument set.
type CompareRoutesInput struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Modes       []string `json:"modes,omitempty"`
}

// HandleCompareRoutes compares modes between two locations.
func (r *Registry) HandleCompareRoutes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("compare_routes", func(ctx context.Context, input CompareRoutesInput, logger *slog.Logger) (interface{}, error) {
		if err := r.requireLocations(input.Origin, input.Destination); err != nil {
			return nil, err
		}
		modes, err := trip.ParseModes(input.Modes)
		if err != nil {
			return nil, core.NewError(core.ErrUnsupportedMode, err.Error()).WithGuidance(GuidanceModes)
		}

		routes := r.engine.Predictor().Compare(input.Origin, input.Destination, modes...)
		out := map[string]interface{}{
			"origin":      input.Origin,
			"destination": input.Destination,
			"routes":      routes,
		}
		if len(routes) > 0 {
			out["fastest"] = routes[0].Mode
		}
		return out, nil
	})(ctx, req)
}

// RecommendRoutesTool returns a tool definition for route recommendations
func RecommendRoutesTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Recommend transport modes between two locations ordered by a priority and filtered by limits"),
	}, endpointArguments()...)
	opts = append(opts,
		mcp.WithString("priority",
			mcp.Description("Ordering: speed, distance or comfort (default speed)"),
			mcp.Enum(string(route.PrioritySpeed), string(route.PriorityDistance), string(route.PriorityComfort)),
		),
		mcp.WithNumber("max_duration_hours",
			mcp.Description("Drop routes longer than this many hours"),
		),
		mcp.WithNumber("max_distance_km",
			mcp.Description("Drop routes longer than this many km"),
		),
	)
	return mcp.NewTool("recommend_routes", opts...)
}

// RecommendRoutesInput is the recommend_routes argument set.
type RecommendRoutesInput struct {
	Origin           string  `json:"origin"`
	Destination      string  `json:"destination"`
	Priority         string  `json:"priority,omitempty"`
	MaxDurationHours float64 `json:"max_duration_hours,omitempty"`
	MaxDistanceKm    float64 `json:"max_distance_km,omitempty"`
}

// HandleRecommendRoutes recommends modes by preference.
func (r *Registry) HandleRecommendRoutes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("recommend_routes", func(ctx context.Context, input RecommendRoutesInput, logger *slog.Logger) (interface{}, error) {
		if err := r.requireLocations(input.Origin, input.Destination); err != nil {
			return nil, err
		}
		if err := core.ValidateRange("max_duration_hours", input.MaxDurationHours, 0, 0); err != nil {
			return nil, err
		}
		if err := core.ValidateRange("max_distance_km", input.MaxDistanceKm, 0, emissions.MaxDistanceKm); err != nil {
			return nil, err
		}

		prefs := route.Preferences{
			Priority:         route.ParsePriority(input.Priority),
			MaxDurationHours: input.MaxDurationHours,
			MaxDistanceKm:    input.MaxDistanceKm,
		}
		recs := r.engine.Predictor().Recommend(input.Origin, input.Destination, prefs)
		return map[string]interface{}{
			"origin":          input.Origin,
			"destination":     input.Destination,
			"preferences":     prefs,
			"recommendations": recs,
		}, nil
	})(ctx, req)
}

// RouteVariantsTool returns a tool definition for waypoint variants
func RouteVariantsTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Generate named waypoint variants between two locations with total distance and shortcut flags"),
	}, endpointArguments()...)
	opts = append(opts,
		mcp.WithNumber("max_waypoints",
			mcp.Description("Intermediate towns per variant (default 3)"),
		),
		mcp.WithNumber("num_variants",
			mcp.Description("Variants to return, at most 6 (default 3)"),
		),
	)
	return mcp.NewTool("route_variants", opts...)
}

// RouteVariantsInput is the route_variants argument set.
type RouteVariantsInput struct {
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	MaxWaypoints int    `json:"max_waypoints,omitempty"`
	NumVariants  int    `json:"num_variants,omitempty"`
}

// VariantsOutput is the route_variants result.
type VariantsOutput struct {
	Origin      string              `json:"origin"`
	Destination string              `json:"destination"`
	Variants    []waypoints.Variant `json:"variants"`
	Shortest    *waypoints.Variant  `json:"shortest,omitempty"`
}

// HandleRouteVariants generates waypoint variants.
func (r *Registry) HandleRouteVariants(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("route_variants", func(ctx context.Context, input RouteVariantsInput, logger *slog.Logger) (interface{}, error) {
		if err := r.requireLocations(input.Origin, input.Destination); err != nil {
			return nil, err
		}
		if err := core.ValidateRange("max_waypoints", float64(input.MaxWaypoints), 0, 10); err != nil {
			return nil, err
		}
		if err := core.ValidateRange("num_variants", float64(input.NumVariants), 0, maxVariants); err != nil {
			return nil, err
		}

		variants, err := r.engine.Variants(ctx, input.Origin, input.Destination, input.MaxWaypoints, input.NumVariants)
		if err != nil {
			return nil, err
		}
		out := VariantsOutput{
			Origin:      input.Origin,
			Destination: input.Destination,
			Variants:    variants,
		}
		for i, v := range variants {
			if out.Shortest == nil || v.DistanceKm < out.Shortest.DistanceKm {
				out.Shortest = &variants[i]
			}
		}
		return out, nil
	})(ctx, req)
}
