package tools

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripcarbon/pkg/alternatives"
	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/emissions"
	"github.com/NERVsystems/tripcarbon/pkg/geo"
)

// Common error guidance messages
const (
	GuidanceUnknownLocation = "Use suggest_locations to find a supported location name."
	GuidanceInvalidTrip     = "Correct the listed problems and try again."
	GuidanceNoAlternatives  = "None of the transport modes could be evaluated for this pair. Check both locations are in the catalog."
	GuidanceModes           = "Supported modes are Flight, Train, Car and Bus."
	GuidanceGeneral         = "Please try again later or modify your request parameters."
)

// ErrorWithGuidance returns a structured error result.
func ErrorWithGuidance(err *core.MCPError) *mcp.CallToolResult {
	return err.ToMCPResult()
}

// unknownLocation builds an error for a name missing from the catalog,
// suggesting close matches when there are any.
func unknownLocation(catalog *geo.Catalog, name string) *core.MCPError {
	e := core.NewError(core.ErrUnknownLocation, fmt.Sprintf("location %q is not in the catalog", name)).
		WithQuery(name).
		WithGuidance(GuidanceUnknownLocation)
	suggestions := catalog.Suggest(name)
	if len(suggestions) == 0 && len([]rune(name)) > 3 {
		suggestions = catalog.Suggest(string([]rune(name)[:3]))
	}
	return e.WithSuggestions(suggestions...)
}

// toMCPError maps engine errors onto the tool error vocabulary.
func toMCPError(err error) *core.MCPError {
	var mcpErr *core.MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var ve emissions.ValidationErrors
	if errors.As(err, &ve) {
		return core.NewError(core.ErrInvalidTrip, "invalid trip").
			WithGuidance(GuidanceInvalidTrip).
			WithSuggestions(ve...)
	}

	switch {
	case errors.Is(err, geo.ErrNotFound):
		return core.NewError(core.ErrUnknownLocation, err.Error()).WithGuidance(GuidanceUnknownLocation)
	case errors.Is(err, alternatives.ErrNoAlternatives):
		return core.NewError(core.ErrNoAlternatives, err.Error()).WithGuidance(GuidanceNoAlternatives)
	}
	return core.NewError(core.ErrInternalError, fmt.Sprintf("Failed to process request: %v", err)).
		WithGuidance(GuidanceGeneral)
}

// GetToolUsageExample returns an example JSON snippet for using a specific tool.
func GetToolUsageExample(toolName string) string {
	examples := map[string]string{
		"compute_emissions": `{
  "origin": "Salem",
  "destination": "Chennai",
  "modes": ["Train", "Bus"],
  "travelers": 2,
  "nights": 3
}`,
		"compute_alternatives": `{
  "origin": "Delhi",
  "destination": "Mumbai",
  "baseline_emissions_kg": 250,
  "selected_modes": ["Flight"]
}`,
		"plan_trip": `{
  "origin": "Delhi",
  "destination": "Mumbai",
  "outbound_date": "2024-03-01",
  "return_date": "2024-03-05",
  "modes": ["Flight"],
  "travelers": 2,
  "nights": 4
}`,
		"predict_route": `{
  "origin": "Salem",
  "destination": "Chennai",
  "mode": "Train"
}`,
		"recommend_routes": `{
  "origin": "Salem",
  "destination": "Chennai",
  "priority": "speed",
  "max_duration_hours": 8
}`,
		"route_variants": `{
  "origin": "Chennai",
  "destination": "Bangalore",
  "max_waypoints": 3,
  "num_variants": 3
}`,
		"estimate_cost": `{
  "mode": "Train",
  "distance_km": 350,
  "travelers": 2,
  "service_class": "ac_3tier"
}`,
		"nearby_locations": `{
  "latitude": 13.0827,
  "longitude": 80.2707,
  "radius": 150
}`,
	}

	if example, exists := examples[toolName]; exists {
		return example
	}

	return `{
  "origin": "Salem",
  "destination": "Chennai"
}`
}
