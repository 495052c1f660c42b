package tools

import (
	"context"
	"log/slog"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/geo"
)

const (
	defaultNearbyRadiusKm = 100.0
	maxNearbyRadiusKm     = 2000.0
	defaultNearbyLimit    = 10
)

// SuggestLocationsTool returns a tool definition for location suggestions
func SuggestLocationsTool() mcp.Tool {
	return mcp.NewTool("suggest_locations",
		mcp.WithDescription("Suggest up to 5 catalog location names containing the given text"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Partial location name, matched case-insensitively"),
		),
	)
}

// SuggestLocationsInput is the suggest_locations argument set.
type SuggestLocationsInput struct {
	Query string `json:"query"`
}

// HandleSuggestLocations suggests location names.
func (r *Registry) HandleSuggestLocations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("suggest_locations", func(ctx context.Context, input SuggestLocationsInput, logger *slog.Logger) (interface{}, error) {
		suggestions := r.engine.Catalog().Suggest(input.Query)
		if suggestions == nil {
			suggestions = []string{}
		}
		return map[string]interface{}{
			"query":       input.Query,
			"suggestions": suggestions,
		}, nil
	})(ctx, req)
}

// LocationDistanceTool returns a tool definition for catalog distances
func LocationDistanceTool() mcp.Tool {
	return mcp.NewTool("location_distance",
		mcp.WithDescription("Great-circle distance in km, initial bearing and midpoint between two catalog locations"),
		mcp.WithString("from",
			mcp.Required(),
			mcp.Description("First location name"),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Second location name"),
		),
	)
}

// LocationDistanceInput is the location_distance argument set.
type LocationDistanceInput struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DistanceOutput is the location_distance result.
type DistanceOutput struct {
	From       geo.Location `json:"from"`
	To         geo.Location `json:"to"`
	DistanceKm float64      `json:"distance_km"`
	BearingDeg float64      `json:"bearing_degrees"`
	Midpoint   struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"midpoint"`
}

// HandleLocationDistance measures the distance between two locations.
func (r *Registry) HandleLocationDistance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("location_distance", func(ctx context.Context, input LocationDistanceInput, logger *slog.Logger) (interface{}, error) {
		if err := r.requireLocations(input.From, input.To); err != nil {
			return nil, err
		}
		catalog := r.engine.Catalog()
		from, _ := catalog.Lookup(input.From)
		to, _ := catalog.Lookup(input.To)

		d, err := r.engine.ResolveDistance(ctx, from.Name, to.Name)
		if err != nil {
			return nil, err
		}

		out := DistanceOutput{
			From:       from,
			To:         to,
			DistanceKm: math.Round(d*100) / 100,
			BearingDeg: math.Round(geo.Bearing(from.Latitude, from.Longitude, to.Latitude, to.Longitude)*10) / 10,
		}
		out.Midpoint.Latitude, out.Midpoint.Longitude = geo.Midpoint(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
		return out, nil
	})(ctx, req)
}

// NearbyLocationsTool returns a tool definition for radius searches
func NearbyLocationsTool() mcp.Tool {
	return mcp.NewTool("nearby_locations",
		mcp.WithDescription("Find catalog locations within a radius (km) of a coordinate, closest first"),
		mcp.WithNumber("latitude",
			mcp.Required(),
			mcp.Description("Latitude in decimal degrees"),
		),
		mcp.WithNumber("longitude",
			mcp.Required(),
			mcp.Description("Longitude in decimal degrees"),
		),
		mcp.WithNumber("radius",
			mcp.Description("Search radius in km (default 100, max 2000)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 10)"),
		),
	)
}

// HandleNearbyLocations finds catalog locations around a coordinate.
func (r *Registry) HandleNearbyLocations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", "nearby_locations")

	area, err := core.ParseArea(req, defaultNearbyRadiusKm, maxNearbyRadiusKm)
	if err != nil {
		logger.Debug("invalid search area", "error", err)
		return ErrorWithGuidance(toMCPError(err)), nil
	}
	limit := int(mcp.ParseFloat64(req, "limit", defaultNearbyLimit))
	if limit <= 0 {
		limit = defaultNearbyLimit
	}

	neighbors := r.engine.Catalog().Nearby(area.Latitude, area.Longitude, area.RadiusKm, limit)
	for i := range neighbors {
		neighbors[i].DistanceKm = math.Round(neighbors[i].DistanceKm*100) / 100
	}
	if neighbors == nil {
		neighbors = []geo.Neighbor{}
	}

	return jsonResult(logger, struct {
		core.Area
		Locations []geo.Neighbor `json:"locations"`
	}{area, neighbors}), nil
}

// PopularRoutesTool returns a tool definition for popular pairs
func PopularRoutesTool() mcp.Tool {
	return mcp.NewTool("popular_routes",
		mcp.WithDescription("List popular origin and destination pairs with great-circle distances"),
	)
}

// PopularRoute is a popular pair with its distance.
type PopularRoute struct {
	geo.Pair
	DistanceKm float64 `json:"distance_km"`
}

// HandlePopularRoutes lists the popular routes.
func (r *Registry) HandlePopularRoutes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("popular_routes", func(ctx context.Context, _ struct{}, logger *slog.Logger) (interface{}, error) {
		catalog := r.engine.Catalog()
		pairs := catalog.PopularPairs()
		out := make([]PopularRoute, 0, len(pairs))
		for _, p := range pairs {
			d, err := catalog.Distance(p.Origin, p.Destination)
			if err != nil {
				logger.Warn("popular pair does not resolve", "origin", p.Origin, "destination", p.Destination)
				continue
			}
			out = append(out, PopularRoute{Pair: p, DistanceKm: math.Round(d*100) / 100})
		}
		return map[string]interface{}{"routes": out}, nil
	})(ctx, req)
}
