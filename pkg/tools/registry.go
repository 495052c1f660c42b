// Package tools provides the MCP tools over the trip emissions engine.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/tripcarbon/pkg/monitoring"
	"github.com/NERVsystems/tripcarbon/pkg/tracing"
	"github.com/NERVsystems/tripcarbon/pkg/trip"
)

// Registry contains all tool definitions and handlers
type Registry struct {
	logger *slog.Logger
	engine *trip.Engine
	health *monitoring.HealthChecker
}

// NewRegistry creates a new tool registry. A nil engine uses the default
// catalog without a provider; health may be nil.
func NewRegistry(logger *slog.Logger, engine *trip.Engine, health *monitoring.HealthChecker) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = trip.New(nil, trip.WithLogger(logger))
	}
	return &Registry{
		logger: logger,
		engine: engine,
		health: health,
	}
}

// ToolDefinition pairs an MCP tool with its handler.
type ToolDefinition struct {
	Tool    mcp.Tool
	Handler server.ToolHandlerFunc
}

// Name is the tool's MCP name.
func (d ToolDefinition) Name() string {
	return d.Tool.Name
}

// GetToolDefinitions returns every tool in registration order: emissions,
// routes, locations and then service tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{ComputeEmissionsTool(), r.HandleComputeEmissions},
		{EmissionFactorsTool(), r.HandleEmissionFactors},
		{ComputeAlternativesTool(), r.HandleComputeAlternatives},
		{PlanTripTool(), r.HandlePlanTrip},
		{EstimateCostTool(), r.HandleEstimateCost},

		{PredictRouteTool(), r.HandlePredictRoute},
		{CompareRoutesTool(), r.HandleCompareRoutes},
		{RecommendRoutesTool(), r.HandleRecommendRoutes},
		{RouteVariantsTool(), r.HandleRouteVariants},

		{SuggestLocationsTool(), r.HandleSuggestLocations},
		{LocationDistanceTool(), r.HandleLocationDistance},
		{NearbyLocationsTool(), r.HandleNearbyLocations},
		{PopularRoutesTool(), r.HandlePopularRoutes},

		{GetHealthTool(), r.HandleGetHealth},
	}
}

// RegisterTools adds every tool to mcpServer behind instrument.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	defs := r.GetToolDefinitions()
	for _, def := range defs {
		mcpServer.AddTool(def.Tool, r.instrument(def.Name(), def.Handler))
	}
	r.logger.Info("registered tools", "count", len(defs))
}

// resultSize is the encoded size of a result's content, for span attributes.
func resultSize(result *mcp.CallToolResult) int {
	if result == nil || result.Content == nil {
		return 0
	}
	data, err := json.Marshal(result.Content)
	if err != nil {
		return 0
	}
	return len(data)
}

// instrument wraps a tool handler with a span, request metrics and a debug
// log line. Error results count as failures even when err is nil.
func (r *Registry) instrument(toolName string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := tracing.StartSpan(ctx, "mcp.tool."+toolName,
			trace.WithAttributes(attribute.String(tracing.AttrMCPToolName, toolName)))
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, req)
		elapsed := time.Since(start)

		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			tracing.Fail(span, err, err.Error())
		case result != nil && result.IsError:
			status = tracing.StatusError
			tracing.Fail(span, nil, "tool returned an error result")
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			status = tracing.StatusTimeout
		default:
			span.SetStatus(codes.Ok, "")
		}

		size := resultSize(result)
		span.SetAttributes(tracing.MCPToolAttributes(toolName, status, elapsed, size)...)
		monitoring.RecordToolRequest(toolName, elapsed, status == tracing.StatusSuccess)
		r.logger.Debug("tool call", "tool", toolName, "status", status, "duration", elapsed, "result_size", size)

		return result, err
	}
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name()
	}
	return names
}

// RegisterAll registers all tools and prompts with the MCP server.
func (r *Registry) RegisterAll(mcpServer *server.MCPServer) {
	r.RegisterTools(mcpServer)
	r.RegisterPrompts(mcpServer)
}
