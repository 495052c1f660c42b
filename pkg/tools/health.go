package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripcarbon/pkg/monitoring"
	"github.com/NERVsystems/tripcarbon/pkg/version"
)

// HealthOutput is the get_health result.
type HealthOutput struct {
	Status    string                    `json:"status"`
	Version   map[string]string         `json:"version"`
	Provider  bool                      `json:"provider_configured"`
	Locations int                       `json:"catalog_locations"`
	Service   *monitoring.ServiceHealth `json:"service,omitempty"`
}

// GetHealthTool returns a tool definition for service health
func GetHealthTool() mcp.Tool {
	return mcp.NewTool("get_health",
		mcp.WithDescription("Get service health, dependency status and version information"),
	)
}

// HandleGetHealth reports service health.
func (r *Registry) HandleGetHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", "get_health")

	out := HealthOutput{
		Status:    "healthy",
		Version:   version.Info(),
		Provider:  r.engine.Resolver().HasProvider(),
		Locations: r.engine.Catalog().Len(),
	}
	if r.health != nil {
		h := r.health.GetHealth()
		out.Status = h.Status
		out.Service = &h
	}
	return jsonResult(logger, out), nil
}
