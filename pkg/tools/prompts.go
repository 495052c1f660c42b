package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const tripAssistantPrompt = `You help travelers understand and reduce the carbon footprint of domestic trips.

1. Resolve every place name with suggest_locations before using it; only catalog names are accepted.
2. Use plan_trip for a complete assessment, or compute_emissions when only totals are needed.
3. Present alternatives lowest-emission first. Savings are relative to the trip as planned and may be negative.
4. Emissions are kg CO2e. Costs are INR. Alternative options are per person unless travelers was given.
5. When a result says used_fallback, mention that local estimates replaced live provider data.`

// TripAssistantPrompt returns the system prompt for trip assessments.
func TripAssistantPrompt() string {
	return tripAssistantPrompt
}

// RegisterPrompts registers the trip prompts with the MCP server.
func (r *Registry) RegisterPrompts(mcpServer *server.MCPServer) {
	r.logger.Info("registering trip prompts")

	mcpServer.AddPrompt(mcp.NewPrompt("trip_assistant",
		mcp.WithPromptDescription("System instructions for assessing trip emissions"),
	), func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult(
			"Trip Assistant Instructions",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(TripAssistantPrompt())),
			},
		), nil
	})

	mcpServer.AddPrompt(mcp.NewPrompt("greener_trip",
		mcp.WithPromptDescription("Ask for a greener way to make a trip"),
		mcp.WithArgument("origin",
			mcp.ArgumentDescription("Origin location name"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("destination",
			mcp.ArgumentDescription("Destination location name"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("modes",
			mcp.ArgumentDescription("Comma-separated modes as planned, e.g. Flight"),
		),
	), func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult(
			"Greener Trip Request",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(greenerTripText(req.Params.Arguments))),
			},
		), nil
	})
}

func greenerTripText(args map[string]string) string {
	origin := strings.TrimSpace(args["origin"])
	destination := strings.TrimSpace(args["destination"])
	text := fmt.Sprintf("I am travelling from %s to %s", origin, destination)
	if modes := strings.TrimSpace(args["modes"]); modes != "" {
		text += " by " + modes
	}
	return text + ". Plan the trip and tell me which alternative cuts emissions the most, and what it costs."
}
