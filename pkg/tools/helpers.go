package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripcarbon/pkg/core"
)

// decodeArguments re-decodes the loosely typed tool arguments into T.
func decodeArguments[T any](req mcp.CallToolRequest) (T, *core.MCPError) {
	var input T
	raw, err := json.Marshal(req.GetArguments())
	if err == nil {
		err = json.Unmarshal(raw, &input)
	}
	if err != nil {
		return input, core.NewError(core.ErrInvalidInput, "arguments do not match the tool schema: "+err.Error()).
			WithGuidance("Example: " + GetToolUsageExample(req.Params.Name))
	}
	return input, nil
}

// WithParsedInput adapts fn to the mcp-go handler signature. fn's result is
// sent back as JSON and every failure becomes a structured error result,
// never a protocol error.
func WithParsedInput[T any](
	name string,
	fn func(ctx context.Context, input T, logger *slog.Logger) (interface{}, error),
) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", name)

		input, bad := decodeArguments[T](req)
		if bad != nil {
			logger.Debug("arguments rejected", "error", bad.Message)
			return ErrorWithGuidance(bad), nil
		}

		out, err := fn(ctx, input, logger)
		if err != nil {
			e := toMCPError(err)
			if e.Code == string(core.ErrInternalError) {
				logger.Error("tool failed", "error", err)
			} else {
				logger.Debug("request rejected", "code", e.Code, "error", err)
			}
			return ErrorWithGuidance(e), nil
		}
		return jsonResult(logger, out), nil
	}
}

func jsonResult(logger *slog.Logger, v interface{}) *mcp.CallToolResult {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Error("encoding result", "error", err)
		return ErrorWithGuidance(core.NewError(core.ErrInternalError, "result could not be encoded"))
	}
	return mcp.NewToolResultText(string(body))
}

// requireLocations checks that every name is in the catalog.
func (r *Registry) requireLocations(names ...string) error {
	for _, n := range names {
		if err := core.RequireString("location", n); err != nil {
			return err
		}
		if !r.engine.Catalog().Contains(n) {
			return unknownLocation(r.engine.Catalog(), n)
		}
	}
	return nil
}
