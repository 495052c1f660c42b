package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/tripcarbon/pkg/core"
)

func requireSuccess(t *testing.T, result *mcp.CallToolResult) {
	t.Helper()
	if result == nil {
		t.Fatal("nil tool result")
	}
	if result.IsError {
		t.Fatalf("tool returned an error: %s", ResultText(result))
	}
}

// requireToolError fails unless result is an error result and returns the
// decoded error.
func requireToolError(t *testing.T, result *mcp.CallToolResult) core.MCPError {
	t.Helper()
	if result == nil || !result.IsError {
		t.Fatalf("expected an error result, got %s", ResultText(result))
	}
	var e core.MCPError
	if err := json.Unmarshal([]byte(ResultText(result)), &e); err != nil {
		t.Errorf("error result is not an MCPError: %v", err)
	}
	return e
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	requireSuccess(t, result)
	if err := json.Unmarshal([]byte(ResultText(result)), out); err != nil {
		t.Fatalf("decode %T: %v\n%s", out, err, ResultText(result))
	}
}

func TestNewToolRequest(t *testing.T) {
	req := NewToolRequest("compute_emissions", map[string]any{"origin": "Salem"})
	if req.Params.Name != "compute_emissions" {
		t.Errorf("name = %q", req.Params.Name)
	}
	if args := req.GetArguments(); args["origin"] != "Salem" {
		t.Errorf("arguments = %v", args)
	}
}

func TestResultText(t *testing.T) {
	if ResultText(nil) != "" {
		t.Error("nil result should give empty text")
	}
	if got := ResultText(mcp.NewToolResultText(`{"ok":true}`)); got != `{"ok":true}` {
		t.Errorf("ResultText = %q", got)
	}
}

func TestWithParsedInputRejectsBadArguments(t *testing.T) {
	handler := WithParsedInput("compute_emissions", func(_ context.Context, in ComputeEmissionsInput, _ *slog.Logger) (interface{}, error) {
		return in, nil
	})
	result, err := handler(context.Background(), NewToolRequest("compute_emissions", map[string]any{"distance_km": "far"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if e := requireToolError(t, result); e.Code != string(core.ErrInvalidInput) {
		t.Errorf("code = %s, want %s", e.Code, core.ErrInvalidInput)
	}
}
