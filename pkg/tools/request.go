package tools

import "github.com/mark3labs/mcp-go/mcp"

// NewToolRequest builds the request a client would send to call name.
// The REST API uses it to reach the same handlers as MCP clients.
func NewToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// ResultText returns the JSON document carried by a tool result. Handlers
// always answer with a single text block.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}
