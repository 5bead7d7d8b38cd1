// Package authtools exposes an OAuth2 flow as MCP tools. For a provider
// named "microsoft" it contributes microsoft_is_authenticated and
// microsoft_authorize, the two operations callers drive the flow with.
package authtools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"teamsmcp/internal/oauth2"
	"teamsmcp/pkg/logging"
)

// tokensSchema describes the token object accepted by both tools.
var tokensSchema = map[string]interface{}{
	"type":        "object",
	"description": "OAuth tokens (optional). If not provided, an auth URL is generated",
	"properties": map[string]interface{}{
		"access_token":  map[string]interface{}{"type": []string{"string", "null"}},
		"refresh_token": map[string]interface{}{"type": []string{"string", "null"}},
		"expires_in":    map[string]interface{}{"type": []string{"number", "null"}},
		"expires_at":    map[string]interface{}{"type": []string{"string", "null"}},
	},
}

// Tools builds the two authentication tools for the given flow.
func Tools(flow *oauth2.Flow) []mcpserver.ServerTool {
	name := flow.Provider().Name()

	return []mcpserver.ServerTool{
		{
			Tool: mcp.Tool{
				Name:        fmt.Sprintf("%s_is_authenticated", name),
				Description: fmt.Sprintf("Check if the provided tokens are valid for %s. If no tokens provided, generates an auth URL.", name),
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"tokens": tokensSchema,
						"callback_url": map[string]interface{}{
							"type":        "string",
							"description": "Callback URL for the OAuth flow (required if tokens not provided)",
						},
						"callback_state": map[string]interface{}{
							"type":        "object",
							"description": "Opaque state data carried through the OAuth flow (optional)",
						},
					},
					Required: []string{},
				},
			},
			Handler: isAuthenticatedHandler(flow),
		},
		{
			Tool: mcp.Tool{
				Name:        fmt.Sprintf("%s_authorize", name),
				Description: fmt.Sprintf("Exchange an authorization code for %s tokens.", name),
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"code": map[string]interface{}{
							"type":        "string",
							"description": "Authorization code from the OAuth callback",
						},
						"callback_url": map[string]interface{}{
							"type":        "string",
							"description": "Callback URL the provider redirected to, including its query parameters",
						},
						"callback_state": map[string]interface{}{
							"type":        "object",
							"description": "State data from the OAuth callback (optional)",
						},
					},
					Required: []string{"code", "callback_url"},
				},
			},
			Handler: authorizeHandler(flow),
		},
	}
}

func isAuthenticatedHandler(flow *oauth2.Flow) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := arguments(req)

		var tokens *oauth2.TokenResponse
		if raw, ok := args["tokens"].(map[string]interface{}); ok && len(raw) > 0 {
			parsed, err := oauth2.TokenFromMap(raw)
			if err != nil {
				return resultJSON(&oauth2.CheckResult{
					Authenticated: false,
					Error:         "invalid_tokens",
					Message:       err.Error(),
				})
			}
			tokens = parsed
		}

		callbackURL, _ := args["callback_url"].(string)
		result := flow.IsAuthenticated(ctx, tokens, callbackURL, args["callback_state"])
		return resultJSON(result)
	}
}

func authorizeHandler(flow *oauth2.Flow) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := arguments(req)

		code, _ := args["code"].(string)
		callbackURL, _ := args["callback_url"].(string)

		result := flow.Authorize(ctx, code, callbackURL, args["callback_state"])
		return resultJSON(result)
	}
}

// arguments extracts the argument map from a tool call request.
func arguments(req mcp.CallToolRequest) map[string]interface{} {
	if args, ok := req.Params.Arguments.(map[string]interface{}); ok {
		return args
	}
	return map[string]interface{}{}
}

// resultJSON marshals a structured flow result as the tool's text content.
// The engine never raises past its boundary, so tool-level errors are
// reserved for marshaling failures.
func resultJSON(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error("AuthTools", err, "Failed to marshal flow result")
		return mcp.NewToolResultError("failed to encode response"), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
