package teams

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"teamsmcp/pkg/logging"
)

const maxPageSize = 50

// tokensArgSchema is the tokens argument shared by all teams tools.
var tokensArgSchema = map[string]interface{}{
	"type":        "object",
	"description": "OAuth tokens with access_token",
	"properties": map[string]interface{}{
		"access_token": map[string]interface{}{"type": []string{"string", "null"}},
	},
}

// Tools builds the Teams chat tools backed by the given Graph client.
func Tools(client *Client) []mcpserver.ServerTool {
	return []mcpserver.ServerTool{
		listChatsTool(client),
		createChatTool(client),
		sendMessageTool(client),
		getMessagesTool(client),
	}
}

func listChatsTool(client *Client) mcpserver.ServerTool {
	return mcpserver.ServerTool{
		Tool: mcp.Tool{
			Name:        "teams_list_chats",
			Description: "List all chats for the authenticated user",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tokens": tokensArgSchema,
					"filter": map[string]interface{}{
						"type":        []string{"string", "null"},
						"description": "OData filter expression (e.g., \"chatType eq 'oneOnOne'\")",
					},
					"limit": map[string]interface{}{
						"type":        "number",
						"description": "Maximum number of chats to return (1-50)",
						"minimum":     1,
						"maximum":     maxPageSize,
						"default":     maxPageSize,
					},
				},
				Required: []string{},
			},
		},
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := arguments(req)
			accessToken, errResult := requireAccessToken(args)
			if errResult != nil {
				return errResult, nil
			}

			filter, _ := args["filter"].(string)
			limit := intArg(args, "limit", maxPageSize)

			chats, err := client.ListChats(ctx, accessToken, filter, limit)
			if err != nil {
				return graphFailure(err, "Failed to list chats"), nil
			}

			return resultJSON(map[string]interface{}{
				"chats":   chats,
				"count":   len(chats),
				"message": fmt.Sprintf("Found %d chats", len(chats)),
			}), nil
		},
	}
}

func createChatTool(client *Client) mcpserver.ServerTool {
	return mcpserver.ServerTool{
		Tool: mcp.Tool{
			Name:        "teams_create_chat",
			Description: "Create a new Teams chat (one-on-one or group)",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tokens": tokensArgSchema,
					"chat_type": map[string]interface{}{
						"type":        "string",
						"description": "Chat type: 'oneOnOne' or 'group'",
						"enum":        []string{"oneOnOne", "group"},
					},
					"members": map[string]interface{}{
						"type":        "array",
						"description": "Email addresses of chat members",
						"items":       map[string]interface{}{"type": "string"},
					},
					"topic": map[string]interface{}{
						"type":        []string{"string", "null"},
						"description": "Chat topic (group chats only)",
					},
				},
				Required: []string{"chat_type", "members"},
			},
		},
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := arguments(req)
			accessToken, errResult := requireAccessToken(args)
			if errResult != nil {
				return errResult, nil
			}

			chatType, _ := args["chat_type"].(string)
			if chatType != "oneOnOne" && chatType != "group" {
				return errorJSON("invalid chat_type", "chat_type must be 'oneOnOne' or 'group'"), nil
			}

			members := stringSlice(args["members"])
			if len(members) == 0 {
				return errorJSON("missing members", "At least one member email is required"), nil
			}

			topic, _ := args["topic"].(string)

			chat, err := client.CreateChat(ctx, accessToken, chatType, members, topic)
			if err != nil {
				return graphFailure(err, "Failed to create chat"), nil
			}

			return resultJSON(map[string]interface{}{
				"chat":    chat,
				"message": fmt.Sprintf("Created %s chat", chatType),
			}), nil
		},
	}
}

func sendMessageTool(client *Client) mcpserver.ServerTool {
	return mcpserver.ServerTool{
		Tool: mcp.Tool{
			Name:        "teams_send_message",
			Description: "Send a message to a Teams chat",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tokens": tokensArgSchema,
					"chat_id": map[string]interface{}{
						"type":        "string",
						"description": "ID of the chat to send the message to",
					},
					"content": map[string]interface{}{
						"type":        "string",
						"description": "Message content",
					},
					"content_type": map[string]interface{}{
						"type":        "string",
						"description": "Content type: 'text' or 'html'",
						"enum":        []string{"text", "html"},
						"default":     "text",
					},
				},
				Required: []string{"chat_id", "content"},
			},
		},
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := arguments(req)
			accessToken, errResult := requireAccessToken(args)
			if errResult != nil {
				return errResult, nil
			}

			chatID, _ := args["chat_id"].(string)
			content, _ := args["content"].(string)
			if chatID == "" || content == "" {
				return errorJSON("missing arguments", "chat_id and content are required"), nil
			}
			contentType, _ := args["content_type"].(string)

			msg, err := client.SendMessage(ctx, accessToken, chatID, content, contentType)
			if err != nil {
				return graphFailure(err, "Failed to send message"), nil
			}

			return resultJSON(map[string]interface{}{
				"message_id": msg.ID,
				"message":    "Message sent successfully",
			}), nil
		},
	}
}

func getMessagesTool(client *Client) mcpserver.ServerTool {
	return mcpserver.ServerTool{
		Tool: mcp.Tool{
			Name:        "teams_get_messages",
			Description: "Get messages from a Teams chat",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tokens": tokensArgSchema,
					"chat_id": map[string]interface{}{
						"type":        "string",
						"description": "ID of the chat to read messages from",
					},
					"limit": map[string]interface{}{
						"type":        "number",
						"description": "Maximum number of messages to return (1-50)",
						"minimum":     1,
						"maximum":     maxPageSize,
						"default":     maxPageSize,
					},
				},
				Required: []string{"chat_id"},
			},
		},
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := arguments(req)
			accessToken, errResult := requireAccessToken(args)
			if errResult != nil {
				return errResult, nil
			}

			chatID, _ := args["chat_id"].(string)
			if chatID == "" {
				return errorJSON("missing arguments", "chat_id is required"), nil
			}
			limit := intArg(args, "limit", maxPageSize)

			messages, err := client.GetMessages(ctx, accessToken, chatID, limit, "")
			if err != nil {
				return graphFailure(err, "Failed to get messages"), nil
			}

			return resultJSON(map[string]interface{}{
				"messages": messages,
				"count":    len(messages),
				"message":  fmt.Sprintf("Found %d messages", len(messages)),
			}), nil
		},
	}
}

// arguments extracts the argument map from a tool call request.
func arguments(req mcp.CallToolRequest) map[string]interface{} {
	if args, ok := req.Params.Arguments.(map[string]interface{}); ok {
		return args
	}
	return map[string]interface{}{}
}

// requireAccessToken pulls tokens.access_token from the arguments, or
// returns the structured failure pointing callers at the auth tool.
func requireAccessToken(args map[string]interface{}) (string, *mcp.CallToolResult) {
	if tokens, ok := args["tokens"].(map[string]interface{}); ok {
		if accessToken, ok := tokens["access_token"].(string); ok && accessToken != "" {
			return accessToken, nil
		}
	}
	return "", errorJSON("Missing access token", "Please authenticate first using microsoft_is_authenticated")
}

// intArg reads a numeric argument, clamping it to [1, maxPageSize].
func intArg(args map[string]interface{}, key string, fallback int) int {
	value := fallback
	if v, ok := args[key].(float64); ok {
		value = int(v)
	}
	if value < 1 {
		value = 1
	}
	if value > maxPageSize {
		value = maxPageSize
	}
	return value
}

// stringSlice coerces a JSON array argument into a []string, skipping
// non-string entries.
func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// graphFailure maps a Graph error to the structured tool failure payload.
func graphFailure(err error, message string) *mcp.CallToolResult {
	logging.Warn("Teams", "%s: %v", message, err)
	return errorJSON(err.Error(), message)
}

func errorJSON(errText, message string) *mcp.CallToolResult {
	return resultJSON(map[string]interface{}{
		"error":   errText,
		"message": message,
	})
}

func resultJSON(v interface{}) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to encode response")
	}
	return mcp.NewToolResultText(string(data))
}
