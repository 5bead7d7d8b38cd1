// Package teams is a Microsoft Graph client for Teams chat operations,
// consuming access tokens issued by the OAuth2 engine. It exposes the chat
// operations both as plain methods and as MCP tools.
package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"teamsmcp/pkg/logging"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const clientTimeout = 30 * time.Second

// GraphError is a non-2xx response from Microsoft Graph.
type GraphError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *GraphError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph request failed with status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph request failed with status %d", e.StatusCode)
}

// Throttled reports whether the error is a 429 response.
func (e *GraphError) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Unauthorized reports whether the token was rejected; callers should
// re-authenticate via the is_authenticated tool.
func (e *GraphError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Chat is a Teams chat as returned by Graph.
type Chat struct {
	ID                  string       `json:"id"`
	Topic               string       `json:"topic,omitempty"`
	ChatType            string       `json:"chatType"`
	CreatedDateTime     string       `json:"createdDateTime,omitempty"`
	LastUpdatedDateTime string       `json:"lastUpdatedDateTime,omitempty"`
	Members             []ChatMember `json:"members,omitempty"`
}

// ChatMember is a chat participant.
type ChatMember struct {
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Message is a chat message as returned by Graph.
type Message struct {
	ID              string       `json:"id"`
	CreatedDateTime string       `json:"createdDateTime,omitempty"`
	Body            MessageBody  `json:"body"`
	From            *MessageFrom `json:"from,omitempty"`
}

// MessageBody carries message content and its type ("text" or "html").
type MessageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// MessageFrom identifies the message sender.
type MessageFrom struct {
	User *User `json:"user,omitempty"`
}

// User is a Graph user.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Mail        string `json:"mail,omitempty"`
}

// listResponse is Graph's collection envelope.
type listResponse[T any] struct {
	Value []T `json:"value"`
}

// Client calls the Microsoft Graph Teams APIs with rate limiting.
type Client struct {
	baseURL string
	hc      *http.Client
	limiter *RateLimiter
}

// ClientOptions override Client defaults, mainly for tests.
type ClientOptions struct {
	BaseURL     string
	HTTPClient  *http.Client
	RateLimiter *RateLimiter
}

// NewClient creates a Graph client with default options.
func NewClient() *Client {
	return NewClientWithOptions(ClientOptions{})
}

// NewClientWithOptions creates a Graph client with the given overrides.
func NewClientWithOptions(opts ClientOptions) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		hc:      &http.Client{Timeout: clientTimeout},
		limiter: NewRateLimiter(),
	}
	if opts.BaseURL != "" {
		c.baseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		c.hc = opts.HTTPClient
	}
	if opts.RateLimiter != nil {
		c.limiter = opts.RateLimiter
	}
	return c
}

// request performs a rate-limited Graph call and decodes the response into
// out when out is non-nil.
func (c *Client) request(ctx context.Context, method, endpoint, accessToken string, query url.Values, body interface{}, out interface{}) error {
	return c.limiter.Do(ctx, func() error {
		var reqBody io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to encode request body: %w", err)
			}
			reqBody = bytes.NewReader(data)
		}

		reqURL := c.baseURL + endpoint
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")
		// Correlation id Microsoft support can trace requests by.
		req.Header.Set("client-request-id", uuid.NewString())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return fmt.Errorf("graph request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read graph response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return graphErrorFrom(resp, respBody)
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to parse graph response: %w", err)
			}
		}
		return nil
	})
}

// graphErrorFrom builds a GraphError from an error response, pulling the
// code/message out of Graph's error envelope when present.
func graphErrorFrom(resp *http.Response, body []byte) *GraphError {
	graphErr := &GraphError{StatusCode: resp.StatusCode}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		graphErr.Code = envelope.Error.Code
		graphErr.Message = envelope.Error.Message
	}

	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			graphErr.RetryAfter = time.Duration(seconds) * time.Second
		}
	}
	return graphErr
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.request(ctx, http.MethodGet, "/me", accessToken, nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListChats lists the user's chats. filter is an optional OData filter
// expression; top caps the page size.
func (c *Client) ListChats(ctx context.Context, accessToken, filter string, top int) ([]Chat, error) {
	query := url.Values{}
	query.Set("$top", strconv.Itoa(top))
	if filter != "" {
		query.Set("$filter", filter)
	}

	var resp listResponse[Chat]
	if err := c.request(ctx, http.MethodGet, "/me/chats", accessToken, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// CreateChat creates a oneOnOne or group chat with the given member emails.
// The authenticated user is added as an owner automatically.
func (c *Client) CreateChat(ctx context.Context, accessToken, chatType string, memberEmails []string, topic string) (*Chat, error) {
	me, err := c.Me(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}

	members := make([]map[string]interface{}, 0, len(memberEmails)+1)
	members = append(members, conversationMember(me.ID))
	for _, email := range memberEmails {
		members = append(members, conversationMember(email))
	}

	body := map[string]interface{}{
		"chatType": chatType,
		"members":  members,
	}
	if topic != "" && chatType == "group" {
		body["topic"] = topic
	}

	var chat Chat
	if err := c.request(ctx, http.MethodPost, "/chats", accessToken, nil, body, &chat); err != nil {
		return nil, err
	}

	logging.Debug("Teams", "Created %s chat %s", chatType, chat.ID)
	return &chat, nil
}

// conversationMember builds the Graph member binding for a user id or
// email address.
func conversationMember(idOrEmail string) map[string]interface{} {
	return map[string]interface{}{
		"@odata.type":     "#microsoft.graph.aadUserConversationMember",
		"roles":           []string{"owner"},
		"user@odata.bind": fmt.Sprintf("https://graph.microsoft.com/v1.0/users('%s')", idOrEmail),
	}
}

// SendMessage posts a message to a chat. contentType is "text" or "html".
func (c *Client) SendMessage(ctx context.Context, accessToken, chatID, content, contentType string) (*Message, error) {
	if contentType == "" {
		contentType = "text"
	}

	body := map[string]interface{}{
		"body": map[string]interface{}{
			"contentType": contentType,
			"content":     content,
		},
	}

	var msg Message
	endpoint := fmt.Sprintf("/chats/%s/messages", url.PathEscape(chatID))
	if err := c.request(ctx, http.MethodPost, endpoint, accessToken, nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessages returns messages from a chat, newest first by default.
func (c *Client) GetMessages(ctx context.Context, accessToken, chatID string, top int, orderBy string) ([]Message, error) {
	if orderBy == "" {
		orderBy = "createdDateTime desc"
	}

	query := url.Values{}
	query.Set("$top", strconv.Itoa(top))
	query.Set("$orderby", orderBy)

	var resp listResponse[Message]
	endpoint := fmt.Sprintf("/chats/%s/messages", url.PathEscape(chatID))
	if err := c.request(ctx, http.MethodGet, endpoint, accessToken, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}
