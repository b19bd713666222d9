// Package api is the HTTP client for the console's collaborator endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/leadsync/internal/protocol"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 15 * time.Second

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() (string, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Conversation is one row of the conversation list as served.
type Conversation struct {
	ID           protocol.ID        `json:"id"`
	DisplayName  string             `json:"displayName"`
	LastMessage  string             `json:"lastMessage"`
	LastActivity protocol.Timestamp `json:"lastActivity"`
	UnreadCount  int                `json:"unreadCount"`
	HasOffer     json.RawMessage    `json:"hasOffer,omitempty"`
	HasNewBank   json.RawMessage    `json:"hasNewBank,omitempty"`
}

// Page is one page of the conversation list.
type Page struct {
	Conversations []Conversation `json:"conversations"`
	HasMore       bool           `json:"hasMore"`
}

// ListOptions pages and filters the conversation list.
type ListOptions struct {
	Limit  int
	Offset int
	Search string
}

// Client talks to the console's HTTP API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListConversations loads one page of the conversation list.
func (c *Client) ListConversations(ctx context.Context, opts ListOptions) (Page, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/conversations", q, nil, &raw); err != nil {
		return Page{}, err
	}

	var page Page
	// Older deployments answer with a bare array.
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &page.Conversations); err != nil {
			return Page{}, fmt.Errorf("decode conversations: %w", err)
		}
		page.HasMore = opts.Limit > 0 && len(page.Conversations) == opts.Limit
		return page, nil
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return Page{}, fmt.Errorf("decode conversations: %w", err)
	}
	return page, nil
}

// Messages loads the messages of one conversation, oldest first.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]protocol.Message, error) {
	var resp struct {
		Messages []protocol.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID, "messages"), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessage posts a message. requestID is echoed back by the server on
// the push channel as clientRequestId.
func (c *Client) SendMessage(ctx context.Context, conversationID, content, requestID string) (protocol.Message, error) {
	body := struct {
		Content         string `json:"content"`
		ClientRequestID string `json:"clientRequestId,omitempty"`
	}{content, requestID}
	var resp struct {
		Message protocol.Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, conversationPath(conversationID, "messages"), nil, body, &resp); err != nil {
		return protocol.Message{}, err
	}
	return resp.Message, nil
}

// MarkRead marks a conversation as read.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, conversationPath(conversationID, "read"), nil, nil, nil)
}

// ClearOffer clears the offer badge of a conversation.
func (c *Client) ClearOffer(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, conversationPath(conversationID, "clear-offer"), nil, nil, nil)
}

func conversationPath(id, action string) string {
	return "/api/conversations/" + url.PathEscape(id) + "/" + action
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
