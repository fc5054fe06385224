package googlechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/fablebot/fable-api/internal/platform/logger"
)

// DefaultBaseURL is the production Chat API endpoint.
const DefaultBaseURL = "https://chat.googleapis.com"

// Messenger posts and updates messages in chat spaces. The conversation
// service uses it for asynchronous replies; synchronous replies ride the
// webhook response instead.
type Messenger interface {
	// CreateMessage posts msg into the named space ("spaces/ABC") and
	// returns the resource name of the created message.
	CreateMessage(ctx context.Context, spaceName string, msg Message) (string, error)

	// UpdateMessage replaces the text and cards of an existing message,
	// identified by its resource name ("spaces/ABC/messages/XYZ").
	UpdateMessage(ctx context.Context, messageName string, msg Message) error
}

// Client is a Messenger backed by the Chat REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Messenger = (*Client)(nil)

// NewClient creates a Chat API client authenticating with the given token
// source. An empty baseURL selects the production endpoint.
func NewClient(baseURL string, source oauth2.TokenSource) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: source},
			Timeout:   30 * time.Second,
		},
	}
}

// CreateMessage posts a new message into the space.
func (c *Client) CreateMessage(ctx context.Context, spaceName string, msg Message) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/messages", c.baseURL, spaceName)

	created, err := c.send(ctx, http.MethodPost, endpoint, msg)
	if err != nil {
		return "", fmt.Errorf("failed to create message in %s: %w", spaceName, err)
	}
	return created.Name, nil
}

// UpdateMessage replaces the message's text and cards in place.
func (c *Client) UpdateMessage(ctx context.Context, messageName string, msg Message) error {
	endpoint := fmt.Sprintf("%s/v1/%s?updateMask=%s", c.baseURL, messageName, url.QueryEscape("text,cardsV2"))

	if _, err := c.send(ctx, http.MethodPatch, endpoint, msg); err != nil {
		return fmt.Errorf("failed to update message %s: %w", messageName, err)
	}
	return nil
}

// send issues one API request and decodes the message resource it returns.
func (c *Client) send(ctx context.Context, method, endpoint string, msg Message) (*Message, error) {
	log := logger.FromContext(ctx)

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error("chat API request rejected",
			"method", method,
			"status", resp.StatusCode,
			"body", string(detail))
		return nil, fmt.Errorf("chat API returned status %d", resp.StatusCode)
	}

	var created Message
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &created, nil
}
