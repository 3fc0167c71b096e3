package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/supplywatch/service/webhook"
)

// DefaultWebhookPath is the route the service answers webhook deliveries on.
const DefaultWebhookPath = "/webhook"

// Response is the JSON body returned by a successful webhook delivery.
type Response struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

// Client is the HTTP client for the supplywatch webhook service.
type Client struct {
	baseURL    string
	path       string
	authSecret string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new webhook client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		path:       DefaultWebhookPath,
		httpClient: httpClient,
		logger:     logger,
	}
}

// WithAuthSecret sends "Authorization: Bearer <secret>" on every delivery.
func (c *Client) WithAuthSecret(secret string) *Client {
	c.authSecret = secret
	return c
}

// WithPath overrides the webhook route, e.g. "/api/webhook".
func (c *Client) WithPath(path string) *Client {
	c.path = path
	return c
}

// SendTransactions delivers txns as an enhanced-transaction webhook payload.
func (c *Client) SendTransactions(ctx context.Context, txns []webhook.Transaction) (*Response, error) {
	body, err := json.Marshal(txns)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transactions: %w", err)
	}
	return c.SendRaw(ctx, body)
}

// SendRaw delivers body unchanged. Non-2xx answers are returned as errors
// carrying the server's error message.
func (c *Client) SendRaw(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authSecret != "" {
		req.Header.Set("Authorization", "Bearer "+c.authSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.parseErrorResponse(resp)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	out.StatusCode = resp.StatusCode

	c.logger.Debug("webhook delivered", "status", resp.StatusCode, "message", out.Message)
	return &out, nil
}

// Health checks that the service answers GET /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errResp.Error)
}
