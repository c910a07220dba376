// Package host provides the HTTP client for donation host callbacks.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

// callbackPath is where the host receives forwarded webhook events.
const callbackPath = "/api/v1/donations/braintree-events/"

// Client forwards webhook events the gateway does not handle itself.
// It implements ports.EventListener.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewClient creates a new host callback client.
func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// OnWebhookEvent posts the event to the host.
// POST /api/v1/donations/braintree-events/
func (c *Client) OnWebhookEvent(ctx context.Context, event *domain.WebhookEvent) error {
	jsonBody, err := json.Marshal(event)
	if err != nil {
		return domain.NewServiceError(domain.ErrTransport,
			"failed to marshal event", "MARSHAL_ERROR")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+callbackPath, bytes.NewReader(jsonBody))
	if err != nil {
		return domain.NewServiceError(domain.ErrTransport,
			"failed to create request", "REQUEST_ERROR")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewServiceError(domain.ErrTransport,
			"request failed: "+err.Error(), "HTTP_ERROR")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.NewServiceError(domain.ErrTransport,
			fmt.Sprintf("host returned status %d: %s", resp.StatusCode, string(body)),
			"HOST_ERROR")
	}

	return nil
}
