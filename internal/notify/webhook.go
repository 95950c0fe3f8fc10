package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spec-kit/ticketflow/internal/events"
)

// WebhookClient POSTs events as JSON and retries failed deliveries with
// quadratic backoff.
type WebhookClient struct {
	url        string
	httpClient *http.Client
	attempts   int
	backoff    func(attempt int) time.Duration
}

// NewWebhookClient returns a client posting to url. attempts below one are
// treated as one.
func NewWebhookClient(url string, attempts int, timeout time.Duration) *WebhookClient {
	if attempts < 1 {
		attempts = 1
	}
	return &WebhookClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   attempts,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

// WithBackoff replaces the delay between attempts.
func (c *WebhookClient) WithBackoff(backoff func(attempt int) time.Duration) *WebhookClient {
	c.backoff = backoff
	return c
}

// Send delivers event. Any 2xx response is success.
func (c *WebhookClient) Send(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		lastErr = c.post(ctx, payload)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", c.attempts, lastErr)
}

func (c *WebhookClient) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook returned status %d", resp.StatusCode)
}
