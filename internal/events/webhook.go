package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/glowkart/backend-cart/internal/resilience"
)

// WebhookNotifier POSTs events to an external acknowledgment sink. The sink
// is fire-and-forget from the cart's perspective; delivery retries a few
// times with backoff and a breaker guards a sink that is down, so a flapping
// sink never slows cart mutations into timeout territory.
type WebhookNotifier struct {
	URL    string
	Client resilience.HTTPClient
}

// NewWebhookNotifier builds a notifier with a traced, breaker-guarded client.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		URL: url,
		Client: resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   timeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("event_sink"),
			MaxAttempts: 3,
			BaseBackoff: 100 * time.Millisecond,
			Jitter:      0.2,
		},
	}
}

// Notify delivers the event as a JSON POST.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.URL == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Glowkart-Topic", event.Topic)

	resp, err := n.Client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("deliver event: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sink responded %d", resp.StatusCode)
	}
	return nil
}
