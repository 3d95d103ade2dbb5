package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"alphafx/internal/model"
)

// WebhookNotifier posts alerts as JSON to an operator webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// webhookPayload is the body posted for one alert. Order details are
// flattened so chat integrations can template on them directly.
type webhookPayload struct {
	Level    AlertLevel   `json:"level"`
	Event    AlertEvent   `json:"event,omitempty"`
	Pair     string       `json:"pair,omitempty"`
	Title    string       `json:"title"`
	Message  string       `json:"message"`
	OrderID  string       `json:"order_id,omitempty"`
	Action   model.Action `json:"action,omitempty"`
	Quantity float64      `json:"quantity,omitempty"`
	Price    float64      `json:"price,omitempty"`
	TS       string       `json:"ts"`
}

// NewWebhookNotifier creates a notifier that POSTs to url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func newWebhookPayload(alert Alert) webhookPayload {
	ts := alert.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	p := webhookPayload{
		Level:   alert.Level,
		Event:   alert.Event,
		Pair:    alert.Pair,
		Title:   alert.Title,
		Message: alert.Message,
		TS:      ts.UTC().Format(time.RFC3339Nano),
	}
	if o := alert.Order; o != nil {
		p.OrderID = o.ID
		p.Action = o.Action
		p.Quantity = o.Quantity
		p.Price = o.Price
		if p.Pair == "" {
			p.Pair = o.CurrencyPair
		}
	}
	return p
}

// Send posts the alert. Any non-2xx reply is an error.
func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(newWebhookPayload(alert))
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: %s %s: status %d", alert.Event, alert.Title, resp.StatusCode)
	}
	return nil
}
