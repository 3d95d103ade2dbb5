package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alphafx/internal/model"
)

// HTTPSubmitter POSTs orders as JSON to a trade endpoint.
// A 2xx reply accepts the order, a 4xx reply rejects it with the response
// body as the reason, and anything else is a transport error.
type HTTPSubmitter struct {
	url    string
	client *http.Client
}

// NewHTTPSubmitter creates an HTTP submitter for url.
func NewHTTPSubmitter(url string) *HTTPSubmitter {
	return &HTTPSubmitter{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (h *HTTPSubmitter) Submit(ctx context.Context, order model.Order) (model.OrderResult, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("submit: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("submit: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", order.ID)

	resp, err := h.client.Do(req)
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("submit: send: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return model.OrderResult{Order: order, Status: model.StatusAccepted}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		reason := strings.TrimSpace(string(msg))
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return model.OrderResult{Order: order, Status: model.StatusRejected, Message: reason}, nil
	}
	return model.OrderResult{}, fmt.Errorf("submit: unexpected status %d", resp.StatusCode)
}
