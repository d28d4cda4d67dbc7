package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Webhook posts {"text": "..."} to a URL, the payload accepted by most chat
// incoming-webhook endpoints.
type Webhook struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// NewWebhook returns a Webhook with its own client.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		URL:     url,
		Client:  &http.Client{},
		Timeout: timeout,
	}
}

type webhookPayload struct {
	Text string `json:"text"`
}

// Notify posts text. Any non-2xx status is a delivery error.
func (w *Webhook) Notify(ctx context.Context, text string) error {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(webhookPayload{Text: text})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return &Error{Sink: "webhook", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return &Error{Sink: "webhook", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Sink: "webhook", Status: resp.StatusCode}
	}
	return nil
}
