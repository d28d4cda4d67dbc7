package replica

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/colonyops/taskrelay/internal/core/logging"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request id between client and server.
const RequestIDHeader = "X-Request-ID"

const tasksPath = "/sync/tasks"

// HTTPTransport talks to a Server over HTTP.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport for the server at baseURL. An empty
// token sends no Authorization header.
func NewHTTPTransport(baseURL, token string, timeout time.Duration) (*HTTPTransport, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote url is not configured")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url %q must use http or https", baseURL)
	}

	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Fetch downloads the server's task set.
func (h *HTTPTransport) Fetch(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := h.do(ctx, http.MethodGet, tasksPath, nil, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Send uploads snap, replacing the server's task set.
func (h *HTTPTransport) Send(ctx context.Context, snap Snapshot) (Ack, error) {
	var ack Ack
	if err := h.do(ctx, http.MethodPost, tasksPath, snap, &ack); err != nil {
		return Ack{}, err
	}
	return ack, nil
}

// Health checks that the server is reachable.
func (h *HTTPTransport) Health(ctx context.Context) error {
	return h.do(ctx, http.MethodGet, "/sync/health", nil, nil)
}

func (h *HTTPTransport) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestID := logging.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.Unmarshal(data, &e)
		return &RemoteError{Status: resp.StatusCode, Message: e.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
