package replica

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/colonyops/taskrelay/internal/core/eventbus"
	"github.com/colonyops/taskrelay/internal/core/eventbus/testbus"
	"github.com/colonyops/taskrelay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "s3cret"

func newTestServer(t *testing.T) (*Server, testNode, *prometheus.Registry) {
	t.Helper()
	node := newTestNode(t)
	reg := prometheus.NewRegistry()
	srv := NewServer(node.tasks, node.inbox, metrics.New(reg), ServerOptions{
		Token:    testToken,
		Location: time.UTC,
	}, zerolog.Nop())
	return srv, node, reg
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Index(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "active", body["status"])
	assert.Contains(t, body["endpoints"], "sync_tasks")
	assert.Contains(t, body["endpoints"], "inbox")
}

func TestServer_Health(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/sync/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Auth(t *testing.T) {
	srv, node, _ := newTestServer(t)
	seed(t, node.tasks, "keep")

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/sync/tasks", `{"tasks":[]}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []string{"keep"}, listTitles(t, node.tasks))

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/sync/tasks", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/sync/tasks", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_PostTasks(t *testing.T) {
	srv, node, reg := newTestServer(t)
	seed(t, node.tasks, "old")

	body := `{"tasks":[
		{"id":4,"title":"Report","due":"2025-03-10T12:30:00Z","status":"principal","created":"2025-03-01T08:00:00Z"},
		{"id":9,"title":"Email","status":"pending"}
	]}`

	req := httptest.NewRequest(http.MethodPost, "/sync/tasks", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	var ack Ack
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "success", ack.Status)
	assert.Equal(t, 2, ack.Count)
	assert.Equal(t, "req-123", ack.RequestID)

	assert.Equal(t, []string{"Report", "Email"}, listTitles(t, node.tasks))
	got, err := node.tasks.Get(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "Email", got.Title)

	assert.InDelta(t, 1, counterValue(t, reg, "taskrelay_sync_total", "receive", "ok"), 0)
}

func TestServer_PostTasksRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "malformed json", body: `{"tasks":`},
		{name: "missing tasks key", body: `{}`},
		{name: "empty title", body: `{"tasks":[{"id":1,"title":"ok"},{"id":2,"title":""}]}`},
		{name: "unknown status", body: `{"tasks":[{"id":1,"title":"a","status":"later"}]}`},
		{name: "duplicate id", body: `{"tasks":[{"id":1,"title":"a"},{"id":1,"title":"b"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, node, reg := newTestServer(t)
			seed(t, node.tasks, "untouched")

			rec := doRequest(t, srv.Handler(), http.MethodPost, "/sync/tasks", tt.body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.NotEmpty(t, resp.Message)

			assert.Equal(t, []string{"untouched"}, listTitles(t, node.tasks))
			assert.InDelta(t, 1, counterValue(t, reg, "taskrelay_sync_total", "receive", "error"), 0)
		})
	}
}

func TestServer_GetTasks(t *testing.T) {
	srv, node, _ := newTestServer(t)
	seed(t, node.tasks, "A", "B")

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/sync/tasks", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Tasks, 2)
	assert.Equal(t, "A", snap.Tasks[0].Title)
	assert.Equal(t, "2025-03-10T12:00:00Z", snap.Tasks[0].Due)
	assert.NotNil(t, snap.GeneratedAt)
}

func TestServer_Inbox(t *testing.T) {
	srv, node, _ := newTestServer(t)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/inbox", `{"chat":"42","text":"/list"}`, true)
	require.Equal(t, http.StatusAccepted, rec.Code)

	msgs, err := node.inbox.After(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "/list", msgs[0].Text)
	assert.Equal(t, "42", msgs[0].Chat)

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/inbox", `{"text":"   "}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/inbox", `{"text":"hi"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	srv, node, _ := newTestServer(t)
	seed(t, node.tasks, "A")

	doRequest(t, srv.Handler(), http.MethodPost, "/sync/tasks", `{"tasks":[]}`, true)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `taskrelay_sync_total{direction="receive",result="ok"} 1`)
}

func TestServer_NoTokenDisablesAuth(t *testing.T) {
	node := newTestNode(t)
	srv := NewServer(node.tasks, nil, nil, ServerOptions{}, zerolog.Nop())

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/sync/tasks", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/inbox", `{"text":"x"}`, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Run(t *testing.T) {
	node := newTestNode(t)
	srv := NewServer(node.tasks, nil, nil, ServerOptions{Addr: "127.0.0.1:0"}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_PublishesEvents(t *testing.T) {
	node := newTestNode(t)
	tb := testbus.New(t)
	srv := NewServer(node.tasks, node.inbox, nil, ServerOptions{Bus: tb.EventBus}, zerolog.Nop())

	tb.AssertNotPublished(t, eventbus.EventSnapshotApplied, 20*time.Millisecond)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/inbox", `{"text":"/list"}`, false)
	require.Equal(t, http.StatusAccepted, rec.Code)
	received := testbus.Payload[eventbus.InboxReceivedPayload](t, tb, eventbus.EventInboxReceived)
	assert.Positive(t, received.MessageID)

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/sync/tasks", `{"tasks":[{"id":1,"title":"a"},{"id":2,"title":"b"}]}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	applied := testbus.Payload[eventbus.SnapshotAppliedPayload](t, tb, eventbus.EventSnapshotApplied)
	assert.Equal(t, 2, applied.Count)
	assert.NotEmpty(t, applied.RequestID)
}
