package replica

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/colonyops/taskrelay/internal/core/logging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPTransport_Validation(t *testing.T) {
	_, err := NewHTTPTransport("", "", time.Second)
	assert.Error(t, err)

	_, err = NewHTTPTransport("ftp://example.com", "", time.Second)
	assert.Error(t, err)

	tr, err := NewHTTPTransport("http://localhost:5000/", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", tr.baseURL)
}

func TestHTTPTransport_PushPullAcrossNodes(t *testing.T) {
	ctx := context.Background()
	server := newTestNode(t)
	srv := NewServer(server.tasks, nil, nil, ServerOptions{Token: testToken, Location: time.UTC}, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	tr, err := NewHTTPTransport(ts.URL, testToken, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, tr.Health(ctx))

	laptop := newTestNode(t)
	seed(t, laptop.tasks, "Report", "Email")

	ack, err := NewEngine(laptop.tasks, tr, time.UTC, nil, zerolog.Nop()).Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ack.Count)
	assert.NotEmpty(t, ack.RequestID)
	assert.Equal(t, []string{"Report", "Email"}, listTitles(t, server.tasks))

	phone := newTestNode(t)
	seed(t, phone.tasks, "to be replaced")

	n, err := NewEngine(phone.tasks, tr, time.UTC, nil, zerolog.Nop()).Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"Report", "Email"}, listTitles(t, phone.tasks))
}

func TestHTTPTransport_RemoteError(t *testing.T) {
	server := newTestNode(t)
	srv := NewServer(server.tasks, nil, nil, ServerOptions{Token: testToken}, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	tr, err := NewHTTPTransport(ts.URL, "wrong", 5*time.Second)
	require.NoError(t, err)

	_, err = tr.Fetch(context.Background())
	require.Error(t, err)

	var remoteErr *RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusUnauthorized, remoteErr.Status)
	assert.Equal(t, "unauthorized", remoteErr.Message)
}

func TestHTTPTransport_PropagatesRequestID(t *testing.T) {
	var seen string
	router := gin.New()
	router.POST("/sync/tasks", func(c *gin.Context) {
		seen = c.GetHeader(RequestIDHeader)
		c.JSON(http.StatusOK, Ack{Status: "success"})
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	tr, err := NewHTTPTransport(ts.URL, "", time.Second)
	require.NoError(t, err)

	ctx := logging.WithRequestID(context.Background(), "trace-1")
	_, err = tr.Send(ctx, Snapshot{Tasks: []Record{}})
	require.NoError(t, err)
	assert.Equal(t, "trace-1", seen)
}

func TestHTTPTransport_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(ts.Close)

	tr, err := NewHTTPTransport(ts.URL, "", 50*time.Millisecond)
	require.NoError(t, err)

	_, err = tr.Fetch(context.Background())
	assert.Error(t, err)
}
