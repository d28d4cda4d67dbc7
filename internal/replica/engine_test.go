package replica

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/taskrelay/internal/core/task"
	"github.com/colonyops/taskrelay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTransport stands in for the remote node by applying snapshots to a store.
type memTransport struct {
	mu      sync.Mutex
	remote  task.Store
	sends   int
	failing error
}

func (m *memTransport) Fetch(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return Snapshot{}, m.failing
	}
	return Export(ctx, m.remote, time.Now())
}

func (m *memTransport) Send(ctx context.Context, snap Snapshot) (Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends++
	if m.failing != nil {
		return Ack{}, m.failing
	}
	n, err := Apply(ctx, m.remote, snap, time.UTC, time.Now())
	if err != nil {
		return Ack{}, err
	}
	return Ack{Status: "success", Count: n}, nil
}

func TestEngine_Push(t *testing.T) {
	ctx := context.Background()
	local := newTestNode(t)
	remote := newTestNode(t)

	seed(t, remote.tasks, "stale")
	seed(t, local.tasks, "Report", "Email")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	transport := &memTransport{remote: remote.tasks}
	engine := NewEngine(local.tasks, transport, time.UTC, m, zerolog.Nop())

	ack, err := engine.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ack.Count)
	assert.Equal(t, []string{"Report", "Email"}, listTitles(t, remote.tasks))

	t.Run("second push is idempotent", func(t *testing.T) {
		before, err := remote.tasks.List(ctx, task.FilterAll)
		require.NoError(t, err)

		_, err = engine.Push(ctx)
		require.NoError(t, err)

		after, err := remote.tasks.List(ctx, task.FilterAll)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("ids survive the round trip", func(t *testing.T) {
		localTasks, err := local.tasks.List(ctx, task.FilterAll)
		require.NoError(t, err)
		for _, lt := range localTasks {
			rt, err := remote.tasks.Get(ctx, lt.ID)
			require.NoError(t, err)
			assert.Equal(t, lt.Title, rt.Title)
		}
	})

	assert.InDelta(t, 2, counterValue(t, reg, "taskrelay_sync_total", "push", "ok"), 0)
}

func TestEngine_PushEmptyClearsRemote(t *testing.T) {
	local := newTestNode(t)
	remote := newTestNode(t)
	seed(t, remote.tasks, "old")

	engine := NewEngine(local.tasks, &memTransport{remote: remote.tasks}, time.UTC, nil, zerolog.Nop())

	ack, err := engine.Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, ack.Count)
	assert.Empty(t, listTitles(t, remote.tasks))
}

func TestEngine_Pull(t *testing.T) {
	ctx := context.Background()
	local := newTestNode(t)
	remote := newTestNode(t)

	seed(t, local.tasks, "local only")
	seed(t, remote.tasks, "A", "B", "C")

	engine := NewEngine(local.tasks, &memTransport{remote: remote.tasks}, time.UTC, nil, zerolog.Nop())

	n, err := engine.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"A", "B", "C"}, listTitles(t, local.tasks))

	// New local tasks continue after the pulled ids.
	id, err := local.tasks.Insert(ctx, task.Task{Title: "D"})
	require.NoError(t, err)
	assert.Greater(t, id, int64(3))
}

type badSnapshotTransport struct{}

func (badSnapshotTransport) Fetch(context.Context) (Snapshot, error) {
	return Snapshot{Tasks: []Record{{ID: 1, Title: "ok"}, {ID: 2, Title: ""}}}, nil
}

func (badSnapshotTransport) Send(context.Context, Snapshot) (Ack, error) {
	return Ack{}, errors.New("unused")
}

func TestEngine_PullRejectsInvalidSnapshot(t *testing.T) {
	local := newTestNode(t)
	seed(t, local.tasks, "keep me")

	engine := NewEngine(local.tasks, badSnapshotTransport{}, time.UTC, nil, zerolog.Nop())

	_, err := engine.Pull(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSync)
	assert.Equal(t, []string{"keep me"}, listTitles(t, local.tasks))
}

func TestEngine_PullRejectsSnapshotWithoutTasks(t *testing.T) {
	for _, body := range []string{`{}`, `null`, `{"status":"ok"}`} {
		t.Run(body, func(t *testing.T) {
			remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			t.Cleanup(remote.Close)

			tr, err := NewHTTPTransport(remote.URL, "", time.Second)
			require.NoError(t, err)

			local := newTestNode(t)
			seed(t, local.tasks, "Report", "Email")

			n, err := NewEngine(local.tasks, tr, time.UTC, nil, zerolog.Nop()).Pull(context.Background())
			require.ErrorIs(t, err, ErrSync)
			assert.Zero(t, n)
			assert.Equal(t, []string{"Report", "Email"}, listTitles(t, local.tasks))
		})
	}
}

func TestApply_WithoutTasksArray(t *testing.T) {
	local := newTestNode(t)
	seed(t, local.tasks, "Report")

	_, err := Apply(context.Background(), local.tasks, Snapshot{}, time.UTC, time.Now())
	require.ErrorIs(t, err, ErrSync)
	assert.Equal(t, []string{"Report"}, listTitles(t, local.tasks))
}

func TestApply_TwiceKeepsCreated(t *testing.T) {
	ctx := context.Background()
	local := newTestNode(t)
	snap := Snapshot{Tasks: []Record{{ID: 7, Title: "Report"}, {Title: "Email"}}}

	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	_, err := Apply(ctx, local.tasks, snap, time.UTC, t0)
	require.NoError(t, err)
	first, err := local.tasks.List(ctx, task.FilterAll)
	require.NoError(t, err)

	_, err = Apply(ctx, local.tasks, snap, time.UTC, t0.Add(time.Hour))
	require.NoError(t, err)
	second, err := local.tasks.List(ctx, task.FilterAll)
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.True(t, first[0].Created.Equal(t0))
	assert.Equal(t, first, second)
}

func TestEngine_TransportFailure(t *testing.T) {
	local := newTestNode(t)
	seed(t, local.tasks, "x")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	boom := errors.New("connection refused")
	engine := NewEngine(local.tasks, &memTransport{failing: boom}, time.UTC, m, zerolog.Nop())

	_, err := engine.Push(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = engine.Pull(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"x"}, listTitles(t, local.tasks))

	assert.InDelta(t, 1, counterValue(t, reg, "taskrelay_sync_total", "pull", "error"), 0)
}
