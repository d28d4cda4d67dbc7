package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/colonyops/taskrelay/internal/core/config"
	"github.com/colonyops/taskrelay/internal/core/eventbus"
	"github.com/colonyops/taskrelay/internal/core/task"
	"github.com/colonyops/taskrelay/internal/data/db"
	"github.com/colonyops/taskrelay/internal/replica"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Server.Addr = "127.0.0.1:0"

	app, err := NewApp(&cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestNewApp_ExportImport(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)

	_, err := app.Tasks.Create(ctx, CreateInput{Title: "Report", Due: "2025-03-10 12:00"})
	require.NoError(t, err)

	snap, err := app.Export(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "2025-03-10T11:00:00Z", snap.Tasks[0].Due, "naive input is Madrid time")

	other := newTestApp(t)
	n, err := other.Import(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := other.Tasks.Get(ctx, task.ByTitle("report"))
	require.NoError(t, err)
	assert.Equal(t, snap.Tasks[0].ID, got.ID)
}

func TestApp_ImportWithoutTasksKeepsStore(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)

	_, err := app.Tasks.Create(ctx, CreateInput{Title: "Report"})
	require.NoError(t, err)

	for _, body := range []string{`{}`, `null`, `{"status":"ok"}`, `{"tasks":null}`} {
		var snap replica.Snapshot
		require.NoError(t, json.Unmarshal([]byte(body), &snap))

		_, err := app.Import(ctx, snap)
		require.ErrorIs(t, err, replica.ErrSync, body)
	}

	tasks, err := app.Tasks.List(ctx, task.FilterAll)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Report", tasks[0].Title)

	n, err := app.Import(ctx, replica.Snapshot{Tasks: []replica.Record{}})
	require.NoError(t, err)
	assert.Zero(t, n)

	tasks, err = app.Tasks.List(ctx, task.FilterAll)
	require.NoError(t, err)
	assert.Empty(t, tasks, "an explicit empty array clears the store")
}

func TestNewApp_EngineRequiresRemote(t *testing.T) {
	app := newTestApp(t)
	_, err := app.Engine()
	assert.Error(t, err)
}

func TestNewApp_RecoversCorruptDatabase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, db.FileName), bytes.Repeat([]byte("not a sqlite database "), 64), 0o600))

	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	app, err := NewApp(&cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	matches, err := filepath.Glob(filepath.Join(dir, db.FileName+".corrupt.*"))
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestApp_Serve(t *testing.T) {
	app := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestApp_PushSnapshotTriggersReconcile(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)

	due := time.Now().Add(2 * time.Hour)
	id, err := app.taskStore.Insert(ctx, task.Task{Title: "Email", Due: &due})
	require.NoError(t, err)

	_, err = app.Scheduler.AlertTick(ctx, time.Now())
	require.NoError(t, err)
	st, err := app.Scheduler.State(ctx)
	require.NoError(t, err)
	require.Contains(t, st.Warnings, id)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = app.Serve(serveCtx) }()

	_, err = replica.Apply(ctx, app.taskStore, replica.Snapshot{Tasks: []replica.Record{}}, time.UTC, time.Now())
	require.NoError(t, err)
	app.Bus.PublishSnapshotApplied(eventbus.SnapshotAppliedPayload{})

	require.Eventually(t, func() bool {
		st, err := app.Scheduler.State(ctx)
		return err == nil && len(st.Warnings) == 0
	}, 3*time.Second, 20*time.Millisecond)
}
