package replica

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "taskrelay.db")
	require.NoError(t, os.WriteFile(dbPath, nil, 0o600))

	var pushes atomic.Int32
	w, err := NewWatcher(dbPath, 100*time.Millisecond, func(context.Context) error {
		pushes.Add(1)
		return nil
	}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := range 5 {
		require.NoError(t, os.WriteFile(dbPath+"-wal", []byte{byte(i)}, 0o600))
	}
	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	require.Eventually(t, func() bool { return pushes.Load() == 1 }, 3*time.Second, 20*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), pushes.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_Relevant(t *testing.T) {
	w := &Watcher{dbPath: "/data/taskrelay.db"}
	assert.True(t, w.relevant(fsnotifyEvent("/data/taskrelay.db", true)))
	assert.True(t, w.relevant(fsnotifyEvent("/data/taskrelay.db-wal", true)))
	assert.False(t, w.relevant(fsnotifyEvent("/data/taskrelay.db-shm", true)))
	assert.False(t, w.relevant(fsnotifyEvent("/data/other.db", true)))
	assert.False(t, w.relevant(fsnotifyEvent("/data/taskrelay.db", false)))
}

func fsnotifyEvent(name string, write bool) fsnotify.Event {
	op := fsnotify.Chmod
	if write {
		op = fsnotify.Write
	}
	return fsnotify.Event{Name: name, Op: op}
}
