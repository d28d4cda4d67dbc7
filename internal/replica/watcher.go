package replica

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher pushes the local task set after the database file changes.
// Bursts of writes are collapsed by the debounce window.
type Watcher struct {
	watcher     *fsnotify.Watcher
	dbPath      string
	debounceDur time.Duration
	push        func(ctx context.Context) error
	log         zerolog.Logger
}

// NewWatcher watches the directory holding dbPath. SQLite writes land in the
// -wal sidecar as well as the main file, so both are tracked.
func NewWatcher(dbPath string, debounce time.Duration, push func(ctx context.Context) error, log zerolog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(dbPath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(dbPath), err)
	}

	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	return &Watcher{
		watcher:     watcher,
		dbPath:      filepath.Clean(dbPath),
		debounceDur: debounce,
		push:        push,
		log:         log,
	}, nil
}

// Run blocks until ctx is cancelled, pushing once per settled burst of
// changes. Push failures are logged and retried on the next change.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	var (
		debounce *time.Timer
		fire     <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}

			w.log.Debug().
				Str("path", event.Name).
				Str("op", event.Op.String()).
				Msg("file system event")

			if debounce == nil {
				debounce = time.NewTimer(w.debounceDur)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(w.debounceDur)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			if err := w.push(ctx); err != nil {
				w.log.Error().Err(err).Msg("auto push failed")
				continue
			}
			w.log.Info().Msg("auto push complete")

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == w.dbPath || strings.HasPrefix(name, w.dbPath+"-wal")
}
