// Package replica replicates the task set between a client and the server
// by whole-snapshot replacement. The last snapshot applied wins.
package replica

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/taskrelay/internal/core/task"
	"github.com/colonyops/taskrelay/internal/metrics"
	"github.com/rs/zerolog"
)

// Ack is the server's answer to a pushed snapshot.
type Ack struct {
	Status    string `json:"status"`
	Count     int    `json:"count"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Transport moves snapshots to and from the remote node.
type Transport interface {
	// Fetch returns the remote task set.
	Fetch(ctx context.Context) (Snapshot, error)
	// Send replaces the remote task set with snap.
	Send(ctx context.Context, snap Snapshot) (Ack, error)
}

// Export reads the full task set from store.
func Export(ctx context.Context, store task.Store, now time.Time) (Snapshot, error) {
	tasks, err := store.List(ctx, task.FilterAll)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export tasks: %w", err)
	}
	return FromTasks(tasks, now), nil
}

// Apply validates snap and replaces the content of store with it in one
// transaction. It returns the number of tasks written. Tasks already in store
// keep their created time when the snapshot omits it, so applying the same
// snapshot twice writes the same rows.
func Apply(ctx context.Context, store task.Store, snap Snapshot, loc *time.Location, now time.Time) (int, error) {
	current, err := store.List(ctx, task.FilterAll)
	if err != nil {
		return 0, fmt.Errorf("read current tasks: %w", err)
	}
	prior := make(map[int64]time.Time, len(current))
	for _, t := range current {
		prior[t.ID] = t.Created
	}

	tasks, err := snap.Decode(loc, now, prior)
	if err != nil {
		return 0, err
	}
	if err := store.ReplaceAll(ctx, tasks); err != nil {
		return 0, fmt.Errorf("apply snapshot: %w", err)
	}
	return len(tasks), nil
}

// Engine drives push and pull for one local store.
type Engine struct {
	store     task.Store
	transport Transport
	loc       *time.Location
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(store task.Store, transport Transport, loc *time.Location, m *metrics.Metrics, log zerolog.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		store:     store,
		transport: transport,
		loc:       loc,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// Push sends the whole local task set to the remote, which replaces its own.
func (e *Engine) Push(ctx context.Context) (Ack, error) {
	ack, err := e.push(ctx)
	e.metrics.Sync("push", err)
	return ack, err
}

func (e *Engine) push(ctx context.Context) (Ack, error) {
	snap, err := Export(ctx, e.store, e.now())
	if err != nil {
		return Ack{}, err
	}

	ack, err := e.transport.Send(ctx, snap)
	if err != nil {
		return Ack{}, fmt.Errorf("push %d tasks: %w", len(snap.Tasks), err)
	}

	e.log.Info().Ctx(ctx).
		Int("tasks", len(snap.Tasks)).
		Int("acked", ack.Count).
		Str("request_id", ack.RequestID).
		Msg("pushed snapshot")

	return ack, nil
}

// Pull replaces the local task set with the remote one and returns the
// number of tasks applied. An invalid remote snapshot leaves the local store
// untouched.
func (e *Engine) Pull(ctx context.Context) (int, error) {
	n, err := e.pull(ctx)
	e.metrics.Sync("pull", err)
	return n, err
}

func (e *Engine) pull(ctx context.Context) (int, error) {
	snap, err := e.transport.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("pull: %w", err)
	}

	n, err := Apply(ctx, e.store, snap, e.loc, e.now())
	if err != nil {
		return 0, err
	}

	e.log.Info().Ctx(ctx).Int("tasks", n).Msg("pulled snapshot")
	return n, nil
}
