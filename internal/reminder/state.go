package reminder

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/colonyops/taskrelay/internal/core/kv"
)

const (
	stateNamespace = "reminder"
	stateKey       = "state"
)

// State is the scheduler's persisted memory. It survives restarts and
// replace-syncs so that a warning is not repeated inside its cooldown.
type State struct {
	// Warnings holds the last successful warning delivery per task id.
	Warnings     map[int64]time.Time `json:"warnings"`
	LastAlertAt  *time.Time          `json:"last_alert_at,omitempty"`
	LastDigestAt *time.Time          `json:"last_digest_at,omitempty"`
}

// Clone returns a deep copy so a failed tick can discard its changes.
func (s State) Clone() State {
	out := s
	out.Warnings = maps.Clone(s.Warnings)
	if out.Warnings == nil {
		out.Warnings = make(map[int64]time.Time)
	}
	return out
}

// InCooldown reports whether a warning for id was delivered less than
// cooldown before now.
func (s State) InCooldown(id int64, now time.Time, cooldown time.Duration) bool {
	last, ok := s.Warnings[id]
	return ok && now.Sub(last) < cooldown
}

// prune drops entries for tasks not in keep and entries whose cooldown has
// lapsed. It reports whether anything was removed.
func (s State) prune(keep map[int64]struct{}, now time.Time, cooldown time.Duration) bool {
	changed := false
	for id, last := range s.Warnings {
		if _, ok := keep[id]; !ok || now.Sub(last) >= cooldown {
			delete(s.Warnings, id)
			changed = true
		}
	}
	return changed
}

// StateStore loads and saves State through the KV store.
type StateStore struct {
	kv *kv.TypedKV[State]
}

// NewStateStore scopes State under the reminder namespace.
func NewStateStore(store kv.KV) *StateStore {
	return &StateStore{kv: kv.Scoped[State](store, stateNamespace)}
}

// Load returns the stored state, or an empty one on first start.
func (s *StateStore) Load(ctx context.Context) (State, error) {
	st, err := s.kv.GetOr(ctx, stateKey, State{})
	if err != nil {
		return State{}, fmt.Errorf("load reminder state: %w", err)
	}
	return st.Clone(), nil
}

// Save persists st.
func (s *StateStore) Save(ctx context.Context, st State) error {
	if err := s.kv.Set(ctx, stateKey, st); err != nil {
		return fmt.Errorf("save reminder state: %w", err)
	}
	return nil
}

// Reset forgets every recorded delivery.
func (s *StateStore) Reset(ctx context.Context) error {
	if err := s.kv.Delete(ctx, stateKey); err != nil {
		return fmt.Errorf("reset reminder state: %w", err)
	}
	return nil
}
