package task

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a reference does not resolve to a task.
	ErrNotFound = errors.New("task not found")
	// ErrInvalid is wrapped by every ValidationError.
	ErrInvalid = errors.New("invalid task")
)

// ValidationError reports malformed input such as an empty title.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Store defines the interface for task persistence on one node.
type Store interface {
	// Insert assigns a fresh id, defaults Created to now and Status to
	// pending, and returns the new id.
	Insert(ctx context.Context, t Task) (int64, error)

	// Get returns a task by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int64) (Task, error)

	// FindByTitle returns the lowest-id task whose title matches
	// case-insensitively. Returns ErrNotFound if none matches.
	FindByTitle(ctx context.Context, title string) (Task, error)

	// Resolve looks a reference up by id or by title.
	Resolve(ctx context.Context, ref Ref) (Task, error)

	// List returns tasks ordered by due ascending with undated tasks last.
	List(ctx context.Context, filter Filter) ([]Task, error)

	// Update resolves ref and applies patch inside one transaction.
	// Returns ErrNotFound if ref does not resolve.
	Update(ctx context.Context, ref Ref, patch Patch) (Task, error)

	// Delete removes a task by id. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id int64) error

	// DeleteByTitle removes the first task matching title and returns its id.
	// Returns ErrNotFound if none matches.
	DeleteByTitle(ctx context.Context, title string) (int64, error)

	// ReplaceAll atomically swaps the whole content for tasks, keeping the
	// supplied ids.
	ReplaceAll(ctx context.Context, tasks []Task) error

	// MarkNotified sets tier bits on a task. Unknown ids are ignored.
	MarkNotified(ctx context.Context, id int64, tiers Tiers) error
}
