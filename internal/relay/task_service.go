// Package relay is the command boundary: it composes the stores, the
// scheduler, the sync engine and the inbox into the operations exposed by
// the CLI and the chat bot.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/taskrelay/internal/core/task"
	"github.com/rs/zerolog"
)

// CreateInput carries the fields accepted when creating a task. Due is
// free-form text parsed in the configured zone.
type CreateInput struct {
	Title       string
	Description string
	Due         string
	Tags        string
}

// TaskService wraps task.Store with input parsing and logging.
type TaskService struct {
	store task.Store
	loc   *time.Location
	log   zerolog.Logger
}

// NewTaskService creates a new TaskService.
func NewTaskService(store task.Store, loc *time.Location, log zerolog.Logger) *TaskService {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskService{
		store: store,
		loc:   loc,
		log:   log.With().Str("component", "task-service").Logger(),
	}
}

// Location returns the zone used for naive timestamps.
func (s *TaskService) Location() *time.Location {
	return s.loc
}

// Create stores a new pending task and returns it with its assigned id.
func (s *TaskService) Create(ctx context.Context, in CreateInput) (task.Task, error) {
	due, err := task.ParseOptionalTime(in.Due, s.loc)
	if err != nil {
		return task.Task{}, &task.ValidationError{Field: "due", Reason: err.Error()}
	}

	t := task.Task{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Due:         due,
		Tags:        strings.TrimSpace(in.Tags),
		Status:      task.StatusPending,
	}
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}

	id, err := s.store.Insert(ctx, t)
	if err != nil {
		return task.Task{}, fmt.Errorf("create task: %w", err)
	}

	s.log.Info().Int64("id", id).Str("title", t.Title).Msg("task created")
	return s.store.Get(ctx, id)
}

// Get resolves a reference to a task.
func (s *TaskService) Get(ctx context.Context, ref task.Ref) (task.Task, error) {
	return s.store.Resolve(ctx, ref)
}

// List returns tasks ordered by due date, undated last.
func (s *TaskService) List(ctx context.Context, filter task.Filter) ([]task.Task, error) {
	return s.store.List(ctx, filter)
}

// Delete removes the referenced task and returns its id. A reference that
// resolves to nothing returns task.ErrNotFound.
func (s *TaskService) Delete(ctx context.Context, ref task.Ref) (int64, error) {
	if ref.IsID() {
		err := s.store.Delete(ctx, ref.ID)
		if err == nil {
			s.log.Info().Int64("id", ref.ID).Msg("task deleted")
			return ref.ID, nil
		}
		if !errors.Is(err, task.ErrNotFound) || !ref.TitleFallback() {
			return 0, err
		}
	}

	id, err := s.store.DeleteByTitle(ctx, ref.Title)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("id", id).Str("title", ref.Title).Msg("task deleted")
	return id, nil
}

// SetStatus overwrites the status of the referenced task. The lookup and the
// write happen in one store transaction.
func (s *TaskService) SetStatus(ctx context.Context, ref task.Ref, status task.Status) (task.Task, error) {
	if !status.Valid() {
		return task.Task{}, &task.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	t, err := s.store.Update(ctx, ref, task.StatusPatch(status))
	if err != nil {
		return task.Task{}, err
	}

	s.log.Info().Int64("id", t.ID).Str("status", string(status)).Msg("task status changed")
	return t, nil
}

// Update applies a partial update to the referenced task.
func (s *TaskService) Update(ctx context.Context, ref task.Ref, patch task.Patch) (task.Task, error) {
	return s.store.Update(ctx, ref, patch)
}
