package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/taskrelay/internal/core/task"
	"github.com/colonyops/taskrelay/internal/data/db"
)

// TaskStore implements task.Store using SQLite.
type TaskStore struct {
	db  *db.DB
	loc *time.Location
	now func() time.Time
}

var _ task.Store = (*TaskStore)(nil)

// NewTaskStore creates a new SQLite-backed task store. Stored timestamps
// without an offset are read in loc; nil means UTC.
func NewTaskStore(database *db.DB, loc *time.Location) *TaskStore {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskStore{db: database, loc: loc, now: time.Now}
}

// Insert persists a new task and returns the assigned id. Any id on t is
// ignored.
func (s *TaskStore) Insert(ctx context.Context, t task.Task) (int64, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Status == "" {
		t.Status = task.StatusPending
	}
	if t.Created.IsZero() {
		t.Created = s.now()
	}
	if err := t.Validate(); err != nil {
		return 0, err
	}

	id, err := s.db.Queries().InsertTask(ctx, db.InsertTaskParams{
		Title:       t.Title,
		Description: toNullString(t.Description),
		Due:         dueToNull(t.Due),
		Created:     task.FormatTime(t.Created),
		Status:      string(t.Status),
		Tags:        toNullString(t.Tags),
		Notified:    int64(t.Notified),
	})
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}

	return id, nil
}

// Get returns a task by id.
func (s *TaskStore) Get(ctx context.Context, id int64) (task.Task, error) {
	return s.getTask(ctx, s.db.Queries(), id)
}

// FindByTitle returns the lowest-id task whose title equals title under
// Unicode case folding.
func (s *TaskStore) FindByTitle(ctx context.Context, title string) (task.Task, error) {
	return s.findByTitle(ctx, s.db.Queries(), title)
}

// Resolve looks up a task by id or title.
func (s *TaskStore) Resolve(ctx context.Context, ref task.Ref) (task.Task, error) {
	return s.resolve(ctx, s.db.Queries(), ref)
}

// List returns tasks ordered by due ascending, undated last, ties by id.
func (s *TaskStore) List(ctx context.Context, filter task.Filter) ([]task.Task, error) {
	var (
		rows []db.Task
		err  error
	)
	switch filter {
	case task.FilterNotDone:
		rows, err = s.db.Queries().ListOpenTasks(ctx)
	default:
		rows, err = s.db.Queries().ListTasks(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]task.Task, 0, len(rows))
	for _, row := range rows {
		t, err := s.rowToTask(row)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	return tasks, nil
}

// Update resolves ref and applies patch in one transaction. Moving the due
// date clears the notified bits so the new deadline is announced again.
func (s *TaskStore) Update(ctx context.Context, ref task.Ref, patch task.Patch) (task.Task, error) {
	var updated task.Task
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		cur, err := s.resolve(ctx, q, ref)
		if err != nil {
			return err
		}

		next := patch.Apply(cur)
		if err := next.Validate(); err != nil {
			return err
		}
		if patch.ChangesDue(cur) {
			next.Notified = 0
		}

		n, err := q.UpdateTask(ctx, db.UpdateTaskParams{
			Title:       next.Title,
			Description: toNullString(next.Description),
			Due:         dueToNull(next.Due),
			Status:      string(next.Status),
			Tags:        toNullString(next.Tags),
			Notified:    int64(next.Notified),
			ID:          cur.ID,
		})
		if err != nil {
			return fmt.Errorf("update task %d: %w", cur.ID, err)
		}
		if n == 0 {
			return task.ErrNotFound
		}

		updated = next
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}

	return updated, nil
}

// Delete removes a task by id.
func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	n, err := s.db.Queries().DeleteTask(ctx, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if n == 0 {
		return task.ErrNotFound
	}
	return nil
}

// DeleteByTitle removes the first task matching title and returns its id.
func (s *TaskStore) DeleteByTitle(ctx context.Context, title string) (int64, error) {
	var id int64
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		t, err := s.findByTitle(ctx, q, title)
		if err != nil {
			return err
		}
		if _, err := q.DeleteTask(ctx, t.ID); err != nil {
			return fmt.Errorf("delete task %d: %w", t.ID, err)
		}
		id = t.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ReplaceAll swaps the entire table for tasks in a single transaction. Every
// task must carry a positive, unique id. Nothing is written when any record
// is rejected.
func (s *TaskStore) ReplaceAll(ctx context.Context, tasks []task.Task) error {
	params := make([]db.Task, 0, len(tasks))
	seen := make(map[int64]struct{}, len(tasks))
	now := s.now()

	for i, t := range tasks {
		if t.ID <= 0 {
			return &task.ValidationError{Field: "id", Reason: fmt.Sprintf("record %d has no id", i)}
		}
		if _, dup := seen[t.ID]; dup {
			return &task.ValidationError{Field: "id", Reason: fmt.Sprintf("duplicate id %d", t.ID)}
		}
		seen[t.ID] = struct{}{}

		t.Title = strings.TrimSpace(t.Title)
		if t.Status == "" {
			t.Status = task.StatusPending
		}
		if t.Created.IsZero() {
			t.Created = now
		}
		if err := t.Validate(); err != nil {
			return err
		}

		params = append(params, db.Task{
			ID:          t.ID,
			Title:       t.Title,
			Description: toNullString(t.Description),
			Due:         dueToNull(t.Due),
			Created:     task.FormatTime(t.Created),
			Status:      string(t.Status),
			Tags:        toNullString(t.Tags),
			Notified:    int64(t.Notified),
		})
	}

	return s.db.WithTx(ctx, func(q *db.Queries) error {
		if err := q.DeleteAllTasks(ctx); err != nil {
			return fmt.Errorf("clear tasks: %w", err)
		}
		for _, p := range params {
			if err := q.InsertTaskWithID(ctx, p); err != nil {
				if isUniqueConstraintError(err) {
					return &task.ValidationError{Field: "id", Reason: fmt.Sprintf("duplicate id %d", p.ID)}
				}
				return fmt.Errorf("insert task %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

// MarkNotified ORs tier bits into a task's notified column.
func (s *TaskStore) MarkNotified(ctx context.Context, id int64, tiers task.Tiers) error {
	if tiers == 0 {
		return nil
	}
	err := s.db.Queries().SetTaskNotified(ctx, db.SetTaskNotifiedParams{
		Bits: int64(tiers),
		ID:   id,
	})
	if err != nil {
		return fmt.Errorf("mark task %d notified: %w", id, err)
	}
	return nil
}

// Count returns the number of stored tasks.
func (s *TaskStore) Count(ctx context.Context) (int64, error) {
	n, err := s.db.Queries().CountTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

func (s *TaskStore) getTask(ctx context.Context, q *db.Queries, id int64) (task.Task, error) {
	row, err := q.GetTask(ctx, id)
	if err != nil {
		if IsNotFoundError(err) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return s.rowToTask(row)
}

func (s *TaskStore) findByTitle(ctx context.Context, q *db.Queries, title string) (task.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return task.Task{}, task.ErrNotFound
	}

	rows, err := q.ListTasksByID(ctx)
	if err != nil {
		return task.Task{}, fmt.Errorf("find task by title: %w", err)
	}
	for _, row := range rows {
		if strings.EqualFold(strings.TrimSpace(row.Title), title) {
			return s.rowToTask(row)
		}
	}
	return task.Task{}, task.ErrNotFound
}

// resolve looks ref up by id first. An id that matches nothing is retried as
// a title when the reference was parsed from text.
func (s *TaskStore) resolve(ctx context.Context, q *db.Queries, ref task.Ref) (task.Task, error) {
	if !ref.IsID() {
		return s.findByTitle(ctx, q, ref.Title)
	}
	t, err := s.getTask(ctx, q, ref.ID)
	if errors.Is(err, task.ErrNotFound) && ref.TitleFallback() {
		return s.findByTitle(ctx, q, ref.Title)
	}
	return t, err
}

func (s *TaskStore) rowToTask(row db.Task) (task.Task, error) {
	created, err := task.ParseTime(row.Created, s.loc)
	if err != nil {
		return task.Task{}, fmt.Errorf("task %d created: %w", row.ID, err)
	}

	t := task.Task{
		ID:          row.ID,
		Title:       row.Title,
		Description: fromNullString(row.Description),
		Created:     created,
		Status:      task.Status(row.Status),
		Tags:        fromNullString(row.Tags),
		Notified:    task.Tiers(row.Notified),
	}

	if row.Due.Valid && row.Due.String != "" {
		due, err := task.ParseTime(row.Due.String, s.loc)
		if err != nil {
			return task.Task{}, fmt.Errorf("task %d due: %w", row.ID, err)
		}
		t.Due = &due
	}

	return t, nil
}

func dueToNull(due *time.Time) sql.NullString {
	if due == nil || due.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: task.FormatTime(*due), Valid: true}
}
