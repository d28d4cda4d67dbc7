package replica

import (
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/taskrelay/internal/core/task"
)

// Record is the wire form of one task. Timestamps travel as text so that
// naive values written by older clients can be read in the configured zone.
type Record struct {
	ID          int64      `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Due         string     `json:"due,omitempty"`
	Created     string     `json:"created,omitempty"`
	Status      string     `json:"status,omitempty"`
	Tags        string     `json:"tags,omitempty"`
	Notified    task.Tiers `json:"notified,omitempty"`
}

// Snapshot is the full task set exchanged by push and pull.
type Snapshot struct {
	Tasks       []Record   `json:"tasks"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
}

// FromTasks builds a snapshot of tasks.
func FromTasks(tasks []task.Task, now time.Time) Snapshot {
	records := make([]Record, 0, len(tasks))
	for _, t := range tasks {
		r := Record{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Created:     task.FormatTime(t.Created),
			Status:      string(t.Status),
			Tags:        t.Tags,
			Notified:    t.Notified,
		}
		if t.HasDue() {
			r.Due = task.FormatTime(*t.Due)
		}
		records = append(records, r)
	}

	generated := now.UTC().Truncate(time.Second)
	return Snapshot{Tasks: records, GeneratedAt: &generated}
}

// Decode validates every record and converts the snapshot to tasks ready for
// ReplaceAll. A snapshot without a tasks array is rejected; an empty array is
// the way to clear a store. Naive timestamps are read in loc. Records without
// an id get ids above the largest supplied id, in snapshot order. A record
// without a created time keeps the one prior holds for its id, and only a
// task new to the receiver is stamped with now.
func (s Snapshot) Decode(loc *time.Location, now time.Time, prior map[int64]time.Time) ([]task.Task, error) {
	if s.Tasks == nil {
		return nil, &SyncError{Index: -1, Reason: `missing "tasks" array`}
	}

	tasks := make([]task.Task, 0, len(s.Tasks))
	seen := make(map[int64]int, len(s.Tasks))

	var maxID int64
	for i, r := range s.Tasks {
		if r.ID < 0 {
			return nil, &SyncError{Index: i, Field: "id", Reason: fmt.Sprintf("must be positive, got %d", r.ID)}
		}
		if r.ID == 0 {
			continue
		}
		if first, dup := seen[r.ID]; dup {
			return nil, &SyncError{Index: i, Field: "id", Reason: fmt.Sprintf("%d duplicates task %d", r.ID, first)}
		}
		seen[r.ID] = i
		maxID = max(maxID, r.ID)
	}

	for i, r := range s.Tasks {
		id := r.ID
		if id == 0 {
			maxID++
			id = maxID
		}

		created, known := prior[id]
		if !known {
			created = now
		}

		t, err := r.toTask(loc, created)
		if err != nil {
			return nil, &SyncError{Index: i, Field: err.field, Reason: err.reason}
		}
		t.ID = id
		tasks = append(tasks, t)
	}

	return tasks, nil
}

type recordError struct {
	field  string
	reason string
}

// toTask converts r, using defaultCreated when r carries no created time.
func (r Record) toTask(loc *time.Location, defaultCreated time.Time) (task.Task, *recordError) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return task.Task{}, &recordError{field: "title", reason: "must not be empty"}
	}

	status := task.StatusPending
	if r.Status != "" {
		status = task.Status(r.Status)
		if !status.Valid() {
			return task.Task{}, &recordError{field: "status", reason: fmt.Sprintf("unknown status %q", r.Status)}
		}
	}

	due, err := task.ParseOptionalTime(r.Due, loc)
	if err != nil {
		return task.Task{}, &recordError{field: "due", reason: err.Error()}
	}

	created := defaultCreated
	if strings.TrimSpace(r.Created) != "" {
		created, err = task.ParseTime(r.Created, loc)
		if err != nil {
			return task.Task{}, &recordError{field: "created", reason: err.Error()}
		}
	}

	return task.Task{
		ID:          r.ID,
		Title:       title,
		Description: r.Description,
		Due:         due,
		Created:     created,
		Status:      status,
		Tags:        r.Tags,
		Notified:    r.Notified,
	}, nil
}
