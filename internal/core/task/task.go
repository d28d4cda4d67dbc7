// Package task defines the task domain model shared by the client and server
// stores, the replication engine and the reminder scheduler.
package task

import (
	"strconv"
	"strings"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPrincipal Status = "principal" // in progress / highlighted
	StatusDone      Status = "done"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusPrincipal, StatusDone}

// Task is the unit of work tracked by the system.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	Created     time.Time  `json:"created"`
	Status      Status     `json:"status"`
	Tags        string     `json:"tags,omitempty"`
	Notified    Tiers      `json:"notified,omitempty"`
}

// HasDue reports whether the task carries a deadline.
func (t Task) HasDue() bool {
	return t.Due != nil && !t.Due.IsZero()
}

// Filter selects which tasks List returns.
type Filter int

const (
	FilterAll Filter = iota
	FilterNotDone
)

// String returns the flag form of the filter.
func (f Filter) String() string {
	if f == FilterNotDone {
		return "not-done"
	}
	return "all"
}

// Ref references a task either by numeric id or by title.
type Ref struct {
	ID    int64
	Title string
}

// ByID returns an id reference.
func ByID(id int64) Ref { return Ref{ID: id} }

// ByTitle returns a title reference.
func ByTitle(title string) Ref { return Ref{Title: title} }

// ParseRef interprets s as an id when it is a positive integer and as a title
// otherwise. A numeric reference keeps its text in Title so that a task named
// "2024" is still reachable when no task has that id.
func ParseRef(s string) Ref {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
		return Ref{ID: id, Title: s}
	}
	return Ref{Title: s}
}

// IsID reports whether the reference is by id.
func (r Ref) IsID() bool { return r.ID > 0 }

// TitleFallback reports whether an id reference that matched nothing should
// be retried as a title.
func (r Ref) TitleFallback() bool { return r.IsID() && r.Title != "" }

func (r Ref) String() string {
	if r.IsID() {
		return "#" + strconv.FormatInt(r.ID, 10)
	}
	return strconv.Quote(r.Title)
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string
	Description *string
	Due         *time.Time
	ClearDue    bool
	Status      *Status
	Tags        *string
}

// Apply returns t with the patch applied. It does not validate.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.ClearDue {
		t.Due = nil
	} else if p.Due != nil {
		due := *p.Due
		t.Due = &due
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Tags != nil {
		t.Tags = *p.Tags
	}
	return t
}

// ChangesDue reports whether applying the patch to t moves its deadline.
func (p Patch) ChangesDue(t Task) bool {
	switch {
	case p.ClearDue:
		return t.HasDue()
	case p.Due == nil:
		return false
	case !t.HasDue():
		return true
	default:
		return !t.Due.Equal(*p.Due)
	}
}

// StatusPatch is shorthand for a patch that only sets the status.
func StatusPatch(s Status) Patch {
	return Patch{Status: &s}
}

// Validate checks the record invariants that do not depend on the store.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if t.Status != "" && !t.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status " + strconv.Quote(string(t.Status))}
	}
	return nil
}
