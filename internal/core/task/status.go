package task

import (
	"fmt"
	"strings"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPrincipal, StatusDone:
		return true
	default:
		return false
	}
}

// Label returns the human label used in messages.
func (s Status) Label() string {
	switch s {
	case StatusPrincipal:
		return "In progress"
	case StatusDone:
		return "Done"
	default:
		return "Pending"
	}
}

// ParseStatus accepts the canonical names plus a few aliases used by the CLI
// and the inbox commands.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "todo", "open":
		return StatusPending, nil
	case "principal", "in-progress", "in_progress", "progress", "doing":
		return StatusPrincipal, nil
	case "done", "complete", "completed":
		return StatusDone, nil
	default:
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
}

// CanTransition reports whether a task may move from one status to another.
// Every transition among the three statuses is permitted, including
// re-opening a done task.
func CanTransition(from, to Status) bool {
	return from.Valid() && to.Valid()
}
