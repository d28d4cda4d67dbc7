package notify

import (
	"context"
	"time"
)

// Level represents the outcome of a delivery attempt.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is one recorded delivery attempt.
type Notification struct {
	ID        int64
	Level     Level
	Message   string
	Error     string
	CreatedAt time.Time
}

// Store persists delivery attempts to durable storage.
type Store interface {
	Save(ctx context.Context, n Notification) (int64, error)
	// List returns the newest limit notifications first. limit <= 0 lists all.
	List(ctx context.Context, limit int) ([]Notification, error)
	// Clear deletes every record and returns how many there were.
	Clear(ctx context.Context) (int64, error)
}
