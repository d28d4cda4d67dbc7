// Package inbox holds inbound chat messages awaiting command dispatch.
package inbox

import (
	"context"
	"time"
)

// Message is one inbound chat message.
type Message struct {
	ID         int64     `json:"id"`
	Chat       string    `json:"chat,omitempty"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Store is an append-only queue read by offset.
type Store interface {
	// Append stores a message and returns its id. Ids increase monotonically.
	Append(ctx context.Context, m Message) (int64, error)
	// After returns up to limit messages with id greater than offset, oldest first.
	After(ctx context.Context, offset int64, limit int) ([]Message, error)
}
