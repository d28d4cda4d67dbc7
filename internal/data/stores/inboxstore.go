package stores

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/taskrelay/internal/core/inbox"
	"github.com/colonyops/taskrelay/internal/data/db"
)

// InboxStore implements inbox.Store using SQLite.
type InboxStore struct {
	db *db.DB
}

var _ inbox.Store = (*InboxStore)(nil)

// NewInboxStore creates a new SQLite-backed inbox.
func NewInboxStore(db *db.DB) *InboxStore {
	return &InboxStore{db: db}
}

// Append stores a message. Blank text is rejected.
func (s *InboxStore) Append(ctx context.Context, m inbox.Message) (int64, error) {
	if strings.TrimSpace(m.Text) == "" {
		return 0, fmt.Errorf("append inbox message: empty text")
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now()
	}

	id, err := s.db.Queries().InsertInboxMessage(ctx, db.InsertInboxMessageParams{
		Chat:       toNullString(m.Chat),
		Text:       m.Text,
		ReceivedAt: m.ReceivedAt.UnixNano(),
	})
	if err != nil {
		return 0, fmt.Errorf("append inbox message: %w", err)
	}
	return id, nil
}

// After returns messages past offset, oldest first.
func (s *InboxStore) After(ctx context.Context, offset int64, limit int) ([]inbox.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Queries().ListInboxMessagesAfter(ctx, db.ListInboxMessagesAfterParams{
		After: offset,
		Limit: int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list inbox messages: %w", err)
	}

	msgs := make([]inbox.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, inbox.Message{
			ID:         row.ID,
			Chat:       fromNullString(row.Chat),
			Text:       row.Text,
			ReceivedAt: time.Unix(0, row.ReceivedAt),
		})
	}
	return msgs, nil
}
