package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/taskrelay/internal/core/notify"
	"github.com/colonyops/taskrelay/internal/data/db"
)

// NotifyStore is the delivery log behind "taskrelay notifications".
type NotifyStore struct {
	db *db.DB
}

var _ notify.Store = (*NotifyStore)(nil)

func NewNotifyStore(database *db.DB) *NotifyStore {
	return &NotifyStore{db: database}
}

// Save appends one delivery attempt. An empty Error is stored as NULL.
func (s *NotifyStore) Save(ctx context.Context, n notify.Notification) (int64, error) {
	id, err := s.db.Queries().InsertNotification(ctx, db.InsertNotificationParams{
		Level:     string(n.Level),
		Message:   n.Message,
		Error:     toNullString(n.Error),
		CreatedAt: n.CreatedAt.UnixNano(),
	})
	if err != nil {
		return 0, fmt.Errorf("record %s notification: %w", n.Level, err)
	}
	return id, nil
}

func (s *NotifyStore) List(ctx context.Context, limit int) ([]notify.Notification, error) {
	lim := int64(limit)
	if limit <= 0 {
		lim = -1 // SQLite reads a negative LIMIT as unbounded
	}
	rows, err := s.db.Queries().ListNotifications(ctx, lim)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	out := make([]notify.Notification, len(rows))
	for i, row := range rows {
		out[i] = notify.Notification{
			ID:        row.ID,
			Level:     notify.Level(row.Level),
			Message:   row.Message,
			Error:     fromNullString(row.Error),
			CreatedAt: time.Unix(0, row.CreatedAt),
		}
	}
	return out, nil
}

func (s *NotifyStore) Clear(ctx context.Context) (int64, error) {
	n, err := s.db.Queries().DeleteAllNotifications(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	return n, nil
}
