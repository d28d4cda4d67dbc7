package db

import (
	"context"
	"database/sql"
)

const insertNotification = `
INSERT INTO notifications (level, message, error, created_at)
VALUES (?, ?, ?, ?)
RETURNING id
`

type InsertNotificationParams struct {
	Level     string
	Message   string
	Error     sql.NullString
	CreatedAt int64
}

func (q *Queries) InsertNotification(ctx context.Context, arg InsertNotificationParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertNotification,
		arg.Level,
		arg.Message,
		arg.Error,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listNotifications = `
SELECT id, level, message, error, created_at FROM notifications
ORDER BY created_at DESC, id DESC
LIMIT ?
`

// ListNotifications returns the newest notifications first. A negative limit
// returns every row.
func (q *Queries) ListNotifications(ctx context.Context, limit int64) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listNotifications, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Notification
	for rows.Next() {
		var i Notification
		if err := rows.Scan(
			&i.ID,
			&i.Level,
			&i.Message,
			&i.Error,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteAllNotifications = `DELETE FROM notifications`

// DeleteAllNotifications empties the table and returns how many rows it held.
func (q *Queries) DeleteAllNotifications(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAllNotifications)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
