package db

import (
	"context"
	"database/sql"
)

const insertInboxMessage = `
INSERT INTO inbox_messages (chat, text, received_at)
VALUES (?, ?, ?)
RETURNING id
`

type InsertInboxMessageParams struct {
	Chat       sql.NullString
	Text       string
	ReceivedAt int64
}

func (q *Queries) InsertInboxMessage(ctx context.Context, arg InsertInboxMessageParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertInboxMessage, arg.Chat, arg.Text, arg.ReceivedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listInboxMessagesAfter = `
SELECT id, chat, text, received_at FROM inbox_messages
WHERE id > ?
ORDER BY id
LIMIT ?
`

type ListInboxMessagesAfterParams struct {
	After int64
	Limit int64
}

func (q *Queries) ListInboxMessagesAfter(ctx context.Context, arg ListInboxMessagesAfterParams) ([]InboxMessage, error) {
	rows, err := q.db.QueryContext(ctx, listInboxMessagesAfter, arg.After, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []InboxMessage
	for rows.Next() {
		var i InboxMessage
		if err := rows.Scan(
			&i.ID,
			&i.Chat,
			&i.Text,
			&i.ReceivedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
