package db

import "database/sql"

type Task struct {
	ID          int64
	Title       string
	Description sql.NullString
	Due         sql.NullString
	Created     string
	Status      string
	Tags        sql.NullString
	Notified    int64
}

type KvStore struct {
	Key       string
	Value     []byte
	CreatedAt int64
	UpdatedAt int64
}

type Notification struct {
	ID        int64
	Level     string
	Message   string
	Error     sql.NullString
	CreatedAt int64
}

type InboxMessage struct {
	ID         int64
	Chat       sql.NullString
	Text       string
	ReceivedAt int64
}
