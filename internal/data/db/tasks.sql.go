package db

import (
	"context"
	"database/sql"
)

const taskColumns = `id, title, description, due, created, status, tags, notified`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var i Task
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Description,
		&i.Due,
		&i.Created,
		&i.Status,
		&i.Tags,
		&i.Notified,
	)
	return i, err
}

func (q *Queries) scanTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Task
	for rows.Next() {
		i, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertTask = `
INSERT INTO tasks (title, description, due, created, status, tags, notified)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type InsertTaskParams struct {
	Title       string
	Description sql.NullString
	Due         sql.NullString
	Created     string
	Status      string
	Tags        sql.NullString
	Notified    int64
}

func (q *Queries) InsertTask(ctx context.Context, arg InsertTaskParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertTask,
		arg.Title,
		arg.Description,
		arg.Due,
		arg.Created,
		arg.Status,
		arg.Tags,
		arg.Notified,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const insertTaskWithID = `
INSERT INTO tasks (id, title, description, due, created, status, tags, notified)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertTaskWithID(ctx context.Context, arg Task) error {
	_, err := q.db.ExecContext(ctx, insertTaskWithID,
		arg.ID,
		arg.Title,
		arg.Description,
		arg.Due,
		arg.Created,
		arg.Status,
		arg.Tags,
		arg.Notified,
	)
	return err
}

const getTask = `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

func (q *Queries) GetTask(ctx context.Context, id int64) (Task, error) {
	return scanTask(q.db.QueryRowContext(ctx, getTask, id))
}

const listTasks = `
SELECT ` + taskColumns + ` FROM tasks
ORDER BY due IS NULL, due, id
`

func (q *Queries) ListTasks(ctx context.Context) ([]Task, error) {
	return q.scanTasks(ctx, listTasks)
}

const listOpenTasks = `
SELECT ` + taskColumns + ` FROM tasks
WHERE status != 'done'
ORDER BY due IS NULL, due, id
`

func (q *Queries) ListOpenTasks(ctx context.Context) ([]Task, error) {
	return q.scanTasks(ctx, listOpenTasks)
}

const listTasksByID = `SELECT ` + taskColumns + ` FROM tasks ORDER BY id`

func (q *Queries) ListTasksByID(ctx context.Context) ([]Task, error) {
	return q.scanTasks(ctx, listTasksByID)
}

const updateTask = `
UPDATE tasks
SET title = ?, description = ?, due = ?, status = ?, tags = ?, notified = ?
WHERE id = ?
`

type UpdateTaskParams struct {
	Title       string
	Description sql.NullString
	Due         sql.NullString
	Status      string
	Tags        sql.NullString
	Notified    int64
	ID          int64
}

func (q *Queries) UpdateTask(ctx context.Context, arg UpdateTaskParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTask,
		arg.Title,
		arg.Description,
		arg.Due,
		arg.Status,
		arg.Tags,
		arg.Notified,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setTaskNotified = `UPDATE tasks SET notified = notified | ? WHERE id = ?`

type SetTaskNotifiedParams struct {
	Bits int64
	ID   int64
}

func (q *Queries) SetTaskNotified(ctx context.Context, arg SetTaskNotifiedParams) error {
	_, err := q.db.ExecContext(ctx, setTaskNotified, arg.Bits, arg.ID)
	return err
}

const deleteTask = `DELETE FROM tasks WHERE id = ?`

func (q *Queries) DeleteTask(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTask, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteAllTasks = `DELETE FROM tasks`

func (q *Queries) DeleteAllTasks(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllTasks)
	return err
}

const countTasks = `SELECT COUNT(*) FROM tasks`

func (q *Queries) CountTasks(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countTasks).Scan(&count)
	return count, err
}
