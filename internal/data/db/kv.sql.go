package db

import "context"

const kvGet = `SELECT key, value, created_at, updated_at FROM kv_store WHERE key = ?`

func (q *Queries) KVGet(ctx context.Context, key string) (KvStore, error) {
	row := q.db.QueryRowContext(ctx, kvGet, key)
	var i KvStore
	err := row.Scan(
		&i.Key,
		&i.Value,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const kvSet = `
INSERT INTO kv_store (key, value, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (key) DO UPDATE SET
    value = excluded.value,
    updated_at = excluded.updated_at
`

type KVSetParams struct {
	Key       string
	Value     []byte
	CreatedAt int64
	UpdatedAt int64
}

func (q *Queries) KVSet(ctx context.Context, arg KVSetParams) error {
	_, err := q.db.ExecContext(ctx, kvSet,
		arg.Key,
		arg.Value,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const kvDelete = `DELETE FROM kv_store WHERE key = ?`

func (q *Queries) KVDelete(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, kvDelete, key)
	return err
}

const kvListKeys = `SELECT key FROM kv_store WHERE key LIKE ? ORDER BY key`

// KVListKeys returns keys beginning with prefix. An empty prefix lists all.
func (q *Queries) KVListKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, kvListKeys, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		items = append(items, key)
	}
	return items, rows.Err()
}
