// Package kv is the persistent key-value layer behind process state that
// must survive restarts: the reminder dedup record and the inbox read offset.
package kv

import (
	"context"
	"database/sql"
	"errors"
)

// KV stores JSON values under string keys. Get on a missing key returns an
// error wrapping sql.ErrNoRows.
type KV interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// IsMissing reports whether err means the key does not exist.
func IsMissing(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
