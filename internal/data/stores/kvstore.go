package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colonyops/taskrelay/internal/core/kv"
	"github.com/colonyops/taskrelay/internal/data/db"
)

// KVStore keeps JSON-encoded values in the kv_store table.
type KVStore struct {
	db  *db.DB
	now func() time.Time
}

var _ kv.KV = (*KVStore)(nil)

func NewKVStore(database *db.DB) *KVStore {
	return &KVStore{db: database, now: time.Now}
}

func (s *KVStore) Get(ctx context.Context, key string, dest any) error {
	row, err := s.db.Queries().KVGet(ctx, key)
	if err != nil {
		return kvErr("get", key, err)
	}
	if err := json.Unmarshal(row.Value, dest); err != nil {
		return kvErr("decode", key, err)
	}
	return nil
}

// Set upserts key. created_at is kept from the first write.
func (s *KVStore) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return kvErr("encode", key, err)
	}

	stamp := s.now().UnixNano()
	err = s.db.Queries().KVSet(ctx, db.KVSetParams{Key: key, Value: data, CreatedAt: stamp, UpdatedAt: stamp})
	return kvErr("set", key, err)
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	return kvErr("delete", key, s.db.Queries().KVDelete(ctx, key))
}

// ListKeys returns the keys beginning with prefix in byte order.
func (s *KVStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.db.Queries().KVListKeys(ctx, prefix)
	return keys, kvErr("list", prefix+"*", err)
}

// kvErr wraps err with the operation and key. It returns nil for a nil err.
func kvErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("kv %s %q: %w", op, key, err)
}
