package kv

import (
	"context"
	"strings"
)

// TypedKV reads and writes values of one type under a key namespace.
type TypedKV[T any] struct {
	store  KV
	prefix string
}

// Scoped returns a TypedKV[T] that prefixes all keys with "namespace:".
func Scoped[T any](store KV, namespace string) *TypedKV[T] {
	return &TypedKV[T]{
		store:  store,
		prefix: namespace + ":",
	}
}

func (t *TypedKV[T]) Get(ctx context.Context, key string) (T, error) {
	var v T
	if err := t.store.Get(ctx, t.prefix+key, &v); err != nil {
		return v, err
	}
	return v, nil
}

// GetOr returns def when the key is missing. Other errors are returned.
func (t *TypedKV[T]) GetOr(ctx context.Context, key string, def T) (T, error) {
	v, err := t.Get(ctx, key)
	if IsMissing(err) {
		return def, nil
	}
	return v, err
}

// Set stores a value.
func (t *TypedKV[T]) Set(ctx context.Context, key string, value T) error {
	return t.store.Set(ctx, t.prefix+key, value)
}

// Delete removes a key.
func (t *TypedKV[T]) Delete(ctx context.Context, key string) error {
	return t.store.Delete(ctx, t.prefix+key)
}

// Keys lists the keys in this namespace with the prefix stripped.
func (t *TypedKV[T]) Keys(ctx context.Context) ([]string, error) {
	keys, err := t.store.ListKeys(ctx, t.prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, t.prefix))
	}
	return out, nil
}
