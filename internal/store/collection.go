package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Collection is a typed view of one key holding a JSON array.
// Every write replaces the whole array.
type Collection[T any] struct {
	kv  KV
	key string
}

func NewCollection[T any](kv KV, key string) Collection[T] {
	return Collection[T]{kv: kv, key: key}
}

// Key returns the storage key backing the collection.
func (c Collection[T]) Key() string { return c.key }

// Read returns the stored items, or an empty slice when the key was never
// written. A blob that does not decode is a storage failure.
func (c Collection[T]) Read(ctx context.Context) ([]T, error) {
	raw, ok, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return nil, err
	}
	items := []T{}
	if !ok || strings.TrimSpace(raw) == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fail("decode", c.key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Write replaces the stored array with items.
func (c Collection[T]) Write(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fail("encode", c.key, err)
	}
	return c.kv.Set(ctx, c.key, string(b))
}

// Document is a typed view of one key holding a single JSON value whose
// absence is meaningful.
type Document[T any] struct {
	kv  KV
	key string
}

func NewDocument[T any](kv KV, key string) Document[T] {
	return Document[T]{kv: kv, key: key}
}

// Load returns the stored value and whether one was present.
func (d Document[T]) Load(ctx context.Context) (T, bool, error) {
	var v T
	raw, ok, err := d.kv.Get(ctx, d.key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, false, fail("decode", d.key, err)
	}
	return v, true, nil
}

func (d Document[T]) Save(ctx context.Context, v T) error {
	return d.SaveFor(ctx, v, 0)
}

// SaveFor stores v so that it loads as absent after ttl. A ttl <= 0 keeps it
// until cleared.
func (d Document[T]) SaveFor(ctx context.Context, v T, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fail("encode", d.key, err)
	}
	return d.kv.SetTTL(ctx, d.key, string(b), ttl)
}

func (d Document[T]) Clear(ctx context.Context) error {
	return d.kv.Remove(ctx, d.key)
}
