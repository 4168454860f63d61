// Package store provides the durable key-value adapters the chat core
// persists through. The host storage is abstracted behind KV so the
// repository can run against SQLite, Redis, or an in-memory map.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("store: key not found")

// KV is a flat string key-value store. All chat records are namespaced
// by the caller; adapters never interpret keys.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
