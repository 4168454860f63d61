package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openAdapters(t *testing.T) map[string]KV {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return map[string]KV{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestKVAdapters(t *testing.T) {
	ctx := context.Background()
	for name, kv := range openAdapters(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing key: expected ErrNotFound, got %v", err)
			}

			if err := kv.Set(ctx, "chat_u1_s1", `{"v":1}`); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, err := kv.Get(ctx, "chat_u1_s1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got != `{"v":1}` {
				t.Fatalf("get: got %q", got)
			}

			// Set replaces, never merges.
			if err := kv.Set(ctx, "chat_u1_s1", `{"v":2}`); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, err = kv.Get(ctx, "chat_u1_s1")
			if err != nil {
				t.Fatalf("get after overwrite: %v", err)
			}
			if got != `{"v":2}` {
				t.Fatalf("overwrite: got %q", got)
			}

			if err := kv.Delete(ctx, "chat_u1_s1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := kv.Get(ctx, "chat_u1_s1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("deleted key: expected ErrNotFound, got %v", err)
			}

			// Deleting an absent key is not an error.
			if err := kv.Delete(ctx, "chat_u1_s1"); err != nil {
				t.Fatalf("delete absent: %v", err)
			}
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	first, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Set(ctx, "chats_list_u1", "[]"); err != nil {
		t.Fatalf("set: %v", err)
	}

	second, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := second.Get(ctx, "chats_list_u1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got != "[]" {
		t.Fatalf("get after reopen: got %q", got)
	}
}
