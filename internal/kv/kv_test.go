package kv

import (
	"context"
	"path/filepath"
	"testing"
)

// backends returns every KV implementation under test.
func backends(t *testing.T) map[string]KV {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	sqlite, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]KV{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestKVGetSetRemove(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.GetItem(ctx, "missing")
			if err != nil {
				t.Fatalf("GetItem failed: %v", err)
			}
			if ok {
				t.Error("missing key should report ok=false")
			}

			if err := store.SetItem(ctx, "collection:patients", `[{"id":"pt-1"}]`); err != nil {
				t.Fatalf("SetItem failed: %v", err)
			}

			v, ok, err := store.GetItem(ctx, "collection:patients")
			if err != nil {
				t.Fatalf("GetItem failed: %v", err)
			}
			if !ok || v != `[{"id":"pt-1"}]` {
				t.Errorf("unexpected value: ok=%v v=%q", ok, v)
			}

			// Overwrite
			if err := store.SetItem(ctx, "collection:patients", `[]`); err != nil {
				t.Fatalf("SetItem overwrite failed: %v", err)
			}
			v, _, _ = store.GetItem(ctx, "collection:patients")
			if v != `[]` {
				t.Errorf("expected overwritten value, got %q", v)
			}

			if err := store.RemoveItem(ctx, "collection:patients"); err != nil {
				t.Fatalf("RemoveItem failed: %v", err)
			}
			_, ok, _ = store.GetItem(ctx, "collection:patients")
			if ok {
				t.Error("removed key should be gone")
			}

			// Removing again is idempotent
			if err := store.RemoveItem(ctx, "collection:patients"); err != nil {
				t.Errorf("removing a missing key should be a no-op, got %v", err)
			}
		})
	}
}

func TestKVKeys(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed := map[string]string{
				"archive:appointments":   "x",
				"archive:patients":       "x",
				"collection:patients":    "x",
				"collection:medications": "x",
			}
			for k, v := range seed {
				if err := store.SetItem(ctx, k, v); err != nil {
					t.Fatalf("SetItem failed: %v", err)
				}
			}

			keys, err := store.Keys(ctx, "archive:")
			if err != nil {
				t.Fatalf("Keys failed: %v", err)
			}
			if len(keys) != 2 {
				t.Fatalf("expected 2 archive keys, got %d: %v", len(keys), keys)
			}
			if keys[0] != "archive:appointments" || keys[1] != "archive:patients" {
				t.Errorf("keys not in lexical order: %v", keys)
			}
		})
	}
}

func TestSQLitePersistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "persist.db")

	store, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	if err := store.SetItem(ctx, "k", "v"); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen sqlite store: %v", err)
	}
	defer reopened.Close()

	v, ok, err := reopened.GetItem(ctx, "k")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !ok || v != "v" {
		t.Errorf("value did not survive reopen: ok=%v v=%q", ok, v)
	}
}
