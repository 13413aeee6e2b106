package ledger

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore error: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if v, err := store.Get(ctx, "tokens_u1"); err != nil || v != "" {
		t.Fatalf("expected empty read, got %q err %v", v, err)
	}
	if err := store.Set(ctx, "tokens_u1", "3"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := store.Set(ctx, "tokens_u1", "5"); err != nil {
		t.Fatalf("Set (upsert) error: %v", err)
	}
	if v, err := store.Get(ctx, "tokens_u1"); err != nil || v != "5" {
		t.Fatalf("expected 5, got %q err %v", v, err)
	}
	if err := store.Delete(ctx, "tokens_u1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if v, _ := store.Get(ctx, "tokens_u1"); v != "" {
		t.Fatalf("expected removed, got %q", v)
	}
}
