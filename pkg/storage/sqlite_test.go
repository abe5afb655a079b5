package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestSQLiteStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})

	if _, err := store.Get(ctx, KeyAuthToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on fresh store, got %v", err)
	}

	if err := store.Set(ctx, KeyAuthToken, "tok123"); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Overwrite must upsert, not duplicate.
	if err := store.Set(ctx, KeyAuthToken, "tok456"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	val, err := store.Get(ctx, KeyAuthToken)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "tok456" {
		t.Fatalf("expected latest value, got %q", val)
	}

	if err := store.Delete(ctx, KeyAuthToken, KeyLegacyToken); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, KeyAuthToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := store.Set(ctx, KeySessionState, `{"isAuthenticated":true}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	val, err := reopened.Get(ctx, KeySessionState)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if val != `{"isAuthenticated":true}` {
		t.Fatalf("unexpected persisted value %q", val)
	}
}
