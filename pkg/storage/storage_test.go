package storage

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestMemoryStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, KeyUserData, `{"email":"a@b.com"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, err := store.Get(ctx, KeyUserData)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(val, "a@b.com") {
		t.Fatalf("unexpected value %q", val)
	}

	if err := store.Delete(ctx, KeyUserData, "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d keys", store.Len())
	}
}

func TestTokenKeeperMirrorsLegacyKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	keeper := NewTokenKeeper(store)

	if err := keeper.Save(ctx, "tok123"); err != nil {
		t.Fatalf("save: %v", err)
	}

	primary, _ := store.Get(ctx, KeyAuthToken)
	legacy, _ := store.Get(ctx, KeyLegacyToken)
	if primary != "tok123" || legacy != "tok123" {
		t.Fatalf("expected both keys to hold tok123, got primary=%q legacy=%q", primary, legacy)
	}

	token, source, err := keeper.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if token != "tok123" || source != TokenSourcePrimary {
		t.Fatalf("expected primary tok123, got %q from %s", token, source)
	}
}

func TestTokenKeeperLegacyFallback(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	keeper := NewTokenKeeper(store)

	// Only the legacy key holds a value, as left behind by an older client.
	if err := store.Set(ctx, KeyLegacyToken, "old-tok"); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}

	token, source, err := keeper.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if token != "old-tok" || source != TokenSourceLegacy {
		t.Fatalf("expected legacy fallback, got %q from %s", token, source)
	}

	if err := keeper.Backfill(ctx, token); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	primary, err := store.Get(ctx, KeyAuthToken)
	if err != nil || primary != "old-tok" {
		t.Fatalf("expected backfilled primary key, got %q err=%v", primary, err)
	}
}

func TestTokenKeeperClearRemovesBothKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	keeper := NewTokenKeeper(store)

	if err := keeper.Save(ctx, "tok123"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := keeper.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, _, err := keeper.Load(ctx); err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if token, source, _ := keeper.Load(ctx); token != "" || source != TokenSourceNone {
		t.Fatalf("expected no token after clear, got %q from %s", token, source)
	}

	// Clearing an already cleared keeper is a no-op.
	if err := keeper.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestSealedStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}

	inner := NewMemory()
	sealed, err := NewSealed(inner, base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("new sealed: %v", err)
	}

	if err := sealed.Set(ctx, KeyAuthToken, "tok123"); err != nil {
		t.Fatalf("set: %v", err)
	}

	raw, err := inner.Get(ctx, KeyAuthToken)
	if err != nil {
		t.Fatalf("inner get: %v", err)
	}
	if strings.Contains(raw, "tok123") {
		t.Fatalf("token stored in plaintext: %q", raw)
	}

	val, err := sealed.Get(ctx, KeyAuthToken)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "tok123" {
		t.Fatalf("expected decrypted token, got %q", val)
	}
}

func TestSealedStoreRejectsBadKey(t *testing.T) {
	if _, err := NewSealed(NewMemory(), "not-base64!!"); err == nil {
		t.Fatal("expected invalid base64 to fail")
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := NewSealed(NewMemory(), short); err == nil {
		t.Fatal("expected short key to fail")
	}
}
