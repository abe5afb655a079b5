// Package storage provides the durable key-value store that outlives the
// in-memory session, playing the role browser local storage played for the
// storefront SPA.
package storage

import (
	"context"
	"errors"
)

// Storage keys preserved for compatibility with the SPA's local storage.
const (
	KeyAuthToken    = "auth_token"
	KeyLegacyToken  = "anand_mobiles_token"
	KeyUserData     = "user_data"
	KeySessionState = "anand_mobiles_auth"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Store is a durable string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// TokenSource identifies which storage key produced a loaded token.
type TokenSource string

const (
	TokenSourcePrimary TokenSource = "primary"
	TokenSourceLegacy  TokenSource = "legacy"
	TokenSourceNone    TokenSource = "none"
)

// TokenKeeper maintains one canonical bearer token mirrored to the legacy
// storage key at the storage boundary. Reads fall back to the legacy key so
// sessions minted by older clients keep working.
type TokenKeeper struct {
	store Store
}

func NewTokenKeeper(store Store) *TokenKeeper {
	return &TokenKeeper{store: store}
}

// Save writes the token under both the primary and legacy keys.
func (k *TokenKeeper) Save(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token is required")
	}
	if err := k.store.Set(ctx, KeyAuthToken, token); err != nil {
		return err
	}
	return k.store.Set(ctx, KeyLegacyToken, token)
}

// Load returns the stored token, preferring the primary key.
func (k *TokenKeeper) Load(ctx context.Context) (string, TokenSource, error) {
	token, err := k.store.Get(ctx, KeyAuthToken)
	if err == nil && token != "" {
		return token, TokenSourcePrimary, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", TokenSourceNone, err
	}
	token, err = k.store.Get(ctx, KeyLegacyToken)
	if err == nil && token != "" {
		return token, TokenSourceLegacy, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", TokenSourceNone, err
	}
	return "", TokenSourceNone, nil
}

// Backfill re-mirrors the token to both keys. Session validation calls this
// when only one key held a value so the pair stays in sync.
func (k *TokenKeeper) Backfill(ctx context.Context, token string) error {
	return k.Save(ctx, token)
}

// Clear removes both token keys. Missing keys are not an error.
func (k *TokenKeeper) Clear(ctx context.Context) error {
	return k.store.Delete(ctx, KeyAuthToken, KeyLegacyToken)
}
