package authstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anandmobiles/storefront-gateway/internal/apiclient"
	pkgerrors "github.com/anandmobiles/storefront-gateway/pkg/errors"
	"github.com/anandmobiles/storefront-gateway/pkg/storage"
)

func vendorProfile() *apiclient.Profile {
	return &apiclient.Profile{Email: "v@shop.com", UserID: "u9", FirstName: "V", UserType: "vendor"}
}

func TestValidateSessionNoToken(t *testing.T) {
	backend := &fakeBackend{}
	store, _, _ := newTestStore(t, backend)

	ok, err := store.ValidateSession(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, store.Session().Authenticated)
	require.Zero(t, backend.profileCalls)
}

func TestValidateSessionEstablishesFromPrimaryKey(t *testing.T) {
	backend := &fakeBackend{profile: vendorProfile()}
	store, mem, _ := newTestStore(t, backend)
	ctx := context.Background()

	require.NoError(t, storage.NewTokenKeeper(mem).Save(ctx, "tok"))

	ok, err := store.ValidateSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	session := store.Session()
	require.True(t, session.Authenticated)
	require.Equal(t, "vendor", session.Role)
	require.Equal(t, "u9", session.User.ID)
	require.Equal(t, "v@shop.com", session.User.Email)
}

func TestValidateSessionLegacyFallbackBackfills(t *testing.T) {
	backend := &fakeBackend{profile: vendorProfile()}
	store, mem, _ := newTestStore(t, backend)
	ctx := context.Background()

	// Only the legacy key holds a token, as a session minted by an older
	// client would leave it.
	require.NoError(t, mem.Set(ctx, storage.KeyLegacyToken, "old-tok"))

	ok, err := store.ValidateSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	primary, err := mem.Get(ctx, storage.KeyAuthToken)
	require.NoError(t, err)
	require.Equal(t, "old-tok", primary, "validation must backfill the missing key")
}

// gatedStore blocks the first write to gateKey until gate is closed, so a
// test can interleave a logout with a durable write in flight.
type gatedStore struct {
	storage.Store
	gateKey string
	gate    chan struct{}
	hit     chan struct{}
	once    sync.Once
}

func (g *gatedStore) Set(ctx context.Context, key, value string) error {
	if key == g.gateKey {
		g.once.Do(func() { close(g.hit) })
		<-g.gate
	}
	return g.Store.Set(ctx, key, value)
}

func TestLogoutDuringValidationWriteStaysSignedOut(t *testing.T) {
	backend := &fakeBackend{profile: vendorProfile()}
	gated := &gatedStore{
		Store:   storage.NewMemory(),
		gateKey: storage.KeyAuthToken,
		gate:    make(chan struct{}),
		hit:     make(chan struct{}),
	}
	store, err := New(Options{
		Client: backend,
		Tokens: storage.NewTokenKeeper(gated),
		State:  gated,
	})
	require.NoError(t, err)
	ctx := context.Background()

	// Only the legacy key holds a token, so validation will re-mirror the
	// pair once the profile comes back.
	require.NoError(t, gated.Set(ctx, storage.KeyLegacyToken, "tok-legacy"))

	done := make(chan error, 1)
	go func() {
		_, verr := store.ValidateSession(ctx)
		done <- verr
	}()

	// Wait for the backfill to reach the blocked primary-key write, then log
	// out while it is stalled.
	<-gated.hit
	require.NoError(t, store.Logout(ctx))
	_, err = gated.Get(ctx, storage.KeyLegacyToken)
	require.ErrorIs(t, err, storage.ErrNotFound)

	close(gated.gate)
	verr := <-done
	require.Error(t, verr)
	require.Equal(t, pkgerrors.CodeConflict, pkgerrors.ErrorCode(verr))

	// The stalled write must not survive in any of the durable keys.
	for _, key := range []string{storage.KeyAuthToken, storage.KeyLegacyToken, storage.KeyUserData, storage.KeySessionState} {
		_, err := gated.Get(ctx, key)
		require.ErrorIs(t, err, storage.ErrNotFound, key)
	}
	require.False(t, store.Session().Authenticated)
}

func TestValidateSessionTeardownAsymmetry(t *testing.T) {
	backend := &fakeBackend{loginResult: customerResult()}
	store, mem, _ := newTestStore(t, backend)
	ctx := context.Background()

	_, err := store.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)
	require.True(t, store.Session().Authenticated)

	// A transient failure must not sign the user out.
	backend.mu.Lock()
	backend.profileErr = pkgerrors.New(pkgerrors.CodeNetwork, "connection timed out")
	backend.mu.Unlock()

	ok, err := store.ValidateSession(ctx)
	require.Error(t, err)
	require.False(t, ok)
	require.True(t, store.Session().Authenticated, "non-401 failures must keep the session")
	require.Equal(t, "connection timed out", store.Session().Err)

	// A 401 means the token is dead: tear everything down.
	backend.mu.Lock()
	backend.profileErr = pkgerrors.New(pkgerrors.CodeUnauthorized, "token expired")
	backend.mu.Unlock()

	ok, err = store.ValidateSession(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, store.Session().Authenticated)
	_, err = mem.Get(ctx, storage.KeyAuthToken)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestValidateSessionNoIdentityLogsOut(t *testing.T) {
	backend := &fakeBackend{profile: &apiclient.Profile{FirstName: "ghost"}}
	store, mem, _ := newTestStore(t, backend)
	ctx := context.Background()

	require.NoError(t, storage.NewTokenKeeper(mem).Save(ctx, "tok"))

	ok, err := store.ValidateSession(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, store.Session().Authenticated)
	_, err = mem.Get(ctx, storage.KeyLegacyToken)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCheckAuthStatusValidatesStoredToken(t *testing.T) {
	backend := &fakeBackend{profile: vendorProfile()}
	store, mem, _ := newTestStore(t, backend)
	ctx := context.Background()

	require.NoError(t, storage.NewTokenKeeper(mem).Save(ctx, "tok"))

	ok, err := store.CheckAuthStatus(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, backend.profileCalls)
}

func TestProfileCacheTTL(t *testing.T) {
	backend := &fakeBackend{loginResult: customerResult(), profile: vendorProfile()}
	store, _, clock := newTestStore(t, backend)
	ctx := context.Background()

	_, err := store.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	// Login primed the cache; a fresh read must not hit the backend.
	profile, err := store.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", profile.Email)
	require.Zero(t, backend.profileCalls)

	clock.Advance(4 * time.Minute)
	_, err = store.Profile(ctx)
	require.NoError(t, err)
	require.Zero(t, backend.profileCalls, "entry younger than the TTL must be served from cache")

	clock.Advance(2 * time.Minute)
	profile, err = store.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, backend.profileCalls, "expired entry must trigger a fresh fetch")
	require.Equal(t, "v@shop.com", profile.Email)

	store.ClearProfileCache()
	_, err = store.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, backend.profileCalls, "explicit clear must force a fetch")
}

func TestProfileWithoutSession(t *testing.T) {
	backend := &fakeBackend{}
	store, _, _ := newTestStore(t, backend)

	_, err := store.Profile(context.Background())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.ErrorCode(err))
}
