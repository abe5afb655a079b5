// Package authstore owns the session: the authenticated identity, its role
// and permissions, and every transition between signed-out and signed-in. It
// is the only writer of session state; the guard and the gateway handlers
// read snapshots.
package authstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	"github.com/anandmobiles/storefront-gateway/internal/apiclient"
	pkgerrors "github.com/anandmobiles/storefront-gateway/pkg/errors"
	"github.com/anandmobiles/storefront-gateway/pkg/logger"
	"github.com/anandmobiles/storefront-gateway/pkg/metrics"
	"github.com/anandmobiles/storefront-gateway/pkg/storage"
)

const defaultProfileTTL = 5 * time.Minute

// backendClient is the slice of the API client the store depends on.
type backendClient interface {
	Login(ctx context.Context, body apiclient.LoginBody) (*apiclient.AuthResult, error)
	Register(ctx context.Context, body apiclient.RegisterBody) (*apiclient.AuthResult, error)
	FetchProfile(ctx context.Context, token string) (*apiclient.Profile, error)
	Reset()
}

// Session is the in-memory authenticated identity. Authenticated implies a
// non-nil User and a non-empty Role; anything else is corrupt state and is
// torn down on sight.
type Session struct {
	User          *apiclient.AccountUser
	Role          string
	Permissions   []string
	Authenticated bool
	LastActivity  time.Time
	Err           string
}

// persistedSession is the durable subset written under the session state key
// so a restart shows the previous user optimistically while validation runs.
type persistedSession struct {
	User          *apiclient.AccountUser `json:"user"`
	Role          string                 `json:"role"`
	Permissions   []string               `json:"permissions"`
	Authenticated bool                   `json:"authenticated"`
	LastActivity  time.Time              `json:"last_activity"`
}

// Credentials is the login input: password credentials or an OAuth identity
// token, validated locally before any network call.
type Credentials struct {
	Email    string `validate:"required_without=IDToken,excluded_with=IDToken,omitempty,email"`
	Password string `validate:"required_without=IDToken,excluded_with=IDToken"`
	IDToken  string `validate:"required_without_all=Email Password"`
}

// Registration is the sign-up input. ProfileData carries the role-specific
// sub-object (shop name, vehicle type, and so on) forwarded verbatim.
type Registration struct {
	Email       string         `validate:"required,email"`
	Password    string         `validate:"required,min=8"`
	FirstName   string         `validate:"required"`
	LastName    string         `validate:"required"`
	Phone       string         `validate:"omitempty,min=7"`
	UserType    string         `validate:"required,oneof=customer admin delivery_partner vendor manager"`
	ProfileData map[string]any `validate:"-"`
}

// Options configures a Store.
type Options struct {
	Client     backendClient
	Tokens     *storage.TokenKeeper
	State      storage.Store
	Logger     *logger.Logger
	Metrics    *metrics.ClientMetrics
	ProfileTTL time.Duration
	Now        func() time.Time
}

// Store orchestrates login, registration, logout and session validation. All
// methods are safe for concurrent use.
type Store struct {
	client  backendClient
	tokens  *storage.TokenKeeper
	state   storage.Store
	logg    *logger.Logger
	metrics *metrics.ClientMetrics
	ttl     time.Duration
	now     func() time.Time

	validate *validator.Validate

	mu      sync.Mutex
	session Session
	loading bool

	// generation fences async completions against logout: any completion
	// whose captured generation no longer matches is discarded instead of
	// resurrecting session state.
	generation uint64

	profile        *apiclient.Profile
	profileFetched time.Time
}

// New constructs a Store. Client, Tokens and State are required.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("api client is required")
	}
	if opts.Tokens == nil || opts.State == nil {
		return nil, errors.New("storage is required")
	}
	ttl := opts.ProfileTTL
	if ttl <= 0 {
		ttl = defaultProfileTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		client:   opts.Client,
		tokens:   opts.Tokens,
		state:    opts.State,
		logg:     opts.Logger,
		metrics:  opts.Metrics,
		ttl:      ttl,
		now:      now,
		validate: validator.New(),
		session:  emptySession(),
	}, nil
}

func emptySession() Session {
	return Session{Permissions: []string{}}
}

// Session returns a copy of the current session state.
func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Session {
	snap := s.session
	snap.Permissions = append([]string(nil), s.session.Permissions...)
	if s.session.User != nil {
		user := *s.session.User
		snap.User = &user
	}
	return snap
}

// IsLoading reports whether a login, register or validation call is in
// flight. It is the sole external in-progress signal.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Login authenticates with password credentials or an OAuth identity token.
// Expected failures come back as typed errors, never panics; the session is
// only mutated on success.
func (s *Store) Login(ctx context.Context, creds Credentials) (*apiclient.AuthResult, error) {
	if err := s.validate.Struct(creds); err != nil {
		return nil, s.fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid credentials"))
	}

	gen := s.beginOperation()
	defer s.endOperation()

	result, err := s.client.Login(ctx, apiclient.LoginBody{
		Email:    creds.Email,
		Password: creds.Password,
		IDToken:  creds.IDToken,
	})
	if err != nil {
		return nil, s.fail(err)
	}
	if err := s.establish(ctx, gen, result); err != nil {
		return nil, s.fail(err)
	}
	return result, nil
}

// Register creates an account. When the backend answers requires_verification
// the account exists but is pending activation: the session stays
// unauthenticated and no token is stored.
func (s *Store) Register(ctx context.Context, reg Registration) (*apiclient.AuthResult, error) {
	if err := s.validate.Struct(reg); err != nil {
		return nil, s.fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid registration"))
	}

	gen := s.beginOperation()
	defer s.endOperation()

	result, err := s.client.Register(ctx, apiclient.RegisterBody{
		Email:       reg.Email,
		Password:    reg.Password,
		FirstName:   reg.FirstName,
		LastName:    reg.LastName,
		Phone:       reg.Phone,
		UserType:    reg.UserType,
		ProfileData: reg.ProfileData,
	})
	if err != nil {
		return nil, s.fail(err)
	}
	if result.RequiresVerification {
		s.mu.Lock()
		s.session.Err = ""
		s.mu.Unlock()
		return result, nil
	}
	if err := s.establish(ctx, gen, result); err != nil {
		return nil, s.fail(err)
	}
	return result, nil
}

// establish applies a successful login/register result: session fields,
// token mirroring, persisted subset, profile cache stamp. Results from a
// superseded generation are discarded untouched.
func (s *Store) establish(ctx context.Context, gen uint64, result *apiclient.AuthResult) error {
	if result.User == nil || result.Token == "" {
		return pkgerrors.New(pkgerrors.CodeUpstream, "login response missing user or token")
	}
	if err := s.tokens.Save(ctx, result.Token); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing token")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		// Logged out while the call was in flight; undo the token write.
		_ = s.tokens.Clear(ctx)
		return pkgerrors.New(pkgerrors.CodeConflict, "session superseded")
	}
	user := *result.User
	s.session = Session{
		User:          &user,
		Role:          user.UserType,
		Permissions:   append([]string{}, result.Permissions...),
		Authenticated: true,
		LastActivity:  s.now(),
	}
	s.profile = profileFromUser(&user)
	s.profileFetched = s.now()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.SetAuthenticated(user.UserType, true)
	if s.logg != nil {
		s.logg.Info(s.logg.WithRole(s.logg.WithUserID(ctx, user.ID), user.UserType), "session established")
	}
	if err := s.persist(ctx, snapshot); err != nil {
		return err
	}
	return s.discardIfSuperseded(ctx, gen)
}

// discardIfSuperseded is the post-write half of the generation fence. The
// durable writes run outside s.mu, so a logout can interleave after the
// in-memory generation check; re-checking after the writes and undoing them
// keeps storage signed out no matter how the two orders land.
func (s *Store) discardIfSuperseded(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	superseded := gen != s.generation
	s.mu.Unlock()
	if !superseded {
		return nil
	}
	s.metrics.SetAuthenticated("", false)
	err := multierr.Combine(
		s.tokens.Clear(ctx),
		s.state.Delete(ctx, storage.KeyUserData, storage.KeySessionState),
	)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing superseded session")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "session superseded")
}

// Logout tears the session down: both token keys, the user data blob, the
// persisted session subset, the CSRF cache and the in-flight registry.
// Idempotent, and instantly authoritative against in-flight completions.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	s.session = emptySession()
	s.profile = nil
	s.profileFetched = time.Time{}
	s.mu.Unlock()

	s.client.Reset()
	s.metrics.SetAuthenticated("", false)

	err := multierr.Combine(
		s.tokens.Clear(ctx),
		s.state.Delete(ctx, storage.KeyUserData, storage.KeySessionState),
	)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing session storage")
	}
	return nil
}

// fail records the message on the session and passes the error through.
func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.session.Err = err.Error()
	s.mu.Unlock()
	return err
}

func (s *Store) beginOperation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	return s.generation
}

func (s *Store) endOperation() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// persist writes the durable session subset and the user data blob.
func (s *Store) persist(ctx context.Context, snap Session) error {
	blob, err := json.Marshal(persistedSession{
		User:          snap.User,
		Role:          snap.Role,
		Permissions:   snap.Permissions,
		Authenticated: snap.Authenticated,
		LastActivity:  snap.LastActivity,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding session state")
	}
	if err := s.state.Set(ctx, storage.KeySessionState, string(blob)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting session state")
	}
	if snap.User != nil {
		userBlob, err := json.Marshal(snap.User)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding user data")
		}
		if err := s.state.Set(ctx, storage.KeyUserData, string(userBlob)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting user data")
		}
	}
	return nil
}

// Rehydrate restores the persisted session subset before boot validation, so
// a restart shows the previous user while CheckAuthStatus runs. Corrupt
// state, authenticated without an identity, forces a logout instead.
func (s *Store) Rehydrate(ctx context.Context) error {
	raw, err := s.state.Get(ctx, storage.KeySessionState)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading session state")
	}

	var persisted persistedSession
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "persisted session unreadable, discarding")
		}
		return s.Logout(ctx)
	}
	if persisted.Authenticated && (persisted.User == nil || persisted.Role == "") {
		if s.logg != nil {
			s.logg.Warn(ctx, "persisted session corrupt, forcing logout")
		}
		return s.Logout(ctx)
	}

	s.mu.Lock()
	s.session = Session{
		User:          persisted.User,
		Role:          persisted.Role,
		Permissions:   persisted.Permissions,
		Authenticated: persisted.Authenticated,
		LastActivity:  persisted.LastActivity,
	}
	if s.session.Permissions == nil {
		s.session.Permissions = []string{}
	}
	s.mu.Unlock()
	return nil
}

func profileFromUser(user *apiclient.AccountUser) *apiclient.Profile {
	return &apiclient.Profile{
		Email:     user.Email,
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		UserType:  user.UserType,
	}
}
