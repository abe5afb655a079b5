package authstore

import (
	"context"
	"time"

	"github.com/anandmobiles/storefront-gateway/internal/apiclient"
	pkgerrors "github.com/anandmobiles/storefront-gateway/pkg/errors"
	"github.com/anandmobiles/storefront-gateway/pkg/storage"
)

// CheckAuthStatus is the boot entry point: if either token key holds a value
// the session is validated against the backend, otherwise the store is reset
// to a clean signed-out state.
func (s *Store) CheckAuthStatus(ctx context.Context) (bool, error) {
	token, _, err := s.tokens.Load(ctx)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading stored token")
	}
	if token == "" {
		return false, s.Logout(ctx)
	}
	return s.ValidateSession(ctx)
}

// ValidateSession confirms the stored token against the profile endpoint.
//
// Teardown is deliberately asymmetric: a 401 means the token is dead and the
// session is logged out, but any other failure (a flaky network, a backend
// blip) leaves existing session state untouched so connectivity hiccups do
// not sign users out.
func (s *Store) ValidateSession(ctx context.Context) (bool, error) {
	token, source, err := s.tokens.Load(ctx)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading stored token")
	}
	if token == "" {
		return false, s.Logout(ctx)
	}

	gen := s.beginOperation()
	defer s.endOperation()

	profile, err := s.client.FetchProfile(ctx, token)
	if err != nil {
		if pkgerrors.IsUnauthorized(err) {
			if s.logg != nil {
				s.logg.Info(ctx, "stored token rejected, logging out")
			}
			if logoutErr := s.Logout(ctx); logoutErr != nil {
				return false, logoutErr
			}
			return false, nil
		}
		if s.logg != nil {
			s.logg.Warn(ctx, "session validation failed transiently, keeping session")
		}
		s.mu.Lock()
		s.session.Err = err.Error()
		s.mu.Unlock()
		return false, err
	}

	if !profile.HasIdentity() {
		if s.logg != nil {
			s.logg.Warn(ctx, "profile response carries no identity, logging out")
		}
		if err := s.Logout(ctx); err != nil {
			return false, err
		}
		return false, nil
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false, pkgerrors.New(pkgerrors.CodeConflict, "session superseded")
	}
	s.session.User = profile.User()
	s.session.Role = profile.UserType
	s.session.Authenticated = true
	s.session.LastActivity = s.now()
	s.session.Err = ""
	if s.session.Permissions == nil {
		s.session.Permissions = []string{}
	}
	s.profile = profile
	s.profileFetched = s.now()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.SetAuthenticated(profile.UserType, true)

	// One key held the token while the other was empty: re-mirror so the
	// primary/legacy pair stays in sync.
	if source == storage.TokenSourceLegacy {
		if err := s.tokens.Backfill(ctx, token); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "backfilling token key")
		}
	}
	if err := s.persist(ctx, snapshot); err != nil {
		return false, err
	}
	if err := s.discardIfSuperseded(ctx, gen); err != nil {
		return false, err
	}
	return true, nil
}

// Profile returns the user profile, served from cache while the entry is
// younger than the configured TTL and fetched fresh otherwise.
func (s *Store) Profile(ctx context.Context) (*apiclient.Profile, error) {
	s.mu.Lock()
	if s.profile != nil && s.now().Sub(s.profileFetched) < s.ttl {
		cached := *s.profile
		s.mu.Unlock()
		s.metrics.IncCacheHit("profile")
		return &cached, nil
	}
	gen := s.generation
	s.mu.Unlock()
	s.metrics.IncCacheMiss("profile")

	token, _, err := s.tokens.Load(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading stored token")
	}
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "no stored session")
	}

	profile, err := s.client.FetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if gen == s.generation {
		s.profile = profile
		s.profileFetched = s.now()
	}
	s.mu.Unlock()
	return profile, nil
}

// ClearProfileCache drops the cached profile so the next Profile call hits
// the backend.
func (s *Store) ClearProfileCache() {
	s.mu.Lock()
	s.profile = nil
	s.profileFetched = time.Time{}
	s.mu.Unlock()
}
