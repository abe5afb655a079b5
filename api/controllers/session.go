package controllers

import (
	"context"
	"net/http"

	"github.com/anandmobiles/storefront-gateway/api/responses"
	"github.com/anandmobiles/storefront-gateway/api/validators"
	"github.com/anandmobiles/storefront-gateway/internal/apiclient"
	"github.com/anandmobiles/storefront-gateway/internal/authstore"
	pkgerrors "github.com/anandmobiles/storefront-gateway/pkg/errors"
	"github.com/anandmobiles/storefront-gateway/pkg/logger"
)

// SessionStore is the store surface the session controllers consume.
type SessionStore interface {
	Login(ctx context.Context, creds authstore.Credentials) (*apiclient.AuthResult, error)
	Register(ctx context.Context, reg authstore.Registration) (*apiclient.AuthResult, error)
	Logout(ctx context.Context) error
	ValidateSession(ctx context.Context) (bool, error)
	Profile(ctx context.Context) (*apiclient.Profile, error)
	Session() authstore.Session
	DashboardURL() string
}

type loginRequest struct {
	Email    string `json:"email" validate:"excluded_with=IDToken,omitempty,email"`
	Password string `json:"password" validate:"required_without=IDToken,excluded_with=IDToken"`
	IDToken  string `json:"idToken" validate:"required_without_all=Email Password"`
}

type registerRequest struct {
	Email       string         `json:"email" validate:"required,email"`
	Password    string         `json:"password" validate:"required,min=8"`
	FirstName   string         `json:"first_name" validate:"required"`
	LastName    string         `json:"last_name" validate:"required"`
	Phone       string         `json:"phone" validate:"omitempty,min=7"`
	UserType    string         `json:"user_type" validate:"required,oneof=customer admin delivery_partner vendor manager"`
	ProfileData map[string]any `json:"profile_data"`
}

// sessionPayload is what every session-mutating endpoint answers with: the
// settled session plus whatever the backend said about the operation.
type sessionPayload struct {
	Authenticated        bool                   `json:"authenticated"`
	User                 *apiclient.AccountUser `json:"user"`
	Role                 string                 `json:"role,omitempty"`
	Permissions          []string               `json:"permissions"`
	DashboardURL         string                 `json:"dashboard_url,omitempty"`
	RequiresVerification bool                   `json:"requires_verification,omitempty"`
	UserTypeDisplay      string                 `json:"user_type_display,omitempty"`
	Message              string                 `json:"message,omitempty"`
}

func payloadFrom(store SessionStore, result *apiclient.AuthResult) sessionPayload {
	session := store.Session()
	payload := sessionPayload{
		Authenticated: session.Authenticated,
		User:          session.User,
		Role:          session.Role,
		Permissions:   session.Permissions,
	}
	if session.Authenticated {
		payload.DashboardURL = store.DashboardURL()
	}
	if result != nil {
		if result.DashboardURL != "" {
			payload.DashboardURL = result.DashboardURL
		}
		payload.RequiresVerification = result.RequiresVerification
		payload.UserTypeDisplay = result.UserTypeDisplay
		payload.Message = result.Message
	}
	return payload
}

// SessionLogin authenticates with password credentials or an OAuth identity
// token.
func SessionLogin(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := store.Login(r.Context(), authstore.Credentials{
			Email:    body.Email,
			Password: body.Password,
			IDToken:  body.IDToken,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payloadFrom(store, result))
	}
}

// SessionRegister creates an account. Pending-verification accounts come
// back successful but unauthenticated.
func SessionRegister(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := store.Register(r.Context(), authstore.Registration{
			Email:       body.Email,
			Password:    body.Password,
			FirstName:   body.FirstName,
			LastName:    body.LastName,
			Phone:       body.Phone,
			UserType:    body.UserType,
			ProfileData: body.ProfileData,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.RequiresVerification {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, payloadFrom(store, result))
	}
}

// SessionLogout tears the session down. Always succeeds from the caller's
// point of view unless storage itself fails.
func SessionLogout(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Logout(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// SessionValidate re-checks the stored token against the backend. A dead
// token tears the session down; transient failures keep it and surface the
// error.
func SessionValidate(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		valid, err := store.ValidateSession(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload := payloadFrom(store, nil)
		responses.WriteSuccess(w, map[string]any{
			"valid":   valid,
			"session": payload,
		})
	}
}

// SessionMe returns the current profile, served from the time-boxed cache
// when fresh.
func SessionMe(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := store.Profile(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"profile": profile,
			"session": payloadFrom(store, nil),
		})
	}
}

// SessionDashboard maps the session role to its landing route.
func SessionDashboard(store SessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := store.Session()
		if !session.Authenticated {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"role":          session.Role,
			"dashboard_url": store.DashboardURL(),
		})
	}
}
