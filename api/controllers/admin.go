package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anandmobiles/storefront-gateway/api/responses"
	"github.com/anandmobiles/storefront-gateway/api/validators"
	pkgerrors "github.com/anandmobiles/storefront-gateway/pkg/errors"
	"github.com/anandmobiles/storefront-gateway/pkg/logger"
	"github.com/anandmobiles/storefront-gateway/pkg/storage"
)

// adminAPI is the backend surface the admin passthroughs proxy.
type adminAPI interface {
	AdminListUsers(ctx context.Context, token, userType string, limit int) (json.RawMessage, error)
	AdminVerifyUser(ctx context.Context, token, userID string) (string, error)
}

func storedToken(ctx context.Context, tokens *storage.TokenKeeper) (string, error) {
	token, _, err := tokens.Load(ctx)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading stored token")
	}
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "no stored session")
	}
	return token, nil
}

// AdminListUsers proxies the backend's user listing, forwarding the
// user_type and limit filters.
func AdminListUsers(api adminAPI, tokens *storage.TokenKeeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userType, err := validators.ParseUserType(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token, err := storedToken(r.Context(), tokens)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw, err := api.AdminListUsers(r.Context(), token, userType, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, raw)
	}
}

// AdminVerifyUser proxies the backend's vendor/partner verification call.
func AdminVerifyUser(api adminAPI, tokens *storage.TokenKeeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id is required"))
			return
		}

		token, err := storedToken(r.Context(), tokens)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		message, err := api.AdminVerifyUser(r.Context(), token, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": message})
	}
}
