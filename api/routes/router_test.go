package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anandmobiles/storefront-gateway/internal/apiclient"
	"github.com/anandmobiles/storefront-gateway/internal/authstore"
	"github.com/anandmobiles/storefront-gateway/pkg/config"
	"github.com/anandmobiles/storefront-gateway/pkg/storage"
)

// stubBackend fakes the storefront REST API the gateway fronts.
func stubBackend(t *testing.T, userType string, permissions []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == apiclient.EndpointCSRFToken:
			json.NewEncoder(w).Encode(map[string]string{"csrfToken": "csrf-1"})
		case r.URL.Path == apiclient.EndpointLogin:
			json.NewEncoder(w).Encode(map[string]any{
				"user":          map[string]any{"id": "u1", "email": "a@b.com", "user_type": userType},
				"token":         "tok-router",
				"dashboard_url": "/dashboard",
				"permissions":   permissions,
			})
		case r.URL.Path == apiclient.EndpointProfile:
			if r.Header.Get("Authorization") != "Bearer tok-router" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid token"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"email": "a@b.com", "user_id": "u1", "user_type": userType,
			})
		case r.URL.Path == apiclient.EndpointAdminUsers:
			json.NewEncoder(w).Encode(map[string]any{"users": []any{}})
		case strings.HasPrefix(r.URL.Path, "/api/auth/admin/verify/"):
			json.NewEncoder(w).Encode(map[string]string{"message": "verified"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newGateway(t *testing.T, backendURL string) http.Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Backend.BaseURL = backendURL

	client, err := apiclient.New(apiclient.Options{
		BaseURL:           backendURL,
		InflightRetention: time.Millisecond,
	})
	require.NoError(t, err)

	mem := storage.NewMemory()
	tokens := storage.NewTokenKeeper(mem)
	store, err := authstore.New(authstore.Options{
		Client: client,
		Tokens: tokens,
		State:  mem,
	})
	require.NoError(t, err)

	return NewRouter(cfg, nil, client, store, tokens, nil, nil)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	backend := stubBackend(t, "customer", []string{"orders.view"})
	defer backend.Close()
	gateway := newGateway(t, backend.URL)

	// Unauthenticated access is redirected to login.
	rec := doJSON(t, gateway, http.MethodGet, "/session/me", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"redirect":"/login"`)

	rec = doJSON(t, gateway, http.MethodPost, "/session/login", `{"email":"a@b.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var loginResp struct {
		Data struct {
			Authenticated bool   `json:"authenticated"`
			Role          string `json:"role"`
			DashboardURL  string `json:"dashboard_url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	require.True(t, loginResp.Data.Authenticated)
	require.Equal(t, "customer", loginResp.Data.Role)
	require.Equal(t, "/dashboard", loginResp.Data.DashboardURL)

	rec = doJSON(t, gateway, http.MethodGet, "/session/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"email":"a@b.com"`)

	rec = doJSON(t, gateway, http.MethodGet, "/session/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// A customer is not an admin.
	rec = doJSON(t, gateway, http.MethodGet, "/admin/users", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), `"redirect":"/unauthorized"`)

	rec = doJSON(t, gateway, http.MethodPost, "/session/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, gateway, http.MethodGet, "/session/me", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminPassthroughs(t *testing.T) {
	backend := stubBackend(t, "admin", []string{"*"})
	defer backend.Close()
	gateway := newGateway(t, backend.URL)

	rec := doJSON(t, gateway, http.MethodPost, "/session/login", `{"email":"root@anand.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, gateway, http.MethodGet, "/admin/users?user_type=vendor&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"users"`)

	rec = doJSON(t, gateway, http.MethodPost, "/admin/users/u42/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "verified")

	rec = doJSON(t, gateway, http.MethodGet, "/admin/users?user_type=bogus", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionValidateEndpoint(t *testing.T) {
	backend := stubBackend(t, "customer", nil)
	defer backend.Close()
	gateway := newGateway(t, backend.URL)

	rec := doJSON(t, gateway, http.MethodPost, "/session/login", `{"email":"a@b.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, gateway, http.MethodPost, "/session/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"valid":true`)
}

func TestHealthProbes(t *testing.T) {
	backend := stubBackend(t, "customer", nil)
	defer backend.Close()
	gateway := newGateway(t, backend.URL)

	rec := doJSON(t, gateway, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test", rec.Header().Get("X-Anand-Env"))

	rec = doJSON(t, gateway, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
