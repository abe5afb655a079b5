package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anandmobiles/storefront-gateway/pkg/logger"
)

func TestLoggingCarriesResolvedIdentity(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	// A downstream handler resolves the user on a derived context, the way
	// the guard does after an allow decision.
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(WithUser(r.Context(), "u42", "admin"))
		if got := UserIDFromContext(r.Context()); got != "u42" {
			t.Fatalf("expected injected user id, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/session/me", nil))

	if !bytes.Contains(buf.Bytes(), []byte(`"user_id":"u42"`)) {
		t.Fatalf("completion line missing resolved user id; log=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("request.complete")) {
		t.Fatalf("expected completion line; log=%s", buf.String())
	}
}

func TestLoggingAnonymousRequestOmitsUserID(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/session/me", nil))

	if bytes.Contains(buf.Bytes(), []byte(`"user_id"`)) {
		t.Fatalf("anonymous request must not log a user id; log=%s", buf.String())
	}
}
