package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/anandmobiles/storefront-gateway/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags every request with an identifier and echoes it back in the
// response. A caller-supplied id is honored only when it parses as a UUID,
// so upstream proxies cannot inject arbitrary strings into the logs.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if _, err := uuid.Parse(reqID); err != nil {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
