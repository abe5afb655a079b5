package middleware

import (
	"fmt"
	"net/http"

	"github.com/anandmobiles/storefront-gateway/api/responses"
	pkgerrors "github.com/anandmobiles/storefront-gateway/pkg/errors"
	"github.com/anandmobiles/storefront-gateway/pkg/logger"
)

// Recoverer converts handler panics into a 500 error envelope instead of a
// dropped connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("panic: %v", rec)
					ctx := r.Context()
					if logg != nil {
						ctx = logg.WithField(ctx, "panic", rec)
						logg.Error(ctx, "panic.recovered", err)
					}
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
