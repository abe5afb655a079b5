package middleware

import (
	"net/http"

	"github.com/anandmobiles/storefront-gateway/api/responses"
	"github.com/anandmobiles/storefront-gateway/internal/authstore"
	"github.com/anandmobiles/storefront-gateway/internal/guard"
	pkgerrors "github.com/anandmobiles/storefront-gateway/pkg/errors"
	"github.com/anandmobiles/storefront-gateway/pkg/logger"
)

// sessionSource is the slice of the auth store the guard consumes: a settled
// snapshot, never intermediate state.
type sessionSource interface {
	Session() authstore.Session
}

// Guard gates a route subtree on the session. Denials map onto the error
// envelope with the route the UI should navigate to: 401 with /login when
// unauthenticated, 403 with /unauthorized when a role or permission check
// fails.
func Guard(store sessionSource, req guard.Requirement, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := store.Session()
			decision := guard.Evaluate(guard.View{
				Authenticated: session.Authenticated,
				Role:          session.Role,
				Permissions:   session.Permissions,
			}, req)

			ctx := r.Context()
			switch decision {
			case guard.Allow:
				userID := ""
				if session.User != nil {
					userID = session.User.ID
				}
				ctx = WithUser(ctx, userID, session.Role)
				if logg != nil {
					ctx = logg.WithRole(logg.WithUserID(ctx, userID), session.Role)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
			case guard.RedirectLogin:
				responses.WriteDenied(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"),
					guard.RedirectTarget(decision))
			case guard.RedirectUnauthorized:
				responses.WriteDenied(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role or permission"),
					guard.RedirectTarget(decision))
			}
		})
	}
}
