package middleware

import "context"

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxRole     contextKey = "user_role"
	ctxIdentity contextKey = "identity"
)

// identity is a mutable holder the logging middleware plants before the
// handler runs. Derived contexts never flow back up the chain, so the guard
// reports the resolved user through the holder instead.
type identity struct {
	userID string
	role   string
}

func withIdentityHolder(ctx context.Context) (context.Context, *identity) {
	holder := &identity{}
	return context.WithValue(ctx, ctxIdentity, holder), holder
}

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// WithUser injects the session identity into the context for downstream
// handlers and log enrichment.
func WithUser(ctx context.Context, userID, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if holder, ok := ctx.Value(ctxIdentity).(*identity); ok {
		holder.userID = userID
		holder.role = role
	}
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxRole, role)
}
