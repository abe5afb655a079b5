// Package guard decides whether a session may enter a protected area. It is
// stateless: callers hand it a settled session view and a requirement, and it
// answers with a decision plus the redirect target for denials.
package guard

// View is the read-only slice of session state the guard consumes.
type View struct {
	Authenticated bool
	Role          string
	Permissions   []string
}

// Requirement describes what a protected area demands. Zero-value fields are
// not checked; an entirely zero Requirement only demands authentication.
type Requirement struct {
	// Role must match the session role exactly.
	Role string
	// Roles passes when the session role matches any entry.
	Roles []string
	// Permission must be granted, directly or via the wildcard.
	Permission string
}

// Decision is the guard's verdict.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	}
	return "unknown"
}

// Redirect targets handed back to the caller on denial.
const (
	LoginRoute        = "/login"
	UnauthorizedRoute = "/unauthorized"
)

const wildcardPermission = "*"

// Evaluate runs the checks in fixed order: authentication, then exact role,
// then any-of roles, then permission. The first failing check wins and
// short-circuits the rest.
func Evaluate(view View, req Requirement) Decision {
	if !view.Authenticated {
		return RedirectLogin
	}
	if req.Role != "" && view.Role != req.Role {
		return RedirectUnauthorized
	}
	if len(req.Roles) > 0 && !containsRole(req.Roles, view.Role) {
		return RedirectUnauthorized
	}
	if req.Permission != "" && !hasPermission(view.Permissions, req.Permission) {
		return RedirectUnauthorized
	}
	return Allow
}

// RedirectTarget returns the route a denied decision should send the caller
// to, empty for Allow.
func RedirectTarget(d Decision) string {
	switch d {
	case RedirectLogin:
		return LoginRoute
	case RedirectUnauthorized:
		return UnauthorizedRoute
	}
	return ""
}

func containsRole(roles []string, role string) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}

func hasPermission(granted []string, permission string) bool {
	for _, candidate := range granted {
		if candidate == wildcardPermission || candidate == permission {
			return true
		}
	}
	return false
}
