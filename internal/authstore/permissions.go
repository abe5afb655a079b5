package authstore

// WildcardPermission grants every capability.
const WildcardPermission = "*"

// dashboardRoutes maps a role to its landing route. Unknown roles land on
// the storefront root.
var dashboardRoutes = map[string]string{
	"customer":         "/dashboard",
	"admin":            "/admin/dashboard",
	"vendor":           "/vendor/dashboard",
	"delivery_partner": "/delivery/dashboard",
	"manager":          "/manager/dashboard",
}

const defaultDashboardRoute = "/"

// HasPermission reports whether the session holds the permission. The
// wildcard grants everything, including permissions never explicitly listed.
func (s *Store) HasPermission(permission string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, granted := range s.session.Permissions {
		if granted == WildcardPermission || granted == permission {
			return true
		}
	}
	return false
}

// HasRole reports whether the session's role matches exactly.
func (s *Store) HasRole(role string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Role == role
}

// HasAnyRole reports whether the session's role matches any of the given
// roles.
func (s *Store) HasAnyRole(roles ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range roles {
		if s.session.Role == role {
			return true
		}
	}
	return false
}

// DashboardURL maps the session's role to its landing route.
func (s *Store) DashboardURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if route, ok := dashboardRoutes[s.session.Role]; ok {
		return route
	}
	return defaultDashboardRoute
}
