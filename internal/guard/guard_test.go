package guard

import "testing"

func TestEvaluate(t *testing.T) {
	vendor := View{Authenticated: true, Role: "vendor", Permissions: []string{"products.manage"}}
	admin := View{Authenticated: true, Role: "admin", Permissions: []string{"*"}}

	tests := []struct {
		name string
		view View
		req  Requirement
		want Decision
	}{
		{
			name: "unauthenticated always redirects to login",
			view: View{},
			req:  Requirement{},
			want: RedirectLogin,
		},
		{
			name: "unauthenticated beats role check",
			view: View{Role: "admin"},
			req:  Requirement{Role: "admin"},
			want: RedirectLogin,
		},
		{
			name: "authenticated with no requirement is allowed",
			view: vendor,
			req:  Requirement{},
			want: Allow,
		},
		{
			name: "wrong role is unauthorized",
			view: vendor,
			req:  Requirement{Role: "admin"},
			want: RedirectUnauthorized,
		},
		{
			name: "exact role is allowed",
			view: vendor,
			req:  Requirement{Role: "vendor"},
			want: Allow,
		},
		{
			name: "any-of roles passes on membership",
			view: vendor,
			req:  Requirement{Roles: []string{"admin", "vendor"}},
			want: Allow,
		},
		{
			name: "any-of roles fails outside the list",
			view: vendor,
			req:  Requirement{Roles: []string{"admin", "manager"}},
			want: RedirectUnauthorized,
		},
		{
			name: "missing permission is unauthorized",
			view: vendor,
			req:  Requirement{Permission: "orders.refund"},
			want: RedirectUnauthorized,
		},
		{
			name: "granted permission is allowed",
			view: vendor,
			req:  Requirement{Permission: "products.manage"},
			want: Allow,
		},
		{
			name: "wildcard grants any permission",
			view: admin,
			req:  Requirement{Permission: "never.granted"},
			want: Allow,
		},
		{
			name: "role failure short-circuits permission check",
			view: admin,
			req:  Requirement{Role: "vendor", Permission: "never.granted"},
			want: RedirectUnauthorized,
		},
		{
			name: "single role checked before any-of list",
			view: vendor,
			req:  Requirement{Role: "admin", Roles: []string{"vendor"}},
			want: RedirectUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.view, tt.req); got != tt.want {
				t.Fatalf("Evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRedirectTarget(t *testing.T) {
	if got := RedirectTarget(RedirectLogin); got != "/login" {
		t.Fatalf("login target = %q", got)
	}
	if got := RedirectTarget(RedirectUnauthorized); got != "/unauthorized" {
		t.Fatalf("unauthorized target = %q", got)
	}
	if got := RedirectTarget(Allow); got != "" {
		t.Fatalf("allow target = %q", got)
	}
}
