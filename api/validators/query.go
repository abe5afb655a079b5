package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/anandmobiles/storefront-gateway/pkg/errors"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseUserType validates the admin listing's user_type filter against the
// roles the storefront knows about. Empty means no filter.
func ParseUserType(r *http.Request) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("user_type")))
	switch raw {
	case "", "customer", "admin", "delivery_partner", "vendor", "manager":
		return raw, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown user_type").WithDetails(map[string]any{"field": "user_type"})
}
