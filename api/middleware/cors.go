package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/anandmobiles/storefront-gateway/pkg/config"
)

// CORS applies the storefront origin policy. Credentials stay allowed
// because the backend's CSRF cookie rides on cross-origin requests.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRFToken", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
