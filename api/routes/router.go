package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anandmobiles/storefront-gateway/api/controllers"
	"github.com/anandmobiles/storefront-gateway/api/middleware"
	"github.com/anandmobiles/storefront-gateway/internal/apiclient"
	"github.com/anandmobiles/storefront-gateway/internal/authstore"
	"github.com/anandmobiles/storefront-gateway/internal/guard"
	"github.com/anandmobiles/storefront-gateway/pkg/config"
	"github.com/anandmobiles/storefront-gateway/pkg/logger"
	"github.com/anandmobiles/storefront-gateway/pkg/redis"
	"github.com/anandmobiles/storefront-gateway/pkg/storage"
)

// NewRouter assembles the gateway's HTTP surface: the session operations the
// storefront UI drives, admin passthroughs, health probes and metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	client *apiclient.Client,
	store *authstore.Store,
	tokens *storage.TokenKeeper,
	redisClient *redis.Client,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	var limiter middleware.RateLimiterStore
	if redisClient != nil {
		limiter = redisClient
	}

	loginPolicy := middleware.NewRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewRateLimitPolicy(
		"register",
		cfg.RateLimit.RegisterWindow,
		cfg.RateLimit.RegisterIPLimit,
		cfg.RateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingerOrNil(redisClient), client))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/session", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.SessionLogin(store, logg))
		r.With(middleware.RateLimit(registerPolicy, limiter, logg)).Post("/register", controllers.SessionRegister(store, logg))
		r.Post("/logout", controllers.SessionLogout(store, logg))
		r.Post("/validate", controllers.SessionValidate(store, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(store, guard.Requirement{}, logg))
			r.Get("/me", controllers.SessionMe(store, logg))
			r.Get("/dashboard", controllers.SessionDashboard(store, logg))
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Guard(store, guard.Requirement{Role: "admin"}, logg))
		r.Get("/users", controllers.AdminListUsers(client, tokens, logg))
		r.Post("/users/{userId}/verify", controllers.AdminVerifyUser(client, tokens, logg))
	})

	return r
}

// pingerOrNil keeps a nil *redis.Client from arriving as a non-nil
// interface in the readiness probe.
func pingerOrNil(client *redis.Client) interface{ Ping(ctx context.Context) error } {
	if client == nil {
		return nil
	}
	return client
}
