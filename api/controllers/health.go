package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/anandmobiles/storefront-gateway/api/responses"
	"github.com/anandmobiles/storefront-gateway/pkg/config"
	"github.com/anandmobiles/storefront-gateway/pkg/logger"
)

const envHeader = "X-Anand-Env"

type pinger interface {
	Ping(ctx context.Context) error
}

type inflightSizer interface {
	InflightSize() int
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports dependency health: the Redis store when one is
// configured, plus in-flight registry occupancy for visibility.
func HealthReady(cfg *config.Config, logg *logger.Logger, redis pinger, client inflightSizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks := map[string]string{}
		ready := true

		if redis != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := redis.Ping(ctx)
			cancel()
			if err != nil {
				ready = false
				checks["redis"] = "unreachable"
				if logg != nil {
					logg.Error(r.Context(), "readiness redis ping failed", err)
				}
			} else {
				checks["redis"] = "ok"
			}
		}

		payload := map[string]any{
			"status": "ready",
			"checks": checks,
		}
		if client != nil {
			payload["inflight"] = client.InflightSize()
		}

		if !ready {
			payload["status"] = "degraded"
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, payload)
			return
		}
		responses.WriteSuccess(w, payload)
	}
}
