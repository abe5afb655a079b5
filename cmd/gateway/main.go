package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/anandmobiles/storefront-gateway/api/routes"
	"github.com/anandmobiles/storefront-gateway/internal/apiclient"
	"github.com/anandmobiles/storefront-gateway/internal/authstore"
	"github.com/anandmobiles/storefront-gateway/pkg/config"
	"github.com/anandmobiles/storefront-gateway/pkg/instance"
	"github.com/anandmobiles/storefront-gateway/pkg/logger"
	"github.com/anandmobiles/storefront-gateway/pkg/metrics"
	"github.com/anandmobiles/storefront-gateway/pkg/redis"
	"github.com/anandmobiles/storefront-gateway/pkg/storage"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "gateway"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "gateway",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "gateway stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		var err error
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
	}

	store, storeClosers, err := buildStateStore(cfg, redisClient)
	if err != nil {
		return err
	}
	closers = append(closers, storeClosers...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	clientMetrics := metrics.NewClientMetrics(registry)

	client, err := apiclient.New(apiclient.Options{
		BaseURL:           cfg.Backend.BaseURL,
		Timeout:           cfg.Backend.Timeout,
		InflightCapacity:  cfg.Backend.InflightCapacity,
		InflightRetention: cfg.Backend.InflightRetention,
		Logger:            logg,
		Metrics:           clientMetrics,
	})
	if err != nil {
		return err
	}

	tokens := storage.NewTokenKeeper(store)
	authStore, err := authstore.New(authstore.Options{
		Client:     client,
		Tokens:     tokens,
		State:      store,
		Logger:     logg,
		Metrics:    clientMetrics,
		ProfileTTL: cfg.Session.ProfileTTL,
	})
	if err != nil {
		return err
	}

	// Restore the previous session and re-check it against the backend, the
	// same bootstrap the storefront UI ran on page load.
	if err := authStore.Rehydrate(ctx); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "session rehydrate failed")
	}
	if cfg.Session.ValidateOnBoot {
		if _, err := authStore.CheckAuthStatus(ctx); err != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "boot session validation failed")
		}
	}

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	handler := routes.NewRouter(cfg, logg, client, authStore, tokens, redisClient, metricsHandler)

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"backend":  cfg.Backend.BaseURL,
		"storage":  cfg.Storage.NormalizedDriver(),
		"instance": instance.GetID(),
	}), "starting session gateway")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	for _, closer := range closers {
		err = multierr.Append(err, closer())
	}
	return err
}

// buildStateStore picks the durable kv backend per config and wraps it in
// the sealed store when a key is configured.
func buildStateStore(cfg *config.Config, redisClient *redis.Client) (storage.Store, []func() error, error) {
	var (
		store   storage.Store
		closers []func() error
	)

	switch cfg.Storage.NormalizedDriver() {
	case config.StorageDriverMemory:
		store = storage.NewMemory()
	case config.StorageDriverSQLite:
		sqlite, err := storage.NewSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, sqlite.Close)
		store = sqlite
	case config.StorageDriverRedis:
		if redisClient == nil {
			return nil, nil, errors.New("storage driver redis requires a configured redis endpoint")
		}
		redisStore, err := storage.NewRedis(redisClient)
		if err != nil {
			return nil, nil, err
		}
		store = redisStore
	}

	if cfg.Storage.SealKey != "" {
		sealed, err := storage.NewSealed(store, cfg.Storage.SealKey)
		if err != nil {
			return nil, nil, err
		}
		store = sealed
	}
	return store, closers, nil
}
