package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Backend   BackendConfig
	Session   SessionConfig
	Storage   StorageConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ANAND_APP_ENV" default:"dev"`
	Port         string `envconfig:"ANAND_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ANAND_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ANAND_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig selects the storefront REST backend the gateway fronts.
type BackendConfig struct {
	BaseURL string        `envconfig:"ANAND_API_BASE_URL" default:"http://localhost:8000"`
	Timeout time.Duration `envconfig:"ANAND_API_TIMEOUT" default:"30s"`

	// InflightCapacity bounds the request de-duplication registry. Eviction
	// is FIFO by insertion order.
	InflightCapacity int `envconfig:"ANAND_API_INFLIGHT_CAPACITY" default:"32"`

	// InflightRetention keeps a completed request's registry entry alive so
	// rapid-fire duplicates still collapse onto the settled outcome.
	InflightRetention time.Duration `envconfig:"ANAND_API_INFLIGHT_RETENTION" default:"1s"`
}

type SessionConfig struct {
	ProfileTTL time.Duration `envconfig:"ANAND_PROFILE_CACHE_TTL" default:"5m"`

	// ValidateOnBoot re-checks a rehydrated session against the backend.
	ValidateOnBoot bool `envconfig:"ANAND_VALIDATE_ON_BOOT" default:"true"`
}

type StorageConfig struct {
	// Driver picks the durable key-value backend: memory, sqlite, or redis.
	Driver     string `envconfig:"ANAND_STORAGE_DRIVER" default:"sqlite"`
	SQLitePath string `envconfig:"ANAND_STORAGE_SQLITE_PATH" default:"anand_session.db"`

	// SealKey, when set, must be 32 bytes of base64; stored tokens are then
	// encrypted at rest.
	SealKey string `envconfig:"ANAND_STORAGE_SEAL_KEY"`
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case StorageDriverMemory, StorageDriverSQLite, StorageDriverRedis:
		return nil
	}
	return fmt.Errorf("unknown storage driver %q", s.Driver)
}

// NormalizedDriver returns the lower-cased storage driver name.
func (s StorageConfig) NormalizedDriver() string {
	return strings.ToLower(strings.TrimSpace(s.Driver))
}

type RedisConfig struct {
	URL          string        `envconfig:"ANAND_REDIS_URL"`
	Address      string        `envconfig:"ANAND_REDIS_ADDR"`
	Password     string        `envconfig:"ANAND_REDIS_PASSWORD"`
	DB           int           `envconfig:"ANAND_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ANAND_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ANAND_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ANAND_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ANAND_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ANAND_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any Redis endpoint is configured. The gateway runs
// without Redis; rate limiting is skipped and storage falls back per driver.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type RateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"ANAND_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"ANAND_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"ANAND_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"ANAND_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"ANAND_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"ANAND_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ANAND_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}
