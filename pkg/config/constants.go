package config

const (
	EnvPrefix = "ANAND"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	StorageDriverMemory = "memory"
	StorageDriverSQLite = "sqlite"
	StorageDriverRedis  = "redis"

	EnvAppEnv        = "ANAND_APP_ENV"
	EnvPort          = "ANAND_APP_PORT"
	EnvBackendURL    = "ANAND_API_BASE_URL"
	EnvRedisURL      = "ANAND_REDIS_URL"
	EnvStorageDriver = "ANAND_STORAGE_DRIVER"
	EnvSealKey       = "ANAND_STORAGE_SEAL_KEY"
)
