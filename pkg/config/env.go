package config

const EnvPrefix = "SHOPFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "SHOPFRONT_APP_ENV"
	EnvPort         = "SHOPFRONT_APP_PORT"
	EnvLogLevel     = "SHOPFRONT_LOG_LEVEL"
	EnvLogWarnStack = "SHOPFRONT_LOG_WARN_STACK"
	EnvCurrency     = "SHOPFRONT_CURRENCY"

	EnvDBDSN    = "SHOPFRONT_DB_DSN"
	EnvDBDriver = "SHOPFRONT_DB_DRIVER"
	EnvDBHost   = "SHOPFRONT_DB_HOST"
	EnvDBPort   = "SHOPFRONT_DB_PORT"
	EnvDBUser   = "SHOPFRONT_DB_USER"
	EnvDBName   = "SHOPFRONT_DB_NAME"

	EnvRedisURL  = "SHOPFRONT_REDIS_URL"
	EnvRedisAddr = "SHOPFRONT_REDIS_ADDR"

	EnvJWTSecret         = "SHOPFRONT_JWT_SECRET"
	EnvJWTIssuer         = "SHOPFRONT_JWT_ISSUER"
	EnvJWTExpMins        = "SHOPFRONT_JWT_EXPIRATION_MINUTES"
	EnvJWTRequireSession = "SHOPFRONT_JWT_REQUIRE_SESSION"

	EnvCartLockBackend = "SHOPFRONT_CART_LOCK_BACKEND"
	EnvCartLockTTL     = "SHOPFRONT_CART_LOCK_TTL"
	EnvCartLockWait    = "SHOPFRONT_CART_LOCK_WAIT"
	EnvCartLockRetry   = "SHOPFRONT_CART_LOCK_RETRY"

	EnvAutoMigrate   = "SHOPFRONT_AUTO_MIGRATE"
	EnvEnableMetrics = "SHOPFRONT_ENABLE_METRICS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
