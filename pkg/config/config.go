package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/currency"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Cart         CartConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Cart.LockBackend) {
	case LockBackendMemory:
	case LockBackendRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("%s=redis requires %s or %s", EnvCartLockBackend, EnvRedisURL, EnvRedisAddr)
		}
	default:
		return fmt.Errorf("unknown %s %q (expected memory|redis)", EnvCartLockBackend, c.Cart.LockBackend)
	}
	if c.JWT.RequireSession && !c.Redis.Enabled() {
		return fmt.Errorf("%s requires %s or %s", EnvJWTRequireSession, EnvRedisURL, EnvRedisAddr)
	}
	if _, err := currency.ParseISO(c.App.Currency); err != nil {
		return fmt.Errorf("invalid SHOPFRONT_CURRENCY %q: %w", c.App.Currency, err)
	}
	if c.Cart.LockWait <= 0 {
		return fmt.Errorf("%s must be positive", EnvCartLockWait)
	}
	return nil
}

type AppConfig struct {
	Env          string   `envconfig:"SHOPFRONT_APP_ENV" required:"true"`
	Port         string   `envconfig:"SHOPFRONT_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"SHOPFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"SHOPFRONT_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"SHOPFRONT_LOG_FORMAT" default:"json"`
	Currency     string   `envconfig:"SHOPFRONT_CURRENCY" default:"USD"`
	CORSOrigins  []string `envconfig:"SHOPFRONT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

// CurrencyUnit returns the configured ISO currency, USD when unparsable.
func (a AppConfig) CurrencyUnit() currency.Unit {
	unit, err := currency.ParseISO(a.Currency)
	if err != nil {
		return currency.USD
	}
	return unit
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPFRONT_DB_DSN"`
	Driver string `envconfig:"SHOPFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPFRONT_DB_USER"`
	LegacyPassword string `envconfig:"SHOPFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SHOPFRONT_DB_SLOW_QUERY" default:"200ms"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPFRONT_REDIS_URL"`
	Address      string        `envconfig:"SHOPFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOPFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
	RequireSession    bool   `envconfig:"SHOPFRONT_JWT_REQUIRE_SESSION" default:"false"`
}

// TokenTTL returns the access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// CartConfig tunes the per-line-item lock used by cart mutations.
type CartConfig struct {
	LockBackend string        `envconfig:"SHOPFRONT_CART_LOCK_BACKEND" default:"memory"`
	LockTTL     time.Duration `envconfig:"SHOPFRONT_CART_LOCK_TTL" default:"10s"`
	LockWait    time.Duration `envconfig:"SHOPFRONT_CART_LOCK_WAIT" default:"5s"`
	LockRetry   time.Duration `envconfig:"SHOPFRONT_CART_LOCK_RETRY" default:"25ms"`
}

type FeatureFlagsConfig struct {
	AutoMigrate   bool `envconfig:"SHOPFRONT_AUTO_MIGRATE" default:"false"`
	EnableMetrics bool `envconfig:"SHOPFRONT_ENABLE_METRICS" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:shopfront.db?cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
