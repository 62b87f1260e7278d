package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Checkout      CheckoutConfig
	Catalog       CatalogConfig
	Cron          CronConfig
	Storefront    StorefrontConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ClientConfig is what a storefront client process needs. Unlike Config it
// asks for no database, redis or signing settings.
type ClientConfig struct {
	LogLevel   string `envconfig:"TECHNOSHOP_LOG_LEVEL" default:"info"`
	LogFormat  string `envconfig:"TECHNOSHOP_LOG_FORMAT" default:"console"`
	Checkout   CheckoutConfig
	Storefront StorefrontConfig
}

func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Storefront.BaseURL) == "" {
		return nil, fmt.Errorf("%s must not be empty", EnvStorefrontURL)
	}
	return &cfg, nil
}

// Logging returns the app settings the logger reads.
func (c ClientConfig) Logging() AppConfig {
	return AppConfig{LogLevel: c.LogLevel, LogFormat: c.LogFormat}
}

type AppConfig struct {
	Env          string `envconfig:"TECHNOSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"TECHNOSHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TECHNOSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TECHNOSHOP_LOG_WARN_STACK" default:"false"`
	// LogFormat is "json" or "console".
	LogFormat string `envconfig:"TECHNOSHOP_LOG_FORMAT" default:"json"`
	// ShutdownTimeout bounds how long the API waits for in-flight requests on exit.
	ShutdownTimeout time.Duration `envconfig:"TECHNOSHOP_SHUTDOWN_TIMEOUT" default:"15s"`
	CORSOrigins     []string      `envconfig:"TECHNOSHOP_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TECHNOSHOP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TECHNOSHOP_DB_DSN"`
	Driver string `envconfig:"TECHNOSHOP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"TECHNOSHOP_DB_HOST"`
	Port     int    `envconfig:"TECHNOSHOP_DB_PORT" default:"5432"`
	User     string `envconfig:"TECHNOSHOP_DB_USER"`
	Password string `envconfig:"TECHNOSHOP_DB_PASSWORD"`
	Name     string `envconfig:"TECHNOSHOP_DB_NAME"`
	SSLMode  string `envconfig:"TECHNOSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TECHNOSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TECHNOSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TECHNOSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TECHNOSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which a statement is logged at warn.
	SlowQuery time.Duration `envconfig:"TECHNOSHOP_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TECHNOSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TECHNOSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"TECHNOSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"TECHNOSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TECHNOSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TECHNOSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TECHNOSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TECHNOSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TECHNOSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TECHNOSHOP_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TECHNOSHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TECHNOSHOP_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TECHNOSHOP_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TECHNOSHOP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TECHNOSHOP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TECHNOSHOP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TECHNOSHOP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TECHNOSHOP_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TECHNOSHOP_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TECHNOSHOP_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TECHNOSHOP_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TECHNOSHOP_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TECHNOSHOP_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TECHNOSHOP_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TECHNOSHOP_AUTO_MIGRATE" default:"false"`
	// AdminSelfRegister promotes the first registered account to admin.
	AdminSelfRegister bool `envconfig:"TECHNOSHOP_ADMIN_SELF_REGISTER" default:"false"`
}

// CheckoutConfig carries the discount-code gate bounds and the in-flight guards.
type CheckoutConfig struct {
	DiscountMinPrice      int64         `envconfig:"TECHNOSHOP_DISCOUNT_MIN_PRICE" default:"1000"`
	DiscountMinCategories int           `envconfig:"TECHNOSHOP_DISCOUNT_MIN_CATEGORIES" default:"1"`
	DiscountMaxCategories int           `envconfig:"TECHNOSHOP_DISCOUNT_MAX_CATEGORIES" default:"7"`
	InFlightLockTTL       time.Duration `envconfig:"TECHNOSHOP_CHECKOUT_INFLIGHT_TTL" default:"30s"`
	IdempotencyTTL        time.Duration `envconfig:"TECHNOSHOP_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

func (c CheckoutConfig) validate() error {
	if c.DiscountMinPrice < 0 {
		return fmt.Errorf("%s must not be negative", EnvDiscountMinPrice)
	}
	if c.DiscountMinCategories < 0 || c.DiscountMaxCategories < c.DiscountMinCategories {
		return fmt.Errorf("invalid discount category bounds [%d, %d]", c.DiscountMinCategories, c.DiscountMaxCategories)
	}
	return nil
}

type CatalogConfig struct {
	ProductCacheTTL    time.Duration `envconfig:"TECHNOSHOP_PRODUCT_CACHE_TTL" default:"15m"`
	ProductCacheJitter time.Duration `envconfig:"TECHNOSHOP_PRODUCT_CACHE_JITTER" default:"5m"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"TECHNOSHOP_CRON_INTERVAL" default:"1h"`
	LockTTL           time.Duration `envconfig:"TECHNOSHOP_CRON_LOCK_TTL" default:"55m"`
	OfferRetention    time.Duration `envconfig:"TECHNOSHOP_OFFER_RETENTION" default:"720h"`
	DiscountRetention time.Duration `envconfig:"TECHNOSHOP_DISCOUNT_RETENTION" default:"2160h"`
	MetricsPort       string        `envconfig:"TECHNOSHOP_CRON_METRICS_PORT" default:"9102"`
}

type StorefrontConfig struct {
	BaseURL            string        `envconfig:"TECHNOSHOP_STOREFRONT_API_URL" default:"http://localhost:8080"`
	Token              string        `envconfig:"TECHNOSHOP_STOREFRONT_TOKEN"`
	Timeout            time.Duration `envconfig:"TECHNOSHOP_STOREFRONT_TIMEOUT" default:"10s"`
	BreakerMaxFailures uint32        `envconfig:"TECHNOSHOP_STOREFRONT_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"TECHNOSHOP_STOREFRONT_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
