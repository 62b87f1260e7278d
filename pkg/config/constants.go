package config

const EnvPrefix = "TECHNOSHOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "TECHNOSHOP_APP_ENV"
	EnvPort                   = "TECHNOSHOP_APP_PORT"
	EnvLogLevel               = "TECHNOSHOP_LOG_LEVEL"
	EnvDBDSN                  = "TECHNOSHOP_DB_DSN"
	EnvDBHost                 = "TECHNOSHOP_DB_HOST"
	EnvDBPort                 = "TECHNOSHOP_DB_PORT"
	EnvDBUser                 = "TECHNOSHOP_DB_USER"
	EnvDBPassword             = "TECHNOSHOP_DB_PASSWORD"
	EnvDBName                 = "TECHNOSHOP_DB_NAME"
	EnvRedisURL               = "TECHNOSHOP_REDIS_URL"
	EnvJWTSecret              = "TECHNOSHOP_JWT_SECRET"
	EnvJWTIssuer              = "TECHNOSHOP_JWT_ISSUER"
	EnvJWTExpMins             = "TECHNOSHOP_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "TECHNOSHOP_REFRESH_TOKEN_TTL_MINUTES"
	EnvDiscountMinPrice       = "TECHNOSHOP_DISCOUNT_MIN_PRICE"
	EnvDiscountMinCategories  = "TECHNOSHOP_DISCOUNT_MIN_CATEGORIES"
	EnvDiscountMaxCategories  = "TECHNOSHOP_DISCOUNT_MAX_CATEGORIES"
	EnvStorefrontURL          = "TECHNOSHOP_STOREFRONT_API_URL"
	EnvStorefrontToken        = "TECHNOSHOP_STOREFRONT_TOKEN"
)

// discreteDBEnvVars must all be set when no DSN is supplied.
var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
