package config

const EnvPrefix = "CINEMA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "CINEMA_APP_ENV"
	EnvPort     = "CINEMA_APP_PORT"
	EnvBaseURL  = "CINEMA_APP_BASE_URL"
	EnvLogLevel = "CINEMA_LOG_LEVEL"

	EnvDBDSN  = "CINEMA_DB_DSN"
	EnvDBHost = "CINEMA_DB_HOST"
	EnvDBPort = "CINEMA_DB_PORT"
	EnvDBUser = "CINEMA_DB_USER"
	EnvDBPass = "CINEMA_DB_PASSWORD"
	EnvDBName = "CINEMA_DB_NAME"

	EnvRedisURL = "CINEMA_REDIS_URL"

	EnvJWTSecret  = "CINEMA_JWT_SECRET"
	EnvJWTIssuer  = "CINEMA_JWT_ISSUER"
	EnvJWTExpMins = "CINEMA_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey        = "CINEMA_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "CINEMA_STRIPE_WEBHOOK_SECRET"

	EnvCheckoutCurrency = "CINEMA_CHECKOUT_CURRENCY"
	EnvSMTPHost         = "CINEMA_SMTP_HOST"
	EnvCartAddRateLimit = "CINEMA_CART_ADD_RATE_LIMIT"
)

var dsnPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
