package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	Webhook      WebhookConfig
	SMTP         SMTPConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CINEMA_APP_ENV" required:"true"`
	Port         string `envconfig:"CINEMA_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"CINEMA_APP_BASE_URL" default:"http://localhost:8080"`
	LogLevel     string `envconfig:"CINEMA_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CINEMA_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CINEMA_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma separated allow-list for browser clients.
	CORSOrigins []string `envconfig:"CINEMA_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CINEMA_DB_DSN"`
	Driver string `envconfig:"CINEMA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CINEMA_DB_HOST"`
	Port     int    `envconfig:"CINEMA_DB_PORT" default:"5432"`
	User     string `envconfig:"CINEMA_DB_USER"`
	Password string `envconfig:"CINEMA_DB_PASSWORD"`
	Name     string `envconfig:"CINEMA_DB_NAME"`
	SSLMode  string `envconfig:"CINEMA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CINEMA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CINEMA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CINEMA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CINEMA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CINEMA_REDIS_URL"`
	Address      string        `envconfig:"CINEMA_REDIS_ADDR"`
	Password     string        `envconfig:"CINEMA_REDIS_PASSWORD"`
	DB           int           `envconfig:"CINEMA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CINEMA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CINEMA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CINEMA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CINEMA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CINEMA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CINEMA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CINEMA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CINEMA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CINEMA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CINEMA_AUTO_MIGRATE" default:"false"`
	// CartAddPerMinute caps cart additions per user; zero disables the limit.
	CartAddPerMinute int `envconfig:"CINEMA_CART_ADD_RATE_LIMIT" default:"30"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"CINEMA_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"CINEMA_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"CINEMA_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	Currency    string `envconfig:"CINEMA_CHECKOUT_CURRENCY" default:"usd"`
	SuccessPath string `envconfig:"CINEMA_CHECKOUT_SUCCESS_PATH" default:"/api/v1/payments/success"`
	CancelPath  string `envconfig:"CINEMA_CHECKOUT_CANCEL_PATH" default:"/api/v1/payments/cancel"`
}

type WebhookConfig struct {
	EventTTL time.Duration `envconfig:"CINEMA_WEBHOOK_EVENT_TTL" default:"72h"`
}

type SMTPConfig struct {
	Host     string `envconfig:"CINEMA_SMTP_HOST"`
	Port     int    `envconfig:"CINEMA_SMTP_PORT" default:"587"`
	Username string `envconfig:"CINEMA_SMTP_USERNAME"`
	Password string `envconfig:"CINEMA_SMTP_PASSWORD"`
	From     string `envconfig:"CINEMA_SMTP_FROM" default:"no-reply@online-cinema.local"`
	UseTLS   bool   `envconfig:"CINEMA_SMTP_USE_TLS" default:"true"`
}

// Enabled reports whether an SMTP relay is configured.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != ""
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CINEMA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CINEMA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CINEMA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dsnPartEnvVars {
		if parts[env] == "" {
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
