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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Booking      BookingConfig
	Serving      ServingConfig
	Slots        SlotsConfig
	Payouts      PayoutConfig
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
	Env          string `envconfig:"ADMESH_APP_ENV" required:"true"`
	Port         string `envconfig:"ADMESH_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"ADMESH_APP_BASE_URL" default:"http://localhost:8080"`
	LogLevel     string `envconfig:"ADMESH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ADMESH_LOG_WARN_STACK" default:"false"`

	// AdminUserIDs gate the admin API. Empty means no admin surface.
	AdminUserIDs []string `envconfig:"ADMESH_ADMIN_USER_IDS"`
}

// IsAdmin reports whether the given user id is on the admin allowlist.
func (a AppConfig) IsAdmin(userID string) bool {
	for _, id := range a.AdminUserIDs {
		if strings.EqualFold(strings.TrimSpace(id), userID) {
			return true
		}
	}
	return false
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ADMESH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ADMESH_DB_DSN"`
	Driver string `envconfig:"ADMESH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ADMESH_DB_HOST"`
	LegacyPort     int    `envconfig:"ADMESH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ADMESH_DB_USER"`
	LegacyPassword string `envconfig:"ADMESH_DB_PASSWORD"`
	LegacyName     string `envconfig:"ADMESH_DB_NAME"`
	LegacySSLMode  string `envconfig:"ADMESH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ADMESH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ADMESH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ADMESH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ADMESH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ADMESH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ADMESH_REDIS_ADDR"`
	Password     string        `envconfig:"ADMESH_REDIS_PASSWORD"`
	DB           int           `envconfig:"ADMESH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ADMESH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ADMESH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ADMESH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ADMESH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ADMESH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ADMESH_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ADMESH_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ADMESH_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ADMESH_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"ADMESH_STRIPE_API_KEY"`
	Secret string `envconfig:"ADMESH_STRIPE_SECRET"`
	Env    string `envconfig:"ADMESH_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ADMESH_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ADMESH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ADMESH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AdEventsTopic        string `envconfig:"ADMESH_PUBSUB_AD_EVENTS_TOPIC" default:"am-ad-events"`
	AdEventsSubscription string `envconfig:"ADMESH_PUBSUB_AD_EVENTS_SUBSCRIPTION" default:"am-ad-events-bq"`
}

type BigQueryConfig struct {
	Dataset       string `envconfig:"ADMESH_BIGQUERY_DATASET" default:"admesh"`
	AdEventsTable string `envconfig:"ADMESH_BIGQUERY_AD_EVENTS_TABLE" default:"ad_events"`
}

type BookingConfig struct {
	StaleAfter      time.Duration `envconfig:"ADMESH_BOOKING_STALE_AFTER" default:"10m"`
	CheckoutSuccess string        `envconfig:"ADMESH_BOOKING_CHECKOUT_SUCCESS_URL" default:"/dashboard/bookings?status=success"`
	CheckoutCancel  string        `envconfig:"ADMESH_BOOKING_CHECKOUT_CANCEL_URL" default:"/dashboard/bookings?status=canceled"`
}

type ServingConfig struct {
	NonceTTL time.Duration `envconfig:"ADMESH_SERVE_NONCE_TTL" default:"6h"`
}

// SlotsConfig seeds lazily created weekly inventory rows.
type SlotsConfig struct {
	BasePriceCents int64 `envconfig:"ADMESH_SLOT_BASE_PRICE_CENTS" default:"100000"`
	UsersEstimate  int64 `envconfig:"ADMESH_SLOT_USERS_ESTIMATE" default:"50000"`
}

type PayoutConfig struct {
	MinimumCents    int64 `envconfig:"ADMESH_PAYOUT_MINIMUM_CENTS" default:"2500"`
	HoldDays        int   `envconfig:"ADMESH_PAYOUT_HOLD_DAYS" default:"7"`
	RevenueShareBPS int   `envconfig:"ADMESH_PAYOUT_REVENUE_SHARE_BPS" default:"7000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
