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
	Paymob       PaymobConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	Env          string `envconfig:"SOUQLY_APP_ENV" required:"true"`
	Port         string `envconfig:"SOUQLY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SOUQLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOUQLY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SOUQLY_DB_DSN"`
	Driver string `envconfig:"SOUQLY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SOUQLY_DB_HOST"`
	LegacyPort     int    `envconfig:"SOUQLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SOUQLY_DB_USER"`
	LegacyPassword string `envconfig:"SOUQLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"SOUQLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"SOUQLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOUQLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOUQLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOUQLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOUQLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOUQLY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SOUQLY_REDIS_ADDR"`
	Password     string        `envconfig:"SOUQLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOUQLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOUQLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOUQLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOUQLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOUQLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOUQLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SOUQLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SOUQLY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SOUQLY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PaymobConfig carries the payment gateway credentials. The HMAC secret signs
// webhook deliveries; the iframe and card integration ids come from the
// gateway dashboard.
type PaymobConfig struct {
	SecretKey         string        `envconfig:"SOUQLY_PAYMOB_SECRET_KEY" required:"true"`
	PublicKey         string        `envconfig:"SOUQLY_PAYMOB_PUBLIC_KEY" required:"true"`
	HMACSecret        string        `envconfig:"SOUQLY_PAYMOB_HMAC_SECRET" required:"true"`
	IframeID          string        `envconfig:"SOUQLY_PAYMOB_IFRAME_ID" required:"true"`
	CardIntegrationID int           `envconfig:"SOUQLY_PAYMOB_CARD_INTEGRATION_ID" required:"true"`
	BaseURL           string        `envconfig:"SOUQLY_PAYMOB_BASE_URL" default:"https://accept.paymob.com"`
	Timeout           time.Duration `envconfig:"SOUQLY_PAYMOB_TIMEOUT" default:"15s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SOUQLY_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SOUQLY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	SalesTopic        string `envconfig:"SOUQLY_PUBSUB_SALES_TOPIC" default:"souqly-sale-events"`
	SalesSubscription string `envconfig:"SOUQLY_PUBSUB_SALES_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SOUQLY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SOUQLY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SOUQLY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig tunes the scheduled worker. PendingSaleTTL is how long a checkout
// may sit unpaid before its reservation is released.
type CronConfig struct {
	Interval       time.Duration `envconfig:"SOUQLY_CRON_INTERVAL" default:"5m"`
	PendingSaleTTL time.Duration `envconfig:"SOUQLY_CRON_PENDING_SALE_TTL" default:"30m"`
	BatchSize      int           `envconfig:"SOUQLY_CRON_BATCH_SIZE" default:"100"`
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
