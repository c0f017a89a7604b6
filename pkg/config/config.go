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
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Razorpay     RazorpayConfig
	Payouts      PayoutConfig
	Cron         CronConfig
	Ops          OpsConfig
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
	Env          string `envconfig:"BAZAARIO_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"BAZAARIO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAZAARIO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BAZAARIO_SERVICE_KIND" default:"settlement-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"BAZAARIO_DB_DSN"`
	Driver string `envconfig:"BAZAARIO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BAZAARIO_DB_HOST"`
	LegacyPort     int    `envconfig:"BAZAARIO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BAZAARIO_DB_USER"`
	LegacyPassword string `envconfig:"BAZAARIO_DB_PASSWORD"`
	LegacyName     string `envconfig:"BAZAARIO_DB_NAME"`
	LegacySSLMode  string `envconfig:"BAZAARIO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAZAARIO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAZAARIO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAZAARIO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAZAARIO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAZAARIO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BAZAARIO_REDIS_ADDR"`
	Password     string        `envconfig:"BAZAARIO_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAZAARIO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAZAARIO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAZAARIO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAZAARIO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAZAARIO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAZAARIO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BAZAARIO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BAZAARIO_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"BAZAARIO_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BAZAARIO_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"BAZAARIO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BAZAARIO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic           string `envconfig:"BAZAARIO_PUBSUB_SETTLEMENT_TOPIC" default:"bz-settlement-events"`
	SettlementSubscription    string `envconfig:"BAZAARIO_PUBSUB_SETTLEMENT_SUBSCRIPTION" required:"true"`
	NotificationsSubscription string `envconfig:"BAZAARIO_PUBSUB_NOTIFICATIONS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BAZAARIO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BAZAARIO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BAZAARIO_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type RazorpayConfig struct {
	Key    string `envconfig:"BAZAARIO_RAZORPAY_KEY"`
	Secret string `envconfig:"BAZAARIO_RAZORPAY_SECRET"`
}

type PayoutConfig struct {
	MinAmount         string        `envconfig:"BAZAARIO_PAYOUT_MIN_AMOUNT" default:"100"`
	SellerInterval    time.Duration `envconfig:"BAZAARIO_PAYOUT_SELLER_INTERVAL" default:"168h"`
	AffiliateInterval time.Duration `envconfig:"BAZAARIO_PAYOUT_AFFILIATE_INTERVAL" default:"720h"`
	CommissionHold    time.Duration `envconfig:"BAZAARIO_PAYOUT_COMMISSION_HOLD" default:"168h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BAZAARIO_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"BAZAARIO_CRON_LOCK_TTL" default:"55m"`
}

type OpsConfig struct {
	Port string `envconfig:"BAZAARIO_OPS_PORT" default:"9090"`
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
