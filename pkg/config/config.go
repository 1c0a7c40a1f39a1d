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
	Plans         PlansConfig
	Sessions      SessionsConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Stripe        StripeConfig
	Square        SquareConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"TALLYPOS_APP_ENV" required:"true"`
	Port         string `envconfig:"TALLYPOS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TALLYPOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TALLYPOS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TALLYPOS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TALLYPOS_DB_DSN"`
	Driver string `envconfig:"TALLYPOS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TALLYPOS_DB_HOST"`
	LegacyPort     int    `envconfig:"TALLYPOS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TALLYPOS_DB_USER"`
	LegacyPassword string `envconfig:"TALLYPOS_DB_PASSWORD"`
	LegacyName     string `envconfig:"TALLYPOS_DB_NAME"`
	LegacySSLMode  string `envconfig:"TALLYPOS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TALLYPOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TALLYPOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TALLYPOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TALLYPOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TALLYPOS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TALLYPOS_REDIS_ADDR"`
	Password     string        `envconfig:"TALLYPOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"TALLYPOS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TALLYPOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TALLYPOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TALLYPOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TALLYPOS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TALLYPOS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TALLYPOS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TALLYPOS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TALLYPOS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TALLYPOS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TALLYPOS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TALLYPOS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TALLYPOS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TALLYPOS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TALLYPOS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TALLYPOS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TALLYPOS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TALLYPOS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TALLYPOS_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TALLYPOS_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TALLYPOS_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TALLYPOS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TALLYPOS_AUTO_MIGRATE" default:"false"`
}

// PlansConfig controls the item quotas applied to vendor plans.
type PlansConfig struct {
	FreeTierItemLimit int           `envconfig:"TALLYPOS_PLANS_FREE_TIER_ITEM_LIMIT" default:"5"`
	CacheTTL          time.Duration `envconfig:"TALLYPOS_PLANS_CACHE_TTL" default:"5m"`
}

// SessionsConfig controls share-session policy.
type SessionsConfig struct {
	JoinCodeLength      int           `envconfig:"TALLYPOS_SESSIONS_JOIN_CODE_LENGTH" default:"6"`
	DeviceRecordTTL     time.Duration `envconfig:"TALLYPOS_SESSIONS_DEVICE_RECORD_TTL" default:"72h"`
	MinPassphraseLength int           `envconfig:"TALLYPOS_SESSIONS_MIN_PASSPHRASE_LENGTH" default:"4"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TALLYPOS_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TALLYPOS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TALLYPOS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"TALLYPOS_GCS_BUCKET_NAME" required:"true"`
	UploadURLExpiry   time.Duration `envconfig:"TALLYPOS_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"TALLYPOS_GCS_DOWNLOAD_URL_EXPIRY" default:"1h"`
}

type PubSubConfig struct {
	InventoryTopic        string `envconfig:"TALLYPOS_PUBSUB_INVENTORY_TOPIC" required:"true"`
	InventorySubscription string `envconfig:"TALLYPOS_PUBSUB_INVENTORY_SUBSCRIPTION" required:"true"`
	SessionsTopic         string `envconfig:"TALLYPOS_PUBSUB_SESSIONS_TOPIC" required:"true"`
	SessionsSubscription  string `envconfig:"TALLYPOS_PUBSUB_SESSIONS_SUBSCRIPTION" required:"true"`
	OrdersTopic           string `envconfig:"TALLYPOS_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription    string `envconfig:"TALLYPOS_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"TALLYPOS_BIGQUERY_DATASET" default:"tallypos"`
	SalesEventsTable string `envconfig:"TALLYPOS_BIGQUERY_SALES_TABLE" default:"sales_events"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"TALLYPOS_STRIPE_API_KEY"`
	Secret     string `envconfig:"TALLYPOS_STRIPE_SECRET"`
	Env        string `envconfig:"TALLYPOS_STRIPE_ENV" default:"test"`
	SuccessURL string `envconfig:"TALLYPOS_STRIPE_SUCCESS_URL"`
	CancelURL  string `envconfig:"TALLYPOS_STRIPE_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken string `envconfig:"TALLYPOS_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"TALLYPOS_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"TALLYPOS_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"TALLYPOS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"TALLYPOS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"TALLYPOS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"TALLYPOS_OUTBOX_RETENTION" default:"336h"`
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
