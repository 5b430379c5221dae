package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "TIKETA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "TIKETA_DB_DSN"
	EnvDBHost = "TIKETA_DB_HOST"
	EnvDBUser = "TIKETA_DB_USER"
	EnvDBName = "TIKETA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Checkout     CheckoutConfig
	Scheduler    SchedulerConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
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
	Env          string `envconfig:"TIKETA_APP_ENV" required:"true"`
	Port         string `envconfig:"TIKETA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TIKETA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TIKETA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TIKETA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TIKETA_DB_DSN"`
	Driver string `envconfig:"TIKETA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TIKETA_DB_HOST"`
	LegacyPort     int    `envconfig:"TIKETA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TIKETA_DB_USER"`
	LegacyPassword string `envconfig:"TIKETA_DB_PASSWORD"`
	LegacyName     string `envconfig:"TIKETA_DB_NAME"`
	LegacySSLMode  string `envconfig:"TIKETA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TIKETA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TIKETA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TIKETA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TIKETA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TIKETA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TIKETA_REDIS_ADDR"`
	Password     string        `envconfig:"TIKETA_REDIS_PASSWORD"`
	DB           int           `envconfig:"TIKETA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TIKETA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TIKETA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TIKETA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TIKETA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TIKETA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TIKETA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TIKETA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TIKETA_JWT_EXPIRATION_MINUTES" required:"true"`
}

// CheckoutConfig holds the transaction lifecycle windows.
type CheckoutConfig struct {
	PaymentWindow      time.Duration `envconfig:"TIKETA_CHECKOUT_PAYMENT_WINDOW" default:"2h"`
	ConfirmationWindow time.Duration `envconfig:"TIKETA_CHECKOUT_CONFIRMATION_WINDOW" default:"72h"`
	PointsRefundMonths int           `envconfig:"TIKETA_CHECKOUT_POINTS_REFUND_MONTHS" default:"3"`
	MaxProofSizeMB     int           `envconfig:"TIKETA_CHECKOUT_MAX_PROOF_SIZE_MB" default:"5"`
}

type SchedulerConfig struct {
	ExpireInterval time.Duration `envconfig:"TIKETA_SCHEDULER_EXPIRE_INTERVAL" default:"5m"`
	StaleInterval  time.Duration `envconfig:"TIKETA_SCHEDULER_STALE_INTERVAL" default:"60m"`
	LockTTL        time.Duration `envconfig:"TIKETA_SCHEDULER_LOCK_TTL" default:"4m"`
	SweepBatchSize int           `envconfig:"TIKETA_SCHEDULER_SWEEP_BATCH_SIZE" default:"200"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TIKETA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TIKETA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TIKETA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TIKETA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TIKETA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"TIKETA_GCS_BUCKET_NAME"`
	ProofDir   string `envconfig:"TIKETA_GCS_PROOF_DIR" default:"payment-proofs"`
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
