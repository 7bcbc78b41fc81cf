package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names shared with tests and deploy tooling.
const (
	EnvAppEnv       = "THRIFT_APP_ENV"
	EnvPort         = "THRIFT_APP_PORT"
	EnvDBDSN        = "THRIFT_DB_DSN"
	EnvDBHost       = "THRIFT_DB_HOST"
	EnvDBUser       = "THRIFT_DB_USER"
	EnvDBName       = "THRIFT_DB_NAME"
	EnvRedisURL     = "THRIFT_REDIS_URL"
	EnvJWTSecret    = "THRIFT_JWT_SECRET"
	EnvJWTIssuer    = "THRIFT_JWT_ISSUER"
	EnvJWTExpMins   = "THRIFT_JWT_EXPIRATION_MINUTES"
	EnvGCPProjectID = "THRIFT_GCP_PROJECT_ID"
	EnvGCSBucket    = "THRIFT_GCS_BUCKET_NAME"
	EnvRegion       = "THRIFT_DEFAULT_REGION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Catalog      CatalogConfig
	Submissions  SubmissionsConfig
	Admin        AdminConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
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
	Env          string `envconfig:"THRIFT_APP_ENV" required:"true"`
	Port         string `envconfig:"THRIFT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"THRIFT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"THRIFT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"THRIFT_DB_DSN"`
	Driver string `envconfig:"THRIFT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"THRIFT_DB_HOST"`
	LegacyPort     int    `envconfig:"THRIFT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"THRIFT_DB_USER"`
	LegacyPassword string `envconfig:"THRIFT_DB_PASSWORD"`
	LegacyName     string `envconfig:"THRIFT_DB_NAME"`
	LegacySSLMode  string `envconfig:"THRIFT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"THRIFT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"THRIFT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"THRIFT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"THRIFT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"THRIFT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"THRIFT_REDIS_ADDR"`
	Password     string        `envconfig:"THRIFT_REDIS_PASSWORD"`
	DB           int           `envconfig:"THRIFT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"THRIFT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"THRIFT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"THRIFT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"THRIFT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"THRIFT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"THRIFT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"THRIFT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"THRIFT_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiration returns the access token TTL configured in minutes.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"THRIFT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"THRIFT_AUTO_MIGRATE" default:"false"`
}

type CatalogConfig struct {
	DefaultRegion    string        `envconfig:"THRIFT_DEFAULT_REGION" default:"NC"`
	ImageCheckWindow time.Duration `envconfig:"THRIFT_CATALOG_IMAGE_CHECK_WINDOW" default:"10s"`
}

type SubmissionsConfig struct {
	MaxPhotosPerSubmission int `envconfig:"THRIFT_MAX_PHOTOS_PER_SUBMISSION" default:"5"`
	MaxUploadMB            int `envconfig:"THRIFT_MAX_UPLOAD_MB" default:"20"`
}

type AdminConfig struct {
	DisplayFlagTTL time.Duration `envconfig:"THRIFT_ADMIN_DISPLAY_FLAG_TTL" default:"10m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"THRIFT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"THRIFT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"THRIFT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"THRIFT_GCS_BUCKET_NAME"`
	PublicHost string `envconfig:"THRIFT_GCS_PUBLIC_HOST" default:"https://storage.googleapis.com"`
}

type PubSubConfig struct {
	ModerationTopic        string `envconfig:"THRIFT_PUBSUB_MODERATION_TOPIC"`
	ModerationSubscription string `envconfig:"THRIFT_PUBSUB_MODERATION_SUBSCRIPTION"`
}

// Enabled reports whether moderation event fan-out is configured.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.ModerationTopic) != ""
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
