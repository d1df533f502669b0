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
	Dispatch     DispatchConfig
	Stream       StreamConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"ENTREGALO_APP_ENV" required:"true"`
	Port         string `envconfig:"ENTREGALO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ENTREGALO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ENTREGALO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ENTREGALO_DB_DSN"`
	Driver string `envconfig:"ENTREGALO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ENTREGALO_DB_HOST"`
	LegacyPort     int    `envconfig:"ENTREGALO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ENTREGALO_DB_USER"`
	LegacyPassword string `envconfig:"ENTREGALO_DB_PASSWORD"`
	LegacyName     string `envconfig:"ENTREGALO_DB_NAME"`
	LegacySSLMode  string `envconfig:"ENTREGALO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ENTREGALO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ENTREGALO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ENTREGALO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ENTREGALO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ENTREGALO_REDIS_URL"`
	Address      string        `envconfig:"ENTREGALO_REDIS_ADDR"`
	Password     string        `envconfig:"ENTREGALO_REDIS_PASSWORD"`
	DB           int           `envconfig:"ENTREGALO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ENTREGALO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ENTREGALO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ENTREGALO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ENTREGALO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ENTREGALO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ENTREGALO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ENTREGALO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ENTREGALO_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the access token lifetime configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type DispatchConfig struct {
	DeliveryFeeCents int `envconfig:"ENTREGALO_DISPATCH_DELIVERY_FEE_CENTS" default:"300"`
}

type StreamConfig struct {
	HeartbeatInterval time.Duration `envconfig:"ENTREGALO_STREAM_HEARTBEAT_INTERVAL" default:"25s"`
	SubscriberBuffer  int           `envconfig:"ENTREGALO_STREAM_SUBSCRIBER_BUFFER" default:"8"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ENTREGALO_AUTO_MIGRATE" default:"false"`
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
