package config

import (
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	API       APIConfig
	Session   SessionConfig
	Redis     RedisConfig
	Keyring   KeyringConfig
	Server    ServerConfig
	Logging   LogConfig
	Keepalive KeepaliveConfig
}

type APIConfig struct {
	BaseURL          string `envconfig:"API_BASE_URL" required:"true"`
	RefreshEndpoint  string `envconfig:"API_REFRESH_ENDPOINT" default:"/auth/refresh"`
	StrictPathParams bool   `envconfig:"API_STRICT_PARAMS" default:"false"`
}

type SessionConfig struct {
	Store       string `envconfig:"SESSION_STORE" default:"sqlite"`
	Profile     string `envconfig:"SESSION_PROFILE" default:"default"`
	DBPath      string `envconfig:"SESSION_DB" default:"data/sessions.db"`
	Migrations  string `envconfig:"SESSION_MIGRATIONS" default:"migrations"`
	ClearOnFail bool   `envconfig:"SESSION_CLEAR_ON_FAIL" default:"false"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Prefix   string `envconfig:"REDIS_PREFIX" default:"httpsvc"`
}

type KeyringConfig struct {
	Service  string `envconfig:"KEYRING_SERVICE" default:"httpsvc"`
	Backend  string `envconfig:"KEYRING_BACKEND" default:"auto"`
	Dir      string `envconfig:"KEYRING_DIR"`
	Password string `envconfig:"KEYRING_PASSWORD"`
}

type ServerConfig struct {
	Port  int  `envconfig:"PORT" default:"8080"`
	Debug bool `envconfig:"DEBUG" default:"false"`
}

type LogConfig struct {
	Env   string `envconfig:"LOG_ENV" default:"dev"`
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

type KeepaliveConfig struct {
	Schedule string `envconfig:"KEEPALIVE_SCHEDULE" default:"*/15 * * * *"`
}

const (
	StoreSQLite  = "sqlite"
	StoreRedis   = "redis"
	StoreKeyring = "keyring"
	StoreMemory  = "memory"
)

// Load reads an optional .env file and then the process environment.
// It reports whether a .env file was found.
func Load() (*Config, bool, error) {
	dotenv := godotenv.Load() == nil

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, dotenv, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, dotenv, err
	}
	return &cfg, dotenv, nil
}

func (cfg *Config) Validate() error {
	switch cfg.Session.Store {
	case StoreSQLite, StoreRedis, StoreKeyring, StoreMemory:
	default:
		return errors.Newf("unknown SESSION_STORE %q (want sqlite, redis, keyring or memory)", cfg.Session.Store)
	}
	if cfg.Session.Profile == "" {
		return errors.New("SESSION_PROFILE must not be empty")
	}
	return nil
}
