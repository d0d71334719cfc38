// Package config loads pokerbank settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pokerbank/internal/auth"
	"github.com/jason-s-yu/pokerbank/internal/presence"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendHTTP     = "http"
)

type Config struct {
	Env      string `env:"POKERBANK_ENV" envDefault:"dev"`
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	RedisAddr    string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB      int    `env:"REDIS_DB" envDefault:"0"`
	DatabaseURL  string `env:"DATABASE_URL"`
	ServerURL    string `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	CachePath    string `env:"CACHE_PATH" envDefault:"pokerbank-cache.db"`

	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	InactivityTimeout time.Duration `env:"INACTIVITY_TIMEOUT" envDefault:"5m"`
	HostGracePeriod   time.Duration `env:"HOST_GRACE_PERIOD" envDefault:"30s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"10s"`

	InitialMoney    int64    `env:"INITIAL_MONEY" envDefault:"1000"`
	TokenExpireTime string   `env:"TOKEN_EXPIRE_TIME" envDefault:"never"`
	AllowedOrigins  []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// Raw ed25519 key files for host tokens. Unset, the server signs with a key generated at startup,
	// so tokens do not survive a restart.
	TokenPrivateKeyPath string `env:"TOKEN_PRIVATE_KEY_PATH"`
	TokenPublicKeyPath  string `env:"TOKEN_PUBLIC_KEY_PATH"`

	HistorianQueueName string `env:"HISTORIAN_QUEUE_NAME" envDefault:"pokerbank_actions"`
	HistorianBatchSize int    `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlushMS   int    `env:"HISTORIAN_FLUSH_MS" envDefault:"500"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis, BackendHTTP:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.InitialMoney < 0 {
		return fmt.Errorf("INITIAL_MONEY must not be negative")
	}
	if _, err := auth.ParseTTL(c.TokenExpireTime); err != nil {
		return err
	}
	if (c.TokenPrivateKeyPath == "") != (c.TokenPublicKeyPath == "") {
		return fmt.Errorf("TOKEN_PRIVATE_KEY_PATH and TOKEN_PUBLIC_KEY_PATH must be set together")
	}
	return nil
}

// InitAuth prepares host-token signing, from the configured key files when present.
func (c Config) InitAuth() error {
	if c.TokenPrivateKeyPath != "" {
		return auth.InitFromPath(c.TokenPrivateKeyPath, c.TokenPublicKeyPath, c.TokenTTL())
	}
	return auth.Init(c.TokenTTL())
}

// Production reports whether POKERBANK_ENV selects production mode.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// Addr is the HTTP listen address. Outside production the server binds to localhost only.
func (c Config) Addr() string {
	if c.Production() {
		return fmt.Sprintf(":%d", c.Port)
	}
	return fmt.Sprintf("localhost:%d", c.Port)
}

// TokenTTL is the parsed host-token lifetime.
func (c Config) TokenTTL() time.Duration {
	d, _ := auth.ParseTTL(c.TokenExpireTime)
	return d
}

func (c Config) HistorianFlushDelay() time.Duration {
	return time.Duration(c.HistorianFlushMS) * time.Millisecond
}

func (c Config) Tracker() presence.Tracker {
	return presence.Tracker{
		InactivityTimeout: c.InactivityTimeout,
		HostGracePeriod:   c.HostGracePeriod,
		HeartbeatInterval: c.HeartbeatInterval,
	}
}

// Logger builds a logrus logger at LOG_LEVEL, falling back to info for unknown levels.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if c.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
