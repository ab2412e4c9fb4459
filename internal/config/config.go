package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

const (
	envPrefix     = "WEBHOOK_"
	configFileEnv = "WEBHOOK_CONFIG_FILE"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Auth     AuthConfig     `koanf:"auth"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Logger   LoggerConfig   `koanf:"logger"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

type Primary struct {
	Env         string `koanf:"env" validate:"required"`
	ServiceName string `koanf:"service_name" validate:"required"`
}

type ServerConfig struct {
	Port            string        `koanf:"port" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"required"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes" validate:"required,gt=0"`
}

// AuthConfig holds the shared secret senders present in the signature header.
type AuthConfig struct {
	Secret string `koanf:"secret" validate:"required"`
}

type DatabaseConfig struct {
	Driver           string        `koanf:"driver" validate:"required,oneof=postgres sqlite"`
	URL              string        `koanf:"url" validate:"required"`
	MaxOpenConns     int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns     int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime  time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime  time.Duration `koanf:"conn_max_idle_time" validate:"required"`
	StatementTimeout time.Duration `koanf:"statement_timeout"`
}

type CacheConfig struct {
	Enabled         bool          `koanf:"enabled"`
	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

type LoggerConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"omitempty,oneof=json text"`
}

type MetricsConfig struct {
	Namespace string `koanf:"namespace" validate:"required"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"primary.env":                 "development",
		"primary.service_name":        "webhook-receiver",
		"server.port":                 "8000",
		"server.read_timeout":         "15s",
		"server.write_timeout":        "15s",
		"server.idle_timeout":         "60s",
		"server.request_timeout":      "10s",
		"server.shutdown_timeout":     "30s",
		"server.max_body_bytes":       1 << 20,
		"database.driver":             DriverSQLite,
		"database.url":                "webhooks.db",
		"database.max_open_conns":     10,
		"database.max_idle_conns":     2,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.statement_timeout":  "5s",
		"cache.enabled":               true,
		"cache.ttl":                   "10m",
		"cache.cleanup_interval":      "15m",
		"logger.level":                "info",
		"logger.format":               "json",
		"metrics.namespace":           "webhook_receiver",
	}
}

// LoadConfig layers defaults, an optional YAML file named by WEBHOOK_CONFIG_FILE,
// and WEBHOOK_* environment variables ("__" separates sections).
func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	if path := os.Getenv(configFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			logger.Error("failed to load config file", "path", path, "error", err)
			return nil, err
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
