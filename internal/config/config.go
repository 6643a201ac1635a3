// Package config loads CLI and server configuration.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// YAML file, and TIQOLOGY_* environment variables. Command-line flags are
// applied on top by the caller.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Config is the full runtime configuration.
type Config struct {
	APIBaseURL   string        `env:"TIQOLOGY_API_URL, default=http://localhost:8080"            yaml:"api_url"       validate:"required,url"`
	GhostURL     string        `env:"TIQOLOGY_GHOST_URL, default=http://localhost:3000/api/ghost" yaml:"ghost_url"     validate:"required,url"`
	GhostAPIKey  string        `env:"TIQOLOGY_GHOST_API_KEY"                                      yaml:"ghost_api_key"`
	GhostTimeout time.Duration `env:"TIQOLOGY_GHOST_TIMEOUT, default=30s"                         yaml:"ghost_timeout" validate:"gt=0"`

	SnapshotTimeout time.Duration `env:"TIQOLOGY_SNAPSHOT_TIMEOUT, default=30s" yaml:"snapshot_timeout" validate:"gt=0"`

	LogLevel  string `env:"TIQOLOGY_LOG_LEVEL, default=info"  yaml:"log_level"  validate:"oneof=debug info warn warning error"`
	LogFormat string `env:"TIQOLOGY_LOG_FORMAT, default=text" yaml:"log_format" validate:"oneof=text json"`

	Metrics bool `env:"TIQOLOGY_METRICS" yaml:"metrics"`
	Audit   bool `env:"TIQOLOGY_AUDIT"   yaml:"audit"`

	ServeAddr string `env:"TIQOLOGY_SERVE_ADDR, default=127.0.0.1:4000" yaml:"serve_addr" validate:"required,hostname_port"`

	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig selects where the session record is persisted.
type StorageConfig struct {
	Driver string `env:"TIQOLOGY_STORAGE, default=file" yaml:"driver" validate:"oneof=memory file redis sqlite"`
	// Path is the file or SQLite database location. Default: under ~/.tiqology.
	Path string `env:"TIQOLOGY_STORAGE_PATH" yaml:"path"`
	Key  string `env:"TIQOLOGY_STORAGE_KEY, default=session-store" yaml:"key" validate:"required"`

	RedisAddr     string `env:"TIQOLOGY_REDIS_ADDR, default=localhost:6379" yaml:"redis_addr"`
	RedisPassword string `env:"TIQOLOGY_REDIS_PASSWORD"                     yaml:"redis_password"`
	RedisDB       int    `env:"TIQOLOGY_REDIS_DB"                           yaml:"redis_db" validate:"gte=0"`
}

// Load reads the optional YAML file at path and the process environment.
func Load(ctx context.Context, path string) (*Config, error) {
	return LoadWith(ctx, path, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit environment source.
func LoadWith(ctx context.Context, path string, env envconfig.Lookuper) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing config file: %w", err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           &cfg,
		Lookuper:         env,
		DefaultOverwrite: true,
	}); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath(cfg.Storage.Driver)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// DefaultStoragePath returns the default location for the file and sqlite drivers.
func DefaultStoragePath(driver string) string {
	dir := ".tiqology"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".tiqology")
	}
	switch driver {
	case StorageFile:
		return filepath.Join(dir, "session-store.json")
	case StorageSQLite:
		return filepath.Join(dir, "session.db")
	default:
		return ""
	}
}
