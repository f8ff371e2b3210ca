package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mohammadpnp/bulk-import/internal/infrastructure/redis"
)

var ErrInvalidConfig = errors.New("invalid config")

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    redis.Config   `yaml:"redis"`
	Imports  ImportsConfig  `yaml:"imports"`
	Queue    QueueConfig    `yaml:"queue"`
	Errors   ErrorsConfig   `yaml:"errors"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	BodyLimit       string        `yaml:"body_limit"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds Postgres settings. An empty URL keeps jobs in memory.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

type ImportsConfig struct {
	BaseDir string `yaml:"base_dir"`
}

type QueueConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	LeaseTimeout      time.Duration `yaml:"lease_timeout"`
	DefaultMaxRetries int           `yaml:"default_max_retries"`
	CleanupAfterDays  int           `yaml:"cleanup_after_days"` // 0 disables job cleanup
}

type ErrorsConfig struct {
	MaxAge     time.Duration `yaml:"max_age"`
	ArchiveTTL time.Duration `yaml:"archive_ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BodyLimit == "" {
		c.Server.BodyLimit = "10M"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Imports.BaseDir == "" {
		c.Imports.BaseDir = "."
	}
	if c.Queue.PollInterval == 0 {
		c.Queue.PollInterval = 5 * time.Second
	}
	if c.Queue.LeaseTimeout == 0 {
		c.Queue.LeaseTimeout = 10 * time.Minute
	}
	if c.Queue.DefaultMaxRetries == 0 {
		c.Queue.DefaultMaxRetries = 3
	}
	if c.Errors.MaxAge == 0 {
		c.Errors.MaxAge = 24 * time.Hour
	}
	if c.Errors.ArchiveTTL == 0 {
		c.Errors.ArchiveTTL = 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Database.MinConns < 0 || c.Database.MaxConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("%w: database.min_conns %d exceeds max_conns %d", ErrInvalidConfig, c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Queue.PollInterval < 0 || c.Queue.LeaseTimeout < 0 {
		return fmt.Errorf("%w: queue intervals must be positive", ErrInvalidConfig)
	}
	if c.Queue.DefaultMaxRetries < 0 || c.Queue.CleanupAfterDays < 0 {
		return fmt.Errorf("%w: queue retries and cleanup days must not be negative", ErrInvalidConfig)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}
