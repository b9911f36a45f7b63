package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration (authoritative profile store)
	Database DatabaseConfig

	// Redis configuration (derived claims cache)
	Redis RedisConfig

	// Auth configuration (claims token issuing and verification)
	Auth AuthConfig

	// Migration configuration
	Migration MigrationConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds the claims cache connection settings
type RedisConfig struct {
	URL string

	// SnapshotTTL bounds how long a cached claims snapshot can serve
	// reads before a profile re-read is forced.
	SnapshotTTL time.Duration

	// CleanupSchedule is the cron expression for the stale-snapshot
	// sweep.
	CleanupSchedule string
}

// AuthConfig holds claims token settings
type AuthConfig struct {
	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration
}

// MigrationConfig holds legacy migration engine settings
type MigrationConfig struct {
	// Concurrency bounds how many organizations migrate in parallel.
	Concurrency int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       logrus.Level
	LogFormat      string // "json" or "text"
	MetricsEnabled bool
}

// LoadConfig loads configuration in three layers: built-in defaults, then
// the optional YAML file named by TASKNEST_CONFIG_FILE, then TASKNEST_*
// environment variables. Environment always wins.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("TASKNEST_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns the built-in defaults
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			ConnLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL:             "redis://localhost:6379/0",
			SnapshotTTL:     12 * time.Hour,
			CleanupSchedule: "0 * * * *",
		},
		Auth: AuthConfig{
			TokenIssuer: "tasknest",
			TokenTTL:    12 * time.Hour,
		},
		Migration: MigrationConfig{
			Concurrency: 4,
		},
		Observability: ObservabilityConfig{
			LogLevel:       logrus.InfoLevel,
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}

// fileConfig is the YAML override shape. Pointer fields distinguish "not
// set" from a zero value; durations are Go duration strings ("15s").
type fileConfig struct {
	Server struct {
		Host            *string `yaml:"host"`
		Port            *string `yaml:"port"`
		ReadTimeout     *string `yaml:"readTimeout"`
		WriteTimeout    *string `yaml:"writeTimeout"`
		IdleTimeout     *string `yaml:"idleTimeout"`
		ShutdownTimeout *string `yaml:"shutdownTimeout"`
		HealthPort      *string `yaml:"healthPort"`
	} `yaml:"server"`
	Database struct {
		URL          *string `yaml:"url"`
		MaxOpenConns *int    `yaml:"maxOpenConns"`
		MaxIdleConns *int    `yaml:"maxIdleConns"`
		ConnLifetime *string `yaml:"connLifetime"`
	} `yaml:"database"`
	Redis struct {
		URL             *string `yaml:"url"`
		SnapshotTTL     *string `yaml:"snapshotTTL"`
		CleanupSchedule *string `yaml:"cleanupSchedule"`
	} `yaml:"redis"`
	Auth struct {
		TokenSecret *string `yaml:"tokenSecret"`
		TokenIssuer *string `yaml:"tokenIssuer"`
		TokenTTL    *string `yaml:"tokenTTL"`
	} `yaml:"auth"`
	Migration struct {
		Concurrency *int `yaml:"concurrency"`
	} `yaml:"migration"`
	Observability struct {
		LogLevel       *string `yaml:"logLevel"`
		LogFormat      *string `yaml:"logFormat"`
		MetricsEnabled *bool   `yaml:"metricsEnabled"`
	} `yaml:"observability"`
}

// applyFile overlays settings from a YAML file
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	setString(&c.Server.Host, fc.Server.Host)
	setString(&c.Server.Port, fc.Server.Port)
	setString(&c.Server.HealthPort, fc.Server.HealthPort)
	setString(&c.Database.URL, fc.Database.URL)
	setInt(&c.Database.MaxOpenConns, fc.Database.MaxOpenConns)
	setInt(&c.Database.MaxIdleConns, fc.Database.MaxIdleConns)
	setString(&c.Redis.URL, fc.Redis.URL)
	setString(&c.Redis.CleanupSchedule, fc.Redis.CleanupSchedule)
	setString(&c.Auth.TokenSecret, fc.Auth.TokenSecret)
	setString(&c.Auth.TokenIssuer, fc.Auth.TokenIssuer)
	setInt(&c.Migration.Concurrency, fc.Migration.Concurrency)

	if err := setDuration(&c.Server.ReadTimeout, fc.Server.ReadTimeout); err != nil {
		return fmt.Errorf("server.readTimeout: %w", err)
	}
	if err := setDuration(&c.Server.WriteTimeout, fc.Server.WriteTimeout); err != nil {
		return fmt.Errorf("server.writeTimeout: %w", err)
	}
	if err := setDuration(&c.Server.IdleTimeout, fc.Server.IdleTimeout); err != nil {
		return fmt.Errorf("server.idleTimeout: %w", err)
	}
	if err := setDuration(&c.Server.ShutdownTimeout, fc.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("server.shutdownTimeout: %w", err)
	}
	if err := setDuration(&c.Database.ConnLifetime, fc.Database.ConnLifetime); err != nil {
		return fmt.Errorf("database.connLifetime: %w", err)
	}
	if err := setDuration(&c.Redis.SnapshotTTL, fc.Redis.SnapshotTTL); err != nil {
		return fmt.Errorf("redis.snapshotTTL: %w", err)
	}
	if err := setDuration(&c.Auth.TokenTTL, fc.Auth.TokenTTL); err != nil {
		return fmt.Errorf("auth.tokenTTL: %w", err)
	}

	if fc.Observability.LogLevel != nil {
		c.Observability.LogLevel = parseLogLevel(*fc.Observability.LogLevel)
	}
	setString(&c.Observability.LogFormat, fc.Observability.LogFormat)
	if fc.Observability.MetricsEnabled != nil {
		c.Observability.MetricsEnabled = *fc.Observability.MetricsEnabled
	}

	return nil
}

// applyEnv overlays TASKNEST_* environment variables
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("TASKNEST_HOST", c.Server.Host)
	c.Server.Port = getEnv("TASKNEST_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("TASKNEST_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("TASKNEST_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("TASKNEST_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("TASKNEST_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.HealthPort = getEnv("TASKNEST_HEALTH_PORT", c.Server.HealthPort)

	c.Database.URL = getEnv("TASKNEST_POSTGRES_URL", c.Database.URL)
	c.Database.MaxOpenConns = getEnvInt("TASKNEST_POSTGRES_MAX_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("TASKNEST_POSTGRES_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnLifetime = getEnvDuration("TASKNEST_POSTGRES_CONN_LIFETIME", c.Database.ConnLifetime)

	c.Redis.URL = getEnv("TASKNEST_REDIS_URL", c.Redis.URL)
	c.Redis.SnapshotTTL = getEnvDuration("TASKNEST_CLAIMS_TTL", c.Redis.SnapshotTTL)
	c.Redis.CleanupSchedule = getEnv("TASKNEST_CLAIMS_CLEANUP_SCHEDULE", c.Redis.CleanupSchedule)

	c.Auth.TokenSecret = getEnv("TASKNEST_TOKEN_SECRET", c.Auth.TokenSecret)
	c.Auth.TokenIssuer = getEnv("TASKNEST_TOKEN_ISSUER", c.Auth.TokenIssuer)
	c.Auth.TokenTTL = getEnvDuration("TASKNEST_TOKEN_TTL", c.Auth.TokenTTL)

	c.Migration.Concurrency = getEnvInt("TASKNEST_MIGRATION_CONCURRENCY", c.Migration.Concurrency)

	if level := os.Getenv("TASKNEST_LOG_LEVEL"); level != "" {
		c.Observability.LogLevel = parseLogLevel(level)
	}
	c.Observability.LogFormat = getEnv("TASKNEST_LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsEnabled = getEnvBool("TASKNEST_METRICS_ENABLED", c.Observability.MetricsEnabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("token secret is required")
	}
	if c.Auth.TokenIssuer == "" {
		return fmt.Errorf("token issuer is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}

	if c.Migration.Concurrency < 1 {
		return fmt.Errorf("migration concurrency must be at least 1")
	}

	if c.Observability.LogFormat != "json" && c.Observability.LogFormat != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
