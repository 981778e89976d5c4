// Package config loads service configuration from a YAML file with
// environment-variable overrides, merged over defaults and validated.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the default configuration file name.
const ConfigFileName = "config.yaml"

// Config holds all service configuration.
type Config struct {
	Neo4j    Neo4jConfig              `yaml:"neo4j"`
	Server   ServerConfig             `yaml:"server"`
	Backends map[string]BackendConfig `yaml:"backends"`
	Logging  LoggingConfig            `yaml:"logging"`
	Audit    AuditConfig              `yaml:"audit"`
}

// Neo4jConfig is the connection profile for the graph database.
// Lifetime and timeout are whole seconds.
type Neo4jConfig struct {
	URI                   string `yaml:"uri"`
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	Database              string `yaml:"database"`
	MaxConnectionPoolSize int    `yaml:"max_connection_pool_size"`
	MaxConnectionLifetime int    `yaml:"max_connection_lifetime"`
	ConnectionTimeout     int    `yaml:"connection_timeout"`
	MaxRetryAttempts      int    `yaml:"max_retry_attempts"`
}

// ConnectionTimeoutDuration returns the connection timeout as a duration.
func (c Neo4jConfig) ConnectionTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectionTimeout) * time.Second
}

// MaxConnectionLifetimeDuration returns the pool lifetime as a duration.
func (c Neo4jConfig) MaxConnectionLifetimeDuration() time.Duration {
	return time.Duration(c.MaxConnectionLifetime) * time.Second
}

// ServerConfig configures the tool protocol server transport.
type ServerConfig struct {
	Transport string `yaml:"transport"` // stdio or http
	Addr      string `yaml:"addr"`      // listen address for http
}

// BackendConfig locates one remote tool server for the aggregator.
type BackendConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// AuditConfig configures the audit trail store.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// ErrInvalidConfig is returned when config validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from path, falling back to defaults when the file does
// not exist, then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = ConfigFileName
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		// Environment and defaults carry the configuration.
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. Env wins over file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("NEO4J_URI"); v != "" {
		cfg.Neo4j.URI = v
	}
	if v := os.Getenv("NEO4J_USERNAME"); v != "" {
		cfg.Neo4j.Username = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		cfg.Neo4j.Password = v
	}
	if v := os.Getenv("NEO4J_DATABASE"); v != "" {
		cfg.Neo4j.Database = v
	}
	if v := os.Getenv("MAX_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Neo4j.MaxRetryAttempts = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate reports configuration problems. Incomplete database credentials
// are a hard failure; everything else has a workable default.
func Validate(cfg *Config) error {
	var issues []string

	if cfg.Neo4j.URI == "" {
		issues = append(issues, "neo4j.uri is required (or set NEO4J_URI)")
	}
	if cfg.Neo4j.Username == "" {
		issues = append(issues, "neo4j.username is required (or set NEO4J_USERNAME)")
	}
	if cfg.Neo4j.Password == "" {
		issues = append(issues, "neo4j.password is required (or set NEO4J_PASSWORD)")
	}
	if cfg.Server.Transport != "stdio" && cfg.Server.Transport != "http" {
		issues = append(issues, fmt.Sprintf("server.transport must be stdio or http, got %q", cfg.Server.Transport))
	}
	if cfg.Neo4j.MaxRetryAttempts <= 0 {
		issues = append(issues, "neo4j.max_retry_attempts must be positive")
	}

	if len(issues) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, issues)
	}
	return nil
}
