// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. COVERLY_SERVER_LISTEN.
const EnvPrefix = "COVERLY"

// Config is the top-level coverly configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding" yaml:"embedding"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator" yaml:"coordinator"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen" yaml:"listen"`
	CORSOrigins  []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	RateLimit    RateLimit     `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimit bounds per-client request rates. A zero rate disables limiting.
type RateLimit struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
	MaxVisitors       int     `mapstructure:"max_visitors" yaml:"max_visitors"`
}

// StorageConfig selects where documents and vectors live.
type StorageConfig struct {
	Backend          string `mapstructure:"backend" yaml:"backend"`
	Driver           string `mapstructure:"driver" yaml:"driver"`
	DataDir          string `mapstructure:"data_dir" yaml:"data_dir"`
	VectorDimensions int    `mapstructure:"vector_dimensions" yaml:"vector_dimensions"`
}

// EmbeddingConfig selects the embedding provider and tunes the pipeline.
type EmbeddingConfig struct {
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	ChunkSize         int           `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap      int           `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
	BatchSize         int           `mapstructure:"batch_size" yaml:"batch_size"`
	Concurrency       int           `mapstructure:"concurrency" yaml:"concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	MaxContentBytes   int64         `mapstructure:"max_content_bytes" yaml:"max_content_bytes"`
	HealthCooldown    time.Duration `mapstructure:"health_cooldown" yaml:"health_cooldown"`
	FailureThreshold  int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
}

// CoordinatorConfig tunes the cross-store coordinator.
type CoordinatorConfig struct {
	CompensationTimeout time.Duration `mapstructure:"compensation_timeout" yaml:"compensation_timeout"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultDataDir returns ~/.local/share/coverly, or ./data when the home
// directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".local", "share", "coverly")
}

// SetDefaults registers every default on v. Every key needs a default so
// AutomaticEnv can override it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8088")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.rate_limit.requests_per_second", 5.0)
	v.SetDefault("server.rate_limit.burst", 20)
	v.SetDefault("server.rate_limit.max_visitors", 10000)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.driver", "sqlite3")
	v.SetDefault("storage.data_dir", DefaultDataDir())
	v.SetDefault("storage.vector_dimensions", 1536)

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.chunk_size", 1000)
	v.SetDefault("embedding.chunk_overlap", 200)
	v.SetDefault("embedding.batch_size", 64)
	v.SetDefault("embedding.concurrency", 4)
	v.SetDefault("embedding.requests_per_second", 10.0)
	v.SetDefault("embedding.max_content_bytes", 4<<20)
	v.SetDefault("embedding.health_cooldown", 30*time.Second)
	v.SetDefault("embedding.failure_threshold", 3)

	v.SetDefault("coordinator.compensation_timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SetupEnv enables COVERLY_-prefixed environment overrides, with dots in
// keys mapped to underscores.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, coverr.Errorf(coverr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, coverr.Errorf(coverr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix COVERLY_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, coverr.Errorf(coverr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateCoordinator()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func invalid(format string, args ...any) error {
	return coverr.Errorf(coverr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, invalid("server.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Server.Listen)
		if err != nil {
			errs = append(errs, invalid("server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err))
		} else if port, err := strconv.Atoi(portStr); err != nil {
			errs = append(errs, invalid("server.listen port must be a number, got %q", portStr))
		} else if port < 1 || port > 65535 {
			errs = append(errs, invalid("server.listen port must be between 1 and 65535, got %d", port))
		}
	}

	if c.Server.ReadTimeout < 0 {
		errs = append(errs, invalid("server.read_timeout must not be negative, got %s", c.Server.ReadTimeout))
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, invalid("server.write_timeout must not be negative, got %s", c.Server.WriteTimeout))
	}

	rl := c.Server.RateLimit
	if rl.RequestsPerSecond < 0 {
		errs = append(errs, invalid("server.rate_limit.requests_per_second must not be negative, got %g", rl.RequestsPerSecond))
	} else if rl.RequestsPerSecond > 0 && rl.Burst <= 0 {
		errs = append(errs, invalid("server.rate_limit.burst must be greater than 0 when a rate is set, got %d", rl.Burst))
	}
	if rl.MaxVisitors < 0 {
		errs = append(errs, invalid("server.rate_limit.max_visitors must not be negative, got %d", rl.MaxVisitors))
	}

	for i, origin := range c.Server.CORSOrigins {
		if origin == "" {
			errs = append(errs, invalid("server.cors_origins[%d] must not be empty", i))
		}
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, invalid("storage.backend must be one of [sqlite], got %q", c.Storage.Backend))
	}

	validDrivers := map[string]bool{"sqlite3": true, "sqlite": true}
	if !validDrivers[c.Storage.Driver] {
		errs = append(errs, invalid("storage.driver must be one of [sqlite3, sqlite], got %q", c.Storage.Driver))
	}

	if c.Storage.DataDir == "" {
		errs = append(errs, invalid("storage.data_dir must not be empty"))
	}

	if c.Storage.VectorDimensions <= 0 {
		errs = append(errs, invalid("storage.vector_dimensions must be greater than 0, got %d", c.Storage.VectorDimensions))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error
	e := c.Embedding

	validProviders := map[string]bool{"openai": true, "google": true}
	if !validProviders[e.Provider] {
		errs = append(errs, invalid("embedding.provider must be one of [openai, google], got %q", e.Provider))
	}

	if e.ChunkSize <= 0 {
		errs = append(errs, invalid("embedding.chunk_size must be greater than 0, got %d", e.ChunkSize))
	} else if e.ChunkOverlap < 0 || e.ChunkOverlap >= e.ChunkSize {
		errs = append(errs, invalid("embedding.chunk_overlap must be in [0, %d), got %d", e.ChunkSize, e.ChunkOverlap))
	}

	if e.BatchSize <= 0 {
		errs = append(errs, invalid("embedding.batch_size must be greater than 0, got %d", e.BatchSize))
	}
	if e.Concurrency <= 0 {
		errs = append(errs, invalid("embedding.concurrency must be greater than 0, got %d", e.Concurrency))
	}
	if e.RequestsPerSecond <= 0 {
		errs = append(errs, invalid("embedding.requests_per_second must be greater than 0, got %g", e.RequestsPerSecond))
	}
	if e.MaxContentBytes <= 0 {
		errs = append(errs, invalid("embedding.max_content_bytes must be greater than 0, got %d", e.MaxContentBytes))
	}
	if e.HealthCooldown <= 0 {
		errs = append(errs, invalid("embedding.health_cooldown must be greater than 0, got %s", e.HealthCooldown))
	}
	if e.FailureThreshold <= 0 {
		errs = append(errs, invalid("embedding.failure_threshold must be greater than 0, got %d", e.FailureThreshold))
	}

	return errs
}

func (c *Config) validateCoordinator() []error {
	if c.Coordinator.CompensationTimeout <= 0 {
		return []error{invalid("coordinator.compensation_timeout must be greater than 0, got %s", c.Coordinator.CompensationTimeout)}
	}
	return nil
}

func (c *Config) validateLogging() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, invalid("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, invalid("logging.format must be one of [text, json], got %q", c.Logging.Format))
	}

	return errs
}
