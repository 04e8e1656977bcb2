// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverly-dev/coverly/internal/config"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// validConfig returns the defaults as a Config, which must validate.
func validConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coverly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8088", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, config.RateLimit{RequestsPerSecond: 5, Burst: 20, MaxVisitors: 10000}, cfg.Server.RateLimit)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, 1536, cfg.Storage.VectorDimensions)
	assert.NotEmpty(t, cfg.Storage.DataDir)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 1000, cfg.Embedding.ChunkSize)
	assert.Equal(t, 200, cfg.Embedding.ChunkOverlap)
	assert.Equal(t, 3, cfg.Embedding.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Coordinator.CompensationTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "0.0.0.0:9999"
  cors_origins: ["https://app.example.com"]
storage:
  driver: sqlite
  vector_dimensions: 768
embedding:
  provider: google
  api_key: "test-key"
coordinator:
  compensation_timeout: 5s
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Listen)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 768, cfg.Storage.VectorDimensions)
	assert.Equal(t, "google", cfg.Embedding.Provider)
	assert.Equal(t, "test-key", cfg.Embedding.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Coordinator.CompensationTimeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("COVERLY_SERVER_LISTEN", "10.0.0.1:8080")
	t.Setenv("COVERLY_EMBEDDING_API_KEY", "sk-env")
	t.Setenv("COVERLY_LOGGING_FORMAT", "json")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Server.Listen)
	assert.Equal(t, "sk-env", cfg.Embedding.APIKey)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, coverr.HasCode(err, coverr.CodeConfigLoadReadFailure))
}

func TestLoad_InvalidConfigFailsFast(t *testing.T) {
	path := writeConfig(t, `
storage:
  vector_dimensions: 0
logging:
  level: loud
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.True(t, coverr.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "storage.vector_dimensions")
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.Empty(t, validConfig(t).Validate())
}

func TestValidate_ServerListen(t *testing.T) {
	tests := []struct {
		name    string
		listen  string
		wantErr bool
	}{
		{"valid address", "127.0.0.1:8080", false},
		{"all interfaces", ":9999", false},
		{"valid ipv6", "[::1]:8080", false},
		{"empty listen", "", true},
		{"missing port", "127.0.0.1", true},
		{"port zero", "127.0.0.1:0", true},
		{"port too high", "127.0.0.1:70000", true},
		{"not a number", "127.0.0.1:abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.Server.Listen = tt.listen
			assertFieldError(t, cfg.Validate(), "server.listen", tt.wantErr)
		})
	}
}

func TestValidate_Storage(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		field   string
		wantErr bool
	}{
		{"pure go driver", func(c *config.Config) { c.Storage.Driver = "sqlite" }, "storage.driver", false},
		{"unknown driver", func(c *config.Config) { c.Storage.Driver = "postgres" }, "storage.driver", true},
		{"unknown backend", func(c *config.Config) { c.Storage.Backend = "qdrant" }, "storage.backend", true},
		{"empty data dir", func(c *config.Config) { c.Storage.DataDir = "" }, "storage.data_dir", true},
		{"zero dimensions", func(c *config.Config) { c.Storage.VectorDimensions = 0 }, "storage.vector_dimensions", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			assertFieldError(t, cfg.Validate(), tt.field, tt.wantErr)
		})
	}
}

func TestValidate_Embedding(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		field   string
		wantErr bool
	}{
		{"google provider", func(c *config.Config) { c.Embedding.Provider = "google" }, "embedding.provider", false},
		{"unknown provider", func(c *config.Config) { c.Embedding.Provider = "cohere" }, "embedding.provider", true},
		{"zero chunk size", func(c *config.Config) { c.Embedding.ChunkSize = 0 }, "embedding.chunk_size", true},
		{"overlap equals size", func(c *config.Config) { c.Embedding.ChunkOverlap = c.Embedding.ChunkSize }, "embedding.chunk_overlap", true},
		{"negative overlap", func(c *config.Config) { c.Embedding.ChunkOverlap = -1 }, "embedding.chunk_overlap", true},
		{"zero overlap", func(c *config.Config) { c.Embedding.ChunkOverlap = 0 }, "embedding.chunk_overlap", false},
		{"zero batch", func(c *config.Config) { c.Embedding.BatchSize = 0 }, "embedding.batch_size", true},
		{"zero concurrency", func(c *config.Config) { c.Embedding.Concurrency = 0 }, "embedding.concurrency", true},
		{"zero rate", func(c *config.Config) { c.Embedding.RequestsPerSecond = 0 }, "embedding.requests_per_second", true},
		{"zero content cap", func(c *config.Config) { c.Embedding.MaxContentBytes = 0 }, "embedding.max_content_bytes", true},
		{"zero cooldown", func(c *config.Config) { c.Embedding.HealthCooldown = 0 }, "embedding.health_cooldown", true},
		{"zero failure threshold", func(c *config.Config) { c.Embedding.FailureThreshold = 0 }, "embedding.failure_threshold", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			assertFieldError(t, cfg.Validate(), tt.field, tt.wantErr)
		})
	}
}

func TestValidate_CoordinatorAndLogging(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		field   string
		wantErr bool
	}{
		{"zero compensation timeout", func(c *config.Config) { c.Coordinator.CompensationTimeout = 0 }, "coordinator.compensation_timeout", true},
		{"upper case level", func(c *config.Config) { c.Logging.Level = "DEBUG" }, "logging.level", false},
		{"unknown level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level", true},
		{"json format", func(c *config.Config) { c.Logging.Format = "json" }, "logging.format", false},
		{"unknown format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format", true},
		{"negative read timeout", func(c *config.Config) { c.Server.ReadTimeout = -time.Second }, "server.read_timeout", true},
		{"empty cors origin", func(c *config.Config) { c.Server.CORSOrigins = []string{""} }, "server.cors_origins", true},
		{"rate limit disabled", func(c *config.Config) { c.Server.RateLimit = config.RateLimit{} }, "server.rate_limit", false},
		{"negative rate", func(c *config.Config) { c.Server.RateLimit.RequestsPerSecond = -1 }, "server.rate_limit.requests_per_second", true},
		{"rate without burst", func(c *config.Config) { c.Server.RateLimit.Burst = 0 }, "server.rate_limit.burst", true},
		{"negative max visitors", func(c *config.Config) { c.Server.RateLimit.MaxVisitors = -1 }, "server.rate_limit.max_visitors", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			assertFieldError(t, cfg.Validate(), tt.field, tt.wantErr)
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Server.Listen = ""
	cfg.Storage.VectorDimensions = -1
	cfg.Embedding.Provider = ""

	errs := cfg.Validate()
	require.Len(t, errs, 3, "all issues are collected")
	for _, err := range errs {
		assert.True(t, coverr.HasCode(err, coverr.CodeConfigValidateInvalidValue))
	}
}

// assertFieldError checks whether errs mention field.
func assertFieldError(t *testing.T, errs []error, field string, wantErr bool) {
	t.Helper()
	var mentioned bool
	for _, err := range errs {
		if strings.Contains(err.Error(), field) {
			mentioned = true
		}
	}
	assert.Equal(t, wantErr, mentioned, "errors: %v", errs)
}
