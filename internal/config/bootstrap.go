// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

//go:embed coverly.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/coverly/coverly.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", coverr.Errorf(coverr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "coverly", "coverly.yaml"), nil
}

// BootstrapConfig writes the default commented config to the default path
// when no file exists there. It returns the path written, or "" when nothing
// was written. Failures are logged at debug level and skipped.
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	if WriteDefaultConfig(cfgPath) {
		return cfgPath
	}
	return ""
}

// WriteDefaultConfig writes DefaultConfigYAML to path with 0600 permissions
// unless the file already exists. It reports whether a file was written.
func WriteDefaultConfig(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return false
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return false
	}

	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", path, "error", err)
		return false
	}

	slog.Info("created default config", "path", path)
	return true
}
