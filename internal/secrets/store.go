// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

// Package secrets keeps credentials such as the embedding API key out of
// config files. Values live in the OS keyring and config files reference
// them as keyring://service/key.
package secrets

// DefaultService is the keyring service coverly stores its secrets under.
const DefaultService = "coverly"

// Store reads and writes named secrets grouped by service.
type Store interface {
	Set(service, key, value string) error
	// Get returns a CodeSecretNotFound error for a missing key.
	Get(service, key string) (string, error)
	// Delete returns a CodeSecretNotFound error for a missing key.
	Delete(service, key string) error
	List(service string) ([]string, error)
}
