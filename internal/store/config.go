// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package store

// StorageConfig controls which backend the store factory uses.
type StorageConfig struct {
	Backend          string // "sqlite" is the only supported backend for now.
	Driver           string // database/sql driver for the relational store: "sqlite3" (cgo) or "sqlite" (pure Go).
	VectorDimensions int    // Embedding dimensions; 0 uses the default (1536).
}
