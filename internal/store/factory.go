// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package store

import (
	"errors"
	"sync"

	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// defaultVectorDimensions is the default embedding dimension (matches OpenAI text-embedding-3-small).
const defaultVectorDimensions = 1536

// BackendFactory opens the document and vector stores of a backend rooted
// at dataPath.
type BackendFactory func(dataPath string, cfg StorageConfig) (DocumentStore, VectorStore, error)

var (
	backends   = map[string]BackendFactory{}
	backendsMu sync.RWMutex
)

// RegisterBackend registers the factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = factory
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewStores opens both stores for the configured backend. The two stores
// are independent: nothing here makes writes to them atomic together.
func NewStores(cfg *StorageConfig, dataPath string) (DocumentStore, VectorStore, error) {
	backend := resolveBackend(cfg)

	backendsMu.RLock()
	factory, ok := backends[backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, nil, coverr.Errorf(coverr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	effective := *cfg
	if effective.VectorDimensions <= 0 {
		effective.VectorDimensions = defaultVectorDimensions
	}

	return factory(dataPath, effective)
}

// CloseAll closes both stores and joins their errors.
func CloseAll(docs DocumentStore, vectors VectorStore) error {
	var errs []error
	if docs != nil {
		if err := docs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if vectors != nil {
		if err := vectors.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
