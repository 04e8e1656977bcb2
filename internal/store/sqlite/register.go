// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package sqlite

import (
	"fmt"
	"path/filepath"

	"github.com/coverly-dev/coverly/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", newStores)
}

// newStores opens documents.db and vectors.db under dataPath. The two files
// are separate databases so the relational and vector sides never share a
// transaction.
func newStores(dataPath string, cfg store.StorageConfig) (store.DocumentStore, store.VectorStore, error) {
	docs, err := NewDocumentStore(filepath.Join(dataPath, "documents.db"), cfg.Driver)
	if err != nil {
		return nil, nil, fmt.Errorf("creating document store: %w", err)
	}

	vs, err := NewVectorStore(filepath.Join(dataPath, "vectors.db"), cfg.VectorDimensions)
	if err != nil {
		_ = docs.Close()
		return nil, nil, fmt.Errorf("creating vector store: %w", err)
	}

	return docs, vs, nil
}
