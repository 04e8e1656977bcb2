// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package store

import "context"

// DocumentStore owns CV metadata records. Mutations happen inside a
// DocumentTx that the caller commits or rolls back explicitly.
type DocumentStore interface {
	Begin(ctx context.Context) (DocumentTx, error)
	ListByOwner(ctx context.Context, ownerID string, opts ListOpts) ([]*Document, error)
	Close() error
}

// DocumentTx is a single local transaction over document records.
//
// Lookups report absence through the bool result instead of an error so
// callers can tell "missing" apart from "store unavailable".
type DocumentTx interface {
	GetByID(ctx context.Context, id int64) (*Document, bool, error)
	GetBySourceID(ctx context.Context, ownerID, sourceID string) (*Document, bool, error)
	Insert(ctx context.Context, doc *Document) error
	ApplyPatch(ctx context.Context, doc *Document, patch DocumentPatch) (*Document, error)
	Delete(ctx context.Context, doc *Document) error

	Commit() error
	// Rollback discards staged changes. Calling it after Commit is a no-op.
	Rollback() error
}
