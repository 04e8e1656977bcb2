// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package store

import (
	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// Valid reports whether the status is a known document lifecycle state.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusActive, DocumentStatusProcessing, DocumentStatusFailed:
		return true
	default:
		return false
	}
}

// Validate checks that the Document has all required fields set correctly.
func (d Document) Validate() error {
	if d.SourceID == "" {
		return coverr.New(coverr.CodeStoreDocumentInvalid, "document: SourceID is required")
	}
	if d.OwnerID == "" {
		return coverr.New(coverr.CodeStoreDocumentInvalid, "document: OwnerID is required")
	}
	if d.Filename == "" {
		return coverr.New(coverr.CodeStoreDocumentInvalid, "document: Filename is required")
	}
	if d.ByteSize < 0 {
		return coverr.Errorf(coverr.CodeStoreDocumentInvalid, "document: ByteSize must not be negative, got %d", d.ByteSize)
	}
	if !d.Status.Valid() {
		return coverr.Errorf(coverr.CodeStoreDocumentInvalid, "document: invalid status %q", d.Status)
	}
	return nil
}

// Validate checks the values a patch would write. Only set fields are checked.
func (p DocumentPatch) Validate() error {
	if p.SourceID != nil && *p.SourceID == "" {
		return coverr.New(coverr.CodeStorePatchInvalid, "patch: SourceID must not be empty")
	}
	if p.Filename != nil && *p.Filename == "" {
		return coverr.New(coverr.CodeStorePatchInvalid, "patch: Filename must not be empty")
	}
	if p.ByteSize != nil && *p.ByteSize < 0 {
		return coverr.Errorf(coverr.CodeStorePatchInvalid, "patch: ByteSize must not be negative, got %d", *p.ByteSize)
	}
	if p.Status != nil && !p.Status.Valid() {
		return coverr.Errorf(coverr.CodeStorePatchInvalid, "patch: invalid status %q", *p.Status)
	}
	return nil
}

// Validate checks that the Point can be written to a store of the given
// dimension. A dims of 0 skips the length check.
func (p Point) Validate(dims int) error {
	if p.ID == "" {
		return coverr.New(coverr.CodeStorePointInvalid, "point: ID is required")
	}
	if p.Payload.SourceID == "" {
		return coverr.Errorf(coverr.CodeStorePointInvalid, "point %s: payload SourceID is required", p.ID)
	}
	if len(p.Vector) == 0 {
		return coverr.Errorf(coverr.CodeStorePointInvalid, "point %s: vector is empty", p.ID)
	}
	if dims > 0 && len(p.Vector) != dims {
		return coverr.Errorf(coverr.CodeStoreVectorDimensionInvalid,
			"point %s: vector has %d dimensions, store expects %d", p.ID, len(p.Vector), dims)
	}
	return nil
}
