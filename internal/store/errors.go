// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package store

import "errors"

// Sentinel errors for store operations.
// These errors can be checked using errors.Is() for classification.
var (
	// ErrNotFound indicates the record vanished between lookup and mutation.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique constraint violation, e.g. a source ID
	// already registered for the same owner.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input parameters are invalid or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDatabase indicates a connectivity or engine failure.
	ErrDatabase = errors.New("database error")
)
