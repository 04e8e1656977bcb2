// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package coordinator

import (
	"errors"
	"fmt"

	"github.com/coverly-dev/coverly/internal/store"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// Error classes returned by the Coordinator. Every returned error matches
// exactly one of them with errors.Is and still matches its original cause.
var (
	// ErrNotFound means the referenced document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrValidation means the request was rejected before any store I/O.
	ErrValidation = errors.New("invalid request")

	// ErrConflict means the request collides with an existing source ID.
	ErrConflict = errors.New("source conflict")

	// ErrStore means a relational, vector or embedding step failed. The
	// pre-operation state was restored, so retrying the whole call is safe.
	ErrStore = errors.New("store failure")

	// ErrCompensationFailure means restoring the pre-operation state failed.
	// The stores may now disagree and need manual reconciliation; do not retry.
	ErrCompensationFailure = errors.New("compensation failed")
)

// IsNotFound reports whether err is in the ErrNotFound class.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is in the ErrValidation class.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConflict reports whether err is in the ErrConflict class.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsStoreFailure reports whether err is in the ErrStore class.
func IsStoreFailure(err error) bool { return errors.Is(err, ErrStore) }

// IsCompensationFailure reports whether err is in the ErrCompensationFailure
// class, the one outcome that leaves the stores inconsistent.
func IsCompensationFailure(err error) bool { return errors.Is(err, ErrCompensationFailure) }

// classOf maps an adapter error onto a coordinator error class.
func classOf(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrConflict
	case errors.Is(err, store.ErrInvalidInput):
		return ErrValidation
	default:
		return ErrStore
	}
}

// fail wraps cause with class and a coded message.
func fail(class error, code coverr.Code, msg string, cause error, fields ...coverr.Attr) error {
	err := class
	if cause != nil {
		err = fmt.Errorf("%w: %w", class, cause)
	}
	return coverr.Wrap(err, code, msg, fields...)
}

func invalid(msg string, fields ...coverr.Attr) error {
	return fail(ErrValidation, coverr.CodeCoordinatorInputInvalid, msg, nil, fields...)
}

// compensationFailed joins the originating cause with the restore failure.
func compensationFailed(msg string, cause, restoreErr error, fields ...coverr.Attr) error {
	joined := fmt.Errorf("%w: %w (restore: %w)", ErrCompensationFailure, cause, restoreErr)
	return coverr.Wrap(joined, coverr.CodeCoordinatorCompensationFailure, msg, fields...)
}
