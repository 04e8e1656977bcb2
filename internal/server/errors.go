// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/coverly-dev/coverly/internal/coordinator"
)

// toHTTPError maps a coordinator error class to an HTTP status. Client
// errors carry the error text; server errors are logged and answered with
// op only.
func toHTTPError(ctx context.Context, op string, err error) error {
	switch {
	case coordinator.IsCompensationFailure(err):
		slog.ErrorContext(ctx, op+" left stores inconsistent", "error", err)
		return huma.Error500InternalServerError(op + ": rollback failed, stores need manual repair")
	case coordinator.IsNotFound(err):
		return huma.Error404NotFound(op+": document not found", err)
	case coordinator.IsValidation(err):
		return huma.Error400BadRequest(op+": invalid request", err)
	case coordinator.IsConflict(err):
		return huma.Error409Conflict(op+": source id conflict", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable(op + ": request cancelled")
	case coordinator.IsStoreFailure(err):
		slog.WarnContext(ctx, op+" failed", "error", err)
		return huma.Error503ServiceUnavailable(op + ": storage or embedding backend unavailable")
	default:
		slog.ErrorContext(ctx, op+" failed", "error", err)
		return huma.Error500InternalServerError(op)
	}
}
