// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package server

import (
	"context"

	"github.com/coverly-dev/coverly/internal/coordinator"
	"github.com/coverly-dev/coverly/internal/store"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
	"github.com/coverly-dev/coverly/pkg/health"
)

// CVService is the subset of the coordinator the routes use.
type CVService interface {
	Create(ctx context.Context, req coordinator.CreateRequest) (*store.Document, error)
	Get(ctx context.Context, documentID int64) (*store.Document, error)
	List(ctx context.Context, ownerID string, opts store.ListOpts) ([]*store.Document, error)
	Update(ctx context.Context, req coordinator.UpdateRequest) (*store.Document, error)
	Delete(ctx context.Context, documentID int64) error
	Search(ctx context.Context, query string, topK int, filter store.PointFilter) ([]store.VectorResult, error)
}

// HealthReporter reports the embedding provider's health.
type HealthReporter interface {
	Health() health.Metrics
}

// Services holds dependencies injected into route handlers.
type Services struct {
	cvs    CVService
	health HealthReporter // optional
}

// NewServices validates the route dependencies. health may be nil.
func NewServices(cvs CVService, health HealthReporter) (*Services, error) {
	if cvs == nil {
		return nil, coverr.New(coverr.CodeServerConfigInvalid, "cv service is required")
	}
	return &Services{cvs: cvs, health: health}, nil
}

// Compile-time check that the coordinator satisfies CVService.
var _ CVService = (*coordinator.Coordinator)(nil)
