// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coverly-dev/coverly/internal/coordinator"
	"github.com/coverly-dev/coverly/internal/server"
	"github.com/coverly-dev/coverly/internal/store"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
	"github.com/coverly-dev/coverly/pkg/health"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	svc, err := server.NewServices(stubCVs{}, stubHealth{})
	if err != nil {
		return nil, coverr.Errorf(coverr.CodeCLISetupFailure, "creating services: %w", err)
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc)
	if err != nil {
		return nil, coverr.Errorf(coverr.CodeCLISetupFailure, "creating server: %w", err)
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// No-op stubs for spec generation. Handlers are never invoked.

type stubCVs struct{}

func (stubCVs) Create(context.Context, coordinator.CreateRequest) (*store.Document, error) {
	return nil, nil
}
func (stubCVs) Get(context.Context, int64) (*store.Document, error) { return nil, nil }
func (stubCVs) List(context.Context, string, store.ListOpts) ([]*store.Document, error) {
	return nil, nil
}
func (stubCVs) Update(context.Context, coordinator.UpdateRequest) (*store.Document, error) {
	return nil, nil
}
func (stubCVs) Delete(context.Context, int64) error { return nil }
func (stubCVs) Search(context.Context, string, int, store.PointFilter) ([]store.VectorResult, error) {
	return nil, nil
}

type stubHealth struct{}

func (stubHealth) Health() health.Metrics { return health.Metrics{Available: true} }
