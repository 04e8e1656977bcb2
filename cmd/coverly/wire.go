// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/coverly-dev/coverly/internal/config"
	"github.com/coverly-dev/coverly/internal/coordinator"
	"github.com/coverly-dev/coverly/internal/embedding"
	_ "github.com/coverly-dev/coverly/internal/embedding/google" // register google provider
	_ "github.com/coverly-dev/coverly/internal/embedding/openai" // register openai provider
	"github.com/coverly-dev/coverly/internal/server"
	"github.com/coverly-dev/coverly/internal/store"
	_ "github.com/coverly-dev/coverly/internal/store/sqlite" // register sqlite backend
	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// App holds the wired subsystems and manages their lifecycle.
type App struct {
	Coordinator *coordinator.Coordinator
	Pipeline    *embedding.Pipeline
	Documents   store.DocumentStore
	Vectors     store.VectorStore
}

// newEmbeddingProvider resolves the configured provider. Tests replace it
// with an offline stub.
var newEmbeddingProvider = embedding.NewProvider

// WireApp opens the stores, builds the embedding pipeline and puts the
// coordinator in front of them.
func WireApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dataDir := cfg.Storage.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, coverr.Errorf(coverr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. Stores. The relational and vector sides are separate databases.
	docs, vectors, err := store.NewStores(&store.StorageConfig{
		Backend:          cfg.Storage.Backend,
		Driver:           cfg.Storage.Driver,
		VectorDimensions: cfg.Storage.VectorDimensions,
	}, dataDir)
	if err != nil {
		return nil, coverr.Errorf(coverr.CodeCLISetupFailure, "opening stores: %w", err)
	}

	// 2. Embedding provider and pipeline.
	e := cfg.Embedding
	provider, err := newEmbeddingProvider(e.Provider, embedding.ProviderConfig{
		APIKey:     e.APIKey,
		BaseURL:    e.BaseURL,
		Model:      e.Model,
		Dimensions: cfg.Storage.VectorDimensions,
	})
	if err != nil {
		_ = store.CloseAll(docs, vectors)
		return nil, coverr.Wrapf(err, coverr.CodeCLISetupFailure, "creating embedding provider %q", e.Provider)
	}

	pipeline, err := embedding.NewPipeline(provider, embedding.PipelineConfig{
		ChunkSize:         e.ChunkSize,
		ChunkOverlap:      e.ChunkOverlap,
		BatchSize:         e.BatchSize,
		Concurrency:       e.Concurrency,
		RequestsPerSecond: e.RequestsPerSecond,
		Dimensions:        cfg.Storage.VectorDimensions,
		HealthCooldown:    e.HealthCooldown,
		FailureThreshold:  e.FailureThreshold,
	},
		embedding.WithLoader(embedding.FileLoader{MaxBytes: e.MaxContentBytes}),
		embedding.WithLogger(logger.With("component", "embedding")),
	)
	if err != nil {
		_ = store.CloseAll(docs, vectors)
		return nil, coverr.Wrapf(err, coverr.CodeCLISetupFailure, "creating embedding pipeline")
	}

	// 3. Coordinator.
	coord, err := coordinator.New(docs, vectors, pipeline,
		coordinator.WithLogger(logger.With("component", "coordinator")),
		coordinator.WithCompensationTimeout(cfg.Coordinator.CompensationTimeout),
	)
	if err != nil {
		_ = store.CloseAll(docs, vectors)
		return nil, coverr.Wrapf(err, coverr.CodeCLISetupFailure, "creating coordinator")
	}

	logger.Debug("wired coverly",
		"data_dir", dataDir,
		"driver", cfg.Storage.Driver,
		"provider", provider.Name(),
		"dimensions", cfg.Storage.VectorDimensions,
	)

	return &App{
		Coordinator: coord,
		Pipeline:    pipeline,
		Documents:   docs,
		Vectors:     vectors,
	}, nil
}

// NewServer builds the HTTP server over the app's coordinator.
func (a *App) NewServer(cfg *config.Config) (*server.Server, error) {
	services, err := server.NewServices(a.Coordinator, a.Pipeline)
	if err != nil {
		return nil, coverr.Errorf(coverr.CodeCLISetupFailure, "creating services: %w", err)
	}

	srv, err := server.New(server.Config{
		ListenAddr:   cfg.Server.Listen,
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
			MaxVisitors:       cfg.Server.RateLimit.MaxVisitors,
		},
		Version: version,
	}, services)
	if err != nil {
		return nil, coverr.Errorf(coverr.CodeCLISetupFailure, "creating server: %w", err)
	}
	return srv, nil
}

// Close stops the coordinator, then closes both stores.
func (a *App) Close() error {
	if a.Coordinator != nil {
		a.Coordinator.Close()
	}
	return store.CloseAll(a.Documents, a.Vectors)
}
