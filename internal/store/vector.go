// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package store

import "context"

// VectorStore holds embedding points keyed by a stable point ID and grouped
// by the payload source ID. It has no transactions: every method commits on
// its own and is safe to retry.
type VectorStore interface {
	// GetPointsBySourceID returns every point for sourceID ordered by point ID.
	GetPointsBySourceID(ctx context.Context, sourceID string) ([]Point, error)
	// DeletePointsBySourceID removes every point for sourceID and reports how many were removed.
	DeletePointsBySourceID(ctx context.Context, sourceID string) (int, error)
	// UpsertPoints writes points by ID; re-upserting an existing ID overwrites it.
	UpsertPoints(ctx context.Context, points []Point) error
	SearchByVector(ctx context.Context, vector []float32, topK int, filter PointFilter) ([]VectorResult, error)
	Close() error
}
