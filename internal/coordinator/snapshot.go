// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/coverly-dev/coverly/internal/store"
)

// Snapshot is a value copy of every vector point of one source ID, taken
// before a destructive step. It never references live store memory.
type Snapshot struct {
	SourceID string
	Points   []store.Point
	TakenAt  time.Time
}

// Capture reads every point of sourceID. It has no side effects.
func Capture(ctx context.Context, vs store.VectorStore, sourceID string) (*Snapshot, error) {
	points, err := vs.GetPointsBySourceID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("capturing snapshot of %s: %w", sourceID, err)
	}

	snap := &Snapshot{
		SourceID: sourceID,
		Points:   make([]store.Point, len(points)),
		TakenAt:  time.Now().UTC(),
	}
	for i, p := range points {
		snap.Points[i] = p.Clone()
	}
	return snap, nil
}

// Restore re-upserts every captured point verbatim. A nil or empty snapshot
// is a no-op and never touches the store. Restoring twice leaves the store as
// restoring once.
func Restore(ctx context.Context, vs store.VectorStore, snap *Snapshot) error {
	if snap.IsEmpty() {
		return nil
	}

	points := make([]store.Point, len(snap.Points))
	for i, p := range snap.Points {
		points[i] = p.Clone()
	}
	if err := vs.UpsertPoints(ctx, points); err != nil {
		return fmt.Errorf("restoring %d points of %s: %w", len(points), snap.SourceID, err)
	}
	return nil
}

// IsEmpty reports whether the snapshot holds no points.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Points) == 0
}

// Len returns the number of captured points.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// PointIDs lists the captured point IDs in capture order.
func (s *Snapshot) PointIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.Points))
	for i, p := range s.Points {
		ids[i] = p.ID
	}
	return ids
}
