// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package server_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coverly-dev/coverly/internal/coordinator"
	"github.com/coverly-dev/coverly/internal/store"
	"github.com/coverly-dev/coverly/pkg/health"
)

// fakeCVs records calls and answers from canned documents. err, when set,
// is returned by every method.
type fakeCVs struct {
	mu   sync.Mutex
	docs map[int64]store.Document
	err  error

	lastCreate coordinator.CreateRequest
	lastUpdate coordinator.UpdateRequest
	lastList   store.ListOpts
	lastSearch struct {
		query  string
		topK   int
		filter store.PointFilter
	}
	deleted []int64
}

func newFakeCVs() *fakeCVs {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &fakeCVs{docs: map[int64]store.Document{
		1: {ID: 1, SourceID: "src-1", OwnerID: "user-1", Filename: "cv.pdf", MimeType: store.DefaultMimeType,
			Status: store.DocumentStatusActive, CreatedAt: created, UpdatedAt: created},
		2: {ID: 2, SourceID: "src-2", OwnerID: "user-1", Filename: "cv2.pdf", MimeType: store.DefaultMimeType,
			Status: store.DocumentStatusActive, CreatedAt: created, UpdatedAt: created},
	}}
}

func (f *fakeCVs) Create(_ context.Context, req coordinator.CreateRequest) (*store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreate = req
	if f.err != nil {
		return nil, f.err
	}
	doc := req.Document
	doc.ID = int64(len(f.docs) + 1)
	f.docs[doc.ID] = doc
	return &doc, nil
}

func (f *fakeCVs) Get(_ context.Context, id int64) (*store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, coordinator.ErrNotFound)
	}
	return &doc, nil
}

func (f *fakeCVs) List(_ context.Context, ownerID string, opts store.ListOpts) ([]*store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = opts
	if f.err != nil {
		return nil, f.err
	}
	var out []*store.Document
	for _, id := range []int64{1, 2} {
		if doc, ok := f.docs[id]; ok && doc.OwnerID == ownerID {
			out = append(out, &doc)
		}
	}
	return out, nil
}

func (f *fakeCVs) Update(_ context.Context, req coordinator.UpdateRequest) (*store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdate = req
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[req.DocumentID]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", req.DocumentID, coordinator.ErrNotFound)
	}
	updated := req.Patch.Apply(&doc)
	f.docs[doc.ID] = *updated
	return updated, nil
}

func (f *fakeCVs) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.docs[id]; !ok {
		return fmt.Errorf("document %d: %w", id, coordinator.ErrNotFound)
	}
	delete(f.docs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCVs) Search(_ context.Context, query string, topK int, filter store.PointFilter) ([]store.VectorResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSearch.query, f.lastSearch.topK, f.lastSearch.filter = query, topK, filter
	if f.err != nil {
		return nil, f.err
	}
	return []store.VectorResult{{
		ID:    "p1",
		Score: 0.25,
		Payload: store.Payload{
			SourceID: "src-1",
			OwnerID:  "user-1",
			Text:     "Go engineer",
			Extra:    map[string]any{"chunk_index": 0},
		},
	}}, nil
}

type fakeHealth struct{ m health.Metrics }

func (h fakeHealth) Health() health.Metrics { return h.m }
