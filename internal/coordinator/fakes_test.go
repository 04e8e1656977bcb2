// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package coordinator_test

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/coverly-dev/coverly/internal/store"
)

// ---------------------------------------------------------------------------
// Relational fake
// ---------------------------------------------------------------------------

// memDocs is an in-memory DocumentStore. Transactions stage changes in an
// overlay that Commit applies atomically.
type memDocs struct {
	mu     sync.Mutex
	rows   map[int64]store.Document
	nextID int64

	failBegin  error
	failCommit error
	failDelete error
	failPatch  error

	begins    int
	open      int // transactions not yet finished
	mutations int // committed writes
}

func newMemDocs() *memDocs {
	return &memDocs{rows: make(map[int64]store.Document)}
}

// seed stores doc directly and returns its ID.
func (m *memDocs) seed(doc store.Document) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	doc.ID = m.nextID
	m.rows[doc.ID] = doc
	return doc.ID
}

func (m *memDocs) row(id int64) (store.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.rows[id]
	return doc, ok
}

func (m *memDocs) Begin(context.Context) (store.DocumentTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.begins++
	if m.failBegin != nil {
		return nil, m.failBegin
	}
	m.open++
	return &memTx{docs: m, staged: make(map[int64]*store.Document)}, nil
}

func (m *memDocs) openTxs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *memDocs) ListByOwner(_ context.Context, ownerID string, _ store.ListOpts) ([]*store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Document
	for _, id := range slices.Sorted(maps.Keys(m.rows)) {
		doc := m.rows[id]
		if doc.OwnerID == ownerID {
			out = append(out, &doc)
		}
	}
	return out, nil
}

func (m *memDocs) Close() error { return nil }

type memTx struct {
	docs   *memDocs
	staged map[int64]*store.Document // nil value = deleted
	done   bool
}

func (t *memTx) lookup(id int64) (*store.Document, bool) {
	if doc, ok := t.staged[id]; ok {
		if doc == nil {
			return nil, false
		}
		out := *doc
		return &out, true
	}
	doc, ok := t.docs.rows[id]
	return &doc, ok
}

func (t *memTx) GetByID(_ context.Context, id int64) (*store.Document, bool, error) {
	t.docs.mu.Lock()
	defer t.docs.mu.Unlock()
	doc, ok := t.lookup(id)
	if !ok {
		return nil, false, nil
	}
	return doc, true, nil
}

func (t *memTx) GetBySourceID(_ context.Context, ownerID, sourceID string) (*store.Document, bool, error) {
	t.docs.mu.Lock()
	defer t.docs.mu.Unlock()
	ids := slices.Collect(maps.Keys(t.docs.rows))
	ids = append(ids, slices.Collect(maps.Keys(t.staged))...)
	for _, id := range ids {
		doc, ok := t.lookup(id)
		if ok && doc.OwnerID == ownerID && doc.SourceID == sourceID {
			return doc, true, nil
		}
	}
	return nil, false, nil
}

func (t *memTx) Insert(_ context.Context, doc *store.Document) error {
	t.docs.mu.Lock()
	defer t.docs.mu.Unlock()
	t.docs.nextID++
	doc.ID = t.docs.nextID
	doc.CreatedAt = time.Unix(1700000000, 0).UTC()
	doc.UpdatedAt = doc.CreatedAt
	staged := *doc
	t.staged[doc.ID] = &staged
	return nil
}

func (t *memTx) ApplyPatch(_ context.Context, doc *store.Document, patch store.DocumentPatch) (*store.Document, error) {
	t.docs.mu.Lock()
	defer t.docs.mu.Unlock()
	if t.docs.failPatch != nil {
		return nil, t.docs.failPatch
	}
	if _, ok := t.lookup(doc.ID); !ok {
		return nil, fmt.Errorf("document %d: %w", doc.ID, store.ErrNotFound)
	}
	updated := patch.Apply(doc)
	updated.UpdatedAt = updated.UpdatedAt.Add(time.Second)
	staged := *updated
	t.staged[doc.ID] = &staged
	return updated, nil
}

func (t *memTx) Delete(_ context.Context, doc *store.Document) error {
	t.docs.mu.Lock()
	defer t.docs.mu.Unlock()
	if t.docs.failDelete != nil {
		return t.docs.failDelete
	}
	if _, ok := t.lookup(doc.ID); !ok {
		return fmt.Errorf("document %d: %w", doc.ID, store.ErrNotFound)
	}
	t.staged[doc.ID] = nil
	return nil
}

func (t *memTx) Commit() error {
	t.docs.mu.Lock()
	defer t.docs.mu.Unlock()
	if t.done {
		return fmt.Errorf("transaction already finished: %w", store.ErrDatabase)
	}
	t.done = true
	t.docs.open--
	if t.docs.failCommit != nil {
		return t.docs.failCommit
	}
	for id, doc := range t.staged {
		if doc == nil {
			delete(t.docs.rows, id)
		} else {
			t.docs.rows[id] = *doc
		}
		t.docs.mutations++
	}
	return nil
}

func (t *memTx) Rollback() error {
	t.docs.mu.Lock()
	defer t.docs.mu.Unlock()
	if !t.done {
		t.docs.open--
	}
	t.done = true
	t.staged = nil
	return nil
}

// ---------------------------------------------------------------------------
// Vector fake
// ---------------------------------------------------------------------------

// memVectors is an in-memory VectorStore with per-call fault injection.
type memVectors struct {
	mu     sync.Mutex
	points map[string]store.Point

	// upsertErrs is consumed one entry per UpsertPoints call; nil succeeds.
	upsertErrs []error
	deleteErrs []error
	getErr     error

	gets, deletes, upserts int
}

func newMemVectors(points ...store.Point) *memVectors {
	m := &memVectors{points: make(map[string]store.Point)}
	for _, p := range points {
		m.points[p.ID] = p.Clone()
	}
	return m
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (m *memVectors) GetPointsBySourceID(ctx context.Context, sourceID string) ([]store.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.bySource(sourceID), nil
}

func (m *memVectors) bySource(sourceID string) []store.Point {
	var out []store.Point
	for _, id := range slices.Sorted(maps.Keys(m.points)) {
		if p := m.points[id]; p.Payload.SourceID == sourceID {
			out = append(out, p.Clone())
		}
	}
	return out
}

// snapshotOf returns the stored points of sourceID, for assertions.
func (m *memVectors) snapshotOf(sourceID string) []store.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bySource(sourceID)
}

func (m *memVectors) idsOf(sourceID string) []string {
	var ids []string
	for _, p := range m.snapshotOf(sourceID) {
		ids = append(ids, p.ID)
	}
	return ids
}

func (m *memVectors) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes + m.upserts
}

func (m *memVectors) DeletePointsBySourceID(ctx context.Context, sourceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := popErr(&m.deleteErrs); err != nil {
		return 0, err
	}
	n := 0
	for id, p := range m.points {
		if p.Payload.SourceID == sourceID {
			delete(m.points, id)
			n++
		}
	}
	return n, nil
}

func (m *memVectors) UpsertPoints(ctx context.Context, points []store.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := popErr(&m.upsertErrs); err != nil {
		return err
	}
	for _, p := range points {
		m.points[p.ID] = p.Clone()
	}
	return nil
}

func (m *memVectors) SearchByVector(_ context.Context, vector []float32, topK int, filter store.PointFilter) ([]store.VectorResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []store.VectorResult
	for _, p := range m.points {
		if filter.SourceID != "" && p.Payload.SourceID != filter.SourceID {
			continue
		}
		if filter.OwnerID != "" && p.Payload.OwnerID != filter.OwnerID {
			continue
		}
		var sum float64
		for i := range vector {
			d := float64(vector[i] - p.Vector[i])
			sum += d * d
		}
		results = append(results, store.VectorResult{ID: p.ID, Score: math.Sqrt(sum), Payload: p.Payload})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *memVectors) Close() error { return nil }

// ---------------------------------------------------------------------------
// Embedder fake
// ---------------------------------------------------------------------------

// fakeEmbedder maps a content reference to the point IDs it produces.
type fakeEmbedder struct {
	mu       sync.Mutex
	contents map[string][]string
	err      error
	// hook runs at the start of Embed; a non-nil return aborts the call.
	hook  func(ctx context.Context, sourceID string) error
	calls int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{contents: make(map[string][]string)}
}

func (e *fakeEmbedder) produce(contentRef string, ids ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contents[contentRef] = ids
}

func (e *fakeEmbedder) Embed(ctx context.Context, contentRef, sourceID, ownerID string) ([]store.Point, error) {
	e.mu.Lock()
	e.calls++
	hook, err, ids := e.hook, e.err, e.contents[contentRef]
	e.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, sourceID); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}
	if ids == nil {
		return nil, fmt.Errorf("unknown content %q", contentRef)
	}

	points := make([]store.Point, len(ids))
	for i, id := range ids {
		points[i] = testPoint(id, sourceID, ownerID)
		points[i].Payload.Text = contentRef
	}
	return points, nil
}

func (e *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if text == "first" {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func testPoint(id, sourceID, ownerID string) store.Point {
	return store.Point{
		ID:     id,
		Vector: []float32{float32(len(id)), 1},
		Payload: store.Payload{
			SourceID: sourceID,
			OwnerID:  ownerID,
			Text:     "text of " + id,
			Extra:    map[string]any{"chunk_index": 0},
		},
	}
}
