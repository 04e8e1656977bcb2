// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

// Package coordinator keeps CV metadata in the relational store and CV
// embeddings in the vector store consistent. Destructive operations run as a
// saga: snapshot, destructive vector step, staged relational change,
// constructive vector step, commit. Any failure after the snapshot rolls the
// relational transaction back and restores the snapshot.
//
// The window between the vector delete and the relational commit cannot be
// closed without a shared transaction manager. A crash inside it leaves the
// stores disagreeing until an operator reconciles them.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coverly-dev/coverly/internal/store"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

const (
	// DefaultCompensationTimeout bounds how long a restore may run after the
	// caller's context is gone.
	DefaultCompensationTimeout = 30 * time.Second

	defaultSearchTopK = 5
	maxSearchTopK     = 100

	// maxLaneAttempts bounds re-acquisition when a record's source ID moves
	// while the caller waits for its lane.
	maxLaneAttempts = 3
)

// errStaleLane signals that the lane held no longer matches the record.
var errStaleLane = errors.New("source id changed while waiting for lane")

// Embedder turns content into vector points. Every returned point must carry
// the given source and owner IDs in its payload.
type Embedder interface {
	Embed(ctx context.Context, contentRef, sourceID, ownerID string) ([]store.Point, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Coordinator drives the relational and vector stores. It holds no state
// between calls apart from the lanes that serialise work per source ID.
type Coordinator struct {
	docs     store.DocumentStore
	vectors  store.VectorStore
	embedder Embedder
	lanes    *LanePool

	logger              *slog.Logger
	now                 func() time.Time
	compensationTimeout time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the clock used for operation timings.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCompensationTimeout bounds each compensation run.
func WithCompensationTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.compensationTimeout = d
		}
	}
}

// New returns a Coordinator over the given stores and embedder.
func New(docs store.DocumentStore, vectors store.VectorStore, embedder Embedder, opts ...Option) (*Coordinator, error) {
	switch {
	case docs == nil:
		return nil, coverr.New(coverr.CodeCoordinatorInputInvalid, "coordinator: document store is required")
	case vectors == nil:
		return nil, coverr.New(coverr.CodeCoordinatorInputInvalid, "coordinator: vector store is required")
	case embedder == nil:
		return nil, coverr.New(coverr.CodeCoordinatorInputInvalid, "coordinator: embedder is required")
	}

	c := &Coordinator{
		docs:                docs,
		vectors:             vectors,
		embedder:            embedder,
		lanes:               NewLanePool(),
		logger:              slog.Default(),
		now:                 time.Now,
		compensationTimeout: DefaultCompensationTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close stops the per-source lanes. In-flight operations finish first.
func (c *Coordinator) Close() {
	c.lanes.Close()
}

// UpdateRequest describes an Update. Without a ContentRef only metadata is
// patched; with one the document's vectors are replaced wholesale.
type UpdateRequest struct {
	DocumentID int64
	ContentRef string
	Patch      store.DocumentPatch
}

// Validate rejects malformed requests before any store I/O.
func (r UpdateRequest) Validate() error {
	fields := coverr.FieldDocumentID(r.DocumentID)
	if r.DocumentID <= 0 {
		return invalid("document id must be positive", fields)
	}
	if r.ContentRef == "" && r.Patch.IsEmpty() {
		return invalid("update needs a content reference or at least one field", fields)
	}
	if r.Patch.SourceID != nil && r.ContentRef == "" {
		return invalid("changing the source id requires a content reference", fields)
	}
	if err := r.Patch.Validate(); err != nil {
		return fail(ErrValidation, coverr.CodeCoordinatorInputInvalid, "invalid patch", err, fields)
	}
	return nil
}

// CreateRequest describes a new document and the content to embed for it.
type CreateRequest struct {
	Document   store.Document
	ContentRef string
}

// Validate rejects malformed requests before any store I/O.
func (r CreateRequest) Validate() error {
	if r.ContentRef == "" {
		return invalid("content reference is required", coverr.FieldSourceID(r.Document.SourceID))
	}
	if r.Document.ID != 0 {
		return invalid("document id is assigned by the store", coverr.FieldDocumentID(r.Document.ID))
	}
	doc := withCreateDefaults(r.Document)
	if err := doc.Validate(); err != nil {
		return fail(ErrValidation, coverr.CodeCoordinatorInputInvalid, "invalid document", err,
			coverr.FieldSourceID(doc.SourceID))
	}
	return nil
}

func withCreateDefaults(doc store.Document) store.Document {
	if doc.MimeType == "" {
		doc.MimeType = store.DefaultMimeType
	}
	if doc.Status == "" {
		doc.Status = store.DocumentStatusActive
	}
	return doc
}

// Update patches a document and, when ContentRef is set, replaces its
// vectors. On failure after the snapshot the pre-operation state of both
// stores is restored and the originating error returned.
func (c *Coordinator) Update(ctx context.Context, req UpdateRequest) (*store.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var extra []string
	if req.Patch.SourceID != nil {
		extra = append(extra, *req.Patch.SourceID)
	}

	var out *store.Document
	err := c.withDocumentLane(ctx, req.DocumentID, extra, func(ctx context.Context, sourceID string) error {
		var err error
		out, err = c.update(ctx, req, sourceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Coordinator) update(ctx context.Context, req UpdateRequest, lockedSource string) (*store.Document, error) {
	const msg = "failed to update document"
	code := coverr.CodeCoordinatorUpdateFailure
	start := c.now()

	tx, doc, err := c.load(ctx, req.DocumentID, lockedSource, code, msg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	fields := []coverr.Attr{coverr.FieldDocumentID(doc.ID), coverr.FieldSourceID(doc.SourceID)}

	if req.ContentRef == "" {
		updated, err := tx.ApplyPatch(ctx, doc, req.Patch)
		if err != nil {
			return nil, fail(classOf(err), code, msg, err, fields...)
		}
		if err := tx.Commit(); err != nil {
			return nil, fail(classOf(err), code, msg, err, fields...)
		}
		c.logger.Info("document metadata updated",
			"document_id", doc.ID,
			"source_id", doc.SourceID,
			"elapsed", c.now().Sub(start))
		return updated, nil
	}

	target := doc.SourceID
	if req.Patch.ReassignsSource(doc.SourceID) {
		target = *req.Patch.SourceID
		if err := c.ensureSourceFree(ctx, tx, doc.OwnerID, target, code, msg); err != nil {
			return nil, err
		}
	}

	// The read transaction ends here. The lane keeps the record stable until
	// replaceContent opens the write transaction.
	_ = tx.Rollback()

	snap, err := Capture(ctx, c.vectors, doc.SourceID)
	if err != nil {
		return nil, fail(ErrStore, code, msg, err, fields...)
	}

	updated, constructed, err := c.replaceContent(ctx, doc, req)
	if err != nil {
		cleanup := ""
		if constructed {
			cleanup = target
		}
		return nil, c.compensate(ctx, compensation{
			op:      "update",
			snap:    snap,
			cleanup: cleanup,
			cause:   err,
			code:    code,
			msg:     msg,
			docID:   doc.ID,
			fields:  fields,
		})
	}

	c.logger.Info("document content replaced",
		"document_id", doc.ID,
		"source_id", updated.SourceID,
		"previous_points", snap.Len(),
		"elapsed", c.now().Sub(start))
	return updated, nil
}

// replaceContent runs the destructive and constructive steps of an update
// and commits. New points are embedded before the write transaction opens so
// the relational write lock is never held across the embedding call. The
// transaction is rolled back before returning an error. constructed reports
// whether new points may have been written.
func (c *Coordinator) replaceContent(ctx context.Context, doc *store.Document, req UpdateRequest) (_ *store.Document, constructed bool, _ error) {
	removed, err := c.vectors.DeletePointsBySourceID(ctx, doc.SourceID)
	if err != nil {
		return nil, false, fmt.Errorf("deleting points: %w", err)
	}
	c.logger.Debug("document points removed", "document_id", doc.ID, "source_id", doc.SourceID, "points", removed)

	staged := req.Patch.Apply(doc)
	points, err := c.embed(ctx, req.ContentRef, staged.SourceID, staged.OwnerID)
	if err != nil {
		return nil, false, err
	}

	tx, err := c.docs.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updated, err := tx.ApplyPatch(ctx, doc, req.Patch)
	if err != nil {
		return nil, false, fmt.Errorf("staging patch: %w", err)
	}

	if err := c.vectors.UpsertPoints(ctx, points); err != nil {
		return nil, true, fmt.Errorf("upserting points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, true, fmt.Errorf("committing: %w", err)
	}
	return updated, true, nil
}

// Delete removes a document and its vectors. On failure after the snapshot
// the relational delete is rolled back and the points restored.
func (c *Coordinator) Delete(ctx context.Context, documentID int64) error {
	if documentID <= 0 {
		return invalid("document id must be positive", coverr.FieldDocumentID(documentID))
	}

	return c.withDocumentLane(ctx, documentID, nil, func(ctx context.Context, sourceID string) error {
		return c.delete(ctx, documentID, sourceID)
	})
}

func (c *Coordinator) delete(ctx context.Context, documentID int64, lockedSource string) error {
	const msg = "failed to delete document"
	code := coverr.CodeCoordinatorDeleteFailure
	start := c.now()

	tx, doc, err := c.load(ctx, documentID, lockedSource, code, msg)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	fields := []coverr.Attr{coverr.FieldDocumentID(doc.ID), coverr.FieldSourceID(doc.SourceID)}

	snap, err := Capture(ctx, c.vectors, doc.SourceID)
	if err != nil {
		return fail(ErrStore, code, msg, err, fields...)
	}

	if err := c.removeDocument(ctx, tx, doc); err != nil {
		return c.compensate(ctx, compensation{
			op:     "delete",
			tx:     tx,
			snap:   snap,
			cause:  err,
			code:   code,
			msg:    msg,
			docID:  doc.ID,
			fields: fields,
		})
	}

	c.logger.Info("document deleted",
		"document_id", doc.ID,
		"source_id", doc.SourceID,
		"points", snap.Len(),
		"elapsed", c.now().Sub(start))
	return nil
}

func (c *Coordinator) removeDocument(ctx context.Context, tx store.DocumentTx, doc *store.Document) error {
	if _, err := c.vectors.DeletePointsBySourceID(ctx, doc.SourceID); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	if err := tx.Delete(ctx, doc); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// Create inserts a document and embeds its content. Nothing exists before a
// create, so the compensating action removes whatever points were written.
func (c *Coordinator) Create(ctx context.Context, req CreateRequest) (*store.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	doc := withCreateDefaults(req.Document)
	var out *store.Document
	err := c.lanes.Do(ctx, []string{doc.SourceID}, func(ctx context.Context) error {
		var err error
		out, err = c.create(ctx, &doc, req.ContentRef)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Coordinator) create(ctx context.Context, doc *store.Document, contentRef string) (*store.Document, error) {
	const msg = "failed to create document"
	code := coverr.CodeCoordinatorCreateFailure
	start := c.now()
	fields := []coverr.Attr{coverr.FieldSourceID(doc.SourceID), coverr.FieldOwnerID(doc.OwnerID)}

	if err := c.checkSourceFree(ctx, doc.OwnerID, doc.SourceID, code, msg); err != nil {
		return nil, err
	}

	// Nothing is written yet, so an embedding failure needs no compensation.
	points, err := c.embed(ctx, contentRef, doc.SourceID, doc.OwnerID)
	if err != nil {
		return nil, fail(ErrStore, code, msg, err, fields...)
	}

	tx, err := c.docs.Begin(ctx)
	if err != nil {
		return nil, fail(ErrStore, code, msg, err, fields...)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Insert(ctx, doc); err != nil {
		return nil, fail(classOf(err), code, msg, err, fields...)
	}

	if err := c.populate(ctx, tx, points); err != nil {
		return nil, c.compensate(ctx, compensation{
			op:      "create",
			tx:      tx,
			cleanup: doc.SourceID,
			cause:   err,
			code:    code,
			msg:     msg,
			docID:   doc.ID,
			fields:  fields,
		})
	}

	c.logger.Info("document created",
		"document_id", doc.ID,
		"source_id", doc.SourceID,
		"owner_id", doc.OwnerID,
		"points", len(points),
		"elapsed", c.now().Sub(start))
	return doc, nil
}

func (c *Coordinator) populate(ctx context.Context, tx store.DocumentTx, points []store.Point) error {
	if err := c.vectors.UpsertPoints(ctx, points); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// embed runs the embedder and checks every point is tagged for the record.
func (c *Coordinator) embed(ctx context.Context, contentRef, sourceID, ownerID string) ([]store.Point, error) {
	points, err := c.embedder.Embed(ctx, contentRef, sourceID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("embedding content: %w", err)
	}
	for _, p := range points {
		if p.Payload.SourceID != sourceID || p.Payload.OwnerID != ownerID {
			return nil, fmt.Errorf("embedding content: point %s tagged %s/%s, want %s/%s",
				p.ID, p.Payload.OwnerID, p.Payload.SourceID, ownerID, sourceID)
		}
	}
	return points, nil
}

// Get returns one document.
func (c *Coordinator) Get(ctx context.Context, documentID int64) (*store.Document, error) {
	const msg = "failed to read document"
	if documentID <= 0 {
		return nil, invalid("document id must be positive", coverr.FieldDocumentID(documentID))
	}

	tx, doc, err := c.load(ctx, documentID, "", coverr.CodeCoordinatorReadFailure, msg)
	if err != nil {
		return nil, err
	}
	_ = tx.Rollback()
	return doc, nil
}

// List returns the owner's documents, newest first.
func (c *Coordinator) List(ctx context.Context, ownerID string, opts store.ListOpts) ([]*store.Document, error) {
	if ownerID == "" {
		return nil, invalid("owner id is required")
	}
	docs, err := c.docs.ListByOwner(ctx, ownerID, opts)
	if err != nil {
		return nil, fail(classOf(err), coverr.CodeCoordinatorReadFailure, "failed to list documents", err,
			coverr.FieldOwnerID(ownerID))
	}
	return docs, nil
}

// Search embeds query and returns the closest points. topK <= 0 uses the
// default of 5.
func (c *Coordinator) Search(ctx context.Context, query string, topK int, filter store.PointFilter) ([]store.VectorResult, error) {
	const msg = "failed to search documents"
	code := coverr.CodeCoordinatorReadFailure

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("search query is required")
	}
	if topK <= 0 {
		topK = defaultSearchTopK
	}
	if topK > maxSearchTopK {
		return nil, invalid(fmt.Sprintf("top_k must be at most %d", maxSearchTopK))
	}

	vector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fail(ErrStore, code, msg, err)
	}

	results, err := c.vectors.SearchByVector(ctx, vector, topK, filter)
	if err != nil {
		return nil, fail(classOf(err), code, msg, err, coverr.FieldSourceID(filter.SourceID))
	}
	return results, nil
}

// withDocumentLane runs fn on the lanes of the document's current source ID
// plus extra. fn re-reads the record and returns errStaleLane if its source
// ID moved while waiting, in which case the lanes are re-acquired.
func (c *Coordinator) withDocumentLane(ctx context.Context, documentID int64, extra []string, fn func(context.Context, string) error) error {
	for range maxLaneAttempts {
		doc, err := c.Get(ctx, documentID)
		if err != nil {
			return err
		}

		keys := append([]string{doc.SourceID}, extra...)
		err = c.lanes.Do(ctx, keys, func(ctx context.Context) error {
			return fn(ctx, doc.SourceID)
		})
		if !errors.Is(err, errStaleLane) {
			return err
		}
		c.logger.Debug("source id moved while waiting for lane",
			"document_id", documentID,
			"source_id", doc.SourceID)
	}
	return fail(ErrConflict, coverr.CodeCoordinatorSourceConflict, "document source id kept changing", nil,
		coverr.FieldDocumentID(documentID))
}

// load opens a transaction and reads the document. A non-empty lockedSource
// must match the record's source ID.
func (c *Coordinator) load(ctx context.Context, documentID int64, lockedSource string, code coverr.Code, msg string) (store.DocumentTx, *store.Document, error) {
	fields := coverr.FieldDocumentID(documentID)

	tx, err := c.docs.Begin(ctx)
	if err != nil {
		return nil, nil, fail(ErrStore, code, msg, err, fields)
	}

	doc, found, err := tx.GetByID(ctx, documentID)
	switch {
	case err != nil:
		_ = tx.Rollback()
		return nil, nil, fail(ErrStore, code, msg, err, fields)
	case !found:
		_ = tx.Rollback()
		return nil, nil, fail(ErrNotFound, coverr.CodeCoordinatorDocumentNotFound,
			fmt.Sprintf("document %d", documentID), nil, fields)
	case lockedSource != "" && doc.SourceID != lockedSource:
		_ = tx.Rollback()
		return nil, nil, errStaleLane
	}
	return tx, doc, nil
}

// checkSourceFree runs ensureSourceFree in its own short transaction.
func (c *Coordinator) checkSourceFree(ctx context.Context, ownerID, sourceID string, code coverr.Code, msg string) error {
	tx, err := c.docs.Begin(ctx)
	if err != nil {
		return fail(ErrStore, code, msg, err, coverr.FieldSourceID(sourceID), coverr.FieldOwnerID(ownerID))
	}
	defer func() { _ = tx.Rollback() }()
	return c.ensureSourceFree(ctx, tx, ownerID, sourceID, code, msg)
}

// ensureSourceFree fails with ErrConflict if sourceID already has a record
// for the owner or any vector points.
func (c *Coordinator) ensureSourceFree(ctx context.Context, tx store.DocumentTx, ownerID, sourceID string, code coverr.Code, msg string) error {
	fields := []coverr.Attr{coverr.FieldSourceID(sourceID), coverr.FieldOwnerID(ownerID)}

	_, found, err := tx.GetBySourceID(ctx, ownerID, sourceID)
	if err != nil {
		return fail(ErrStore, code, msg, err, fields...)
	}
	if found {
		return fail(ErrConflict, coverr.CodeCoordinatorSourceConflict, "source id already registered", nil, fields...)
	}

	points, err := c.vectors.GetPointsBySourceID(ctx, sourceID)
	if err != nil {
		return fail(ErrStore, code, msg, err, fields...)
	}
	if len(points) > 0 {
		return fail(ErrConflict, coverr.CodeCoordinatorSourceConflict,
			fmt.Sprintf("source id already has %d vector points", len(points)), nil, fields...)
	}
	return nil
}

// compensation describes the undo work after a failed saga step.
type compensation struct {
	op      string
	tx      store.DocumentTx // nil when the caller already rolled back
	snap    *Snapshot // points to restore; nil restores nothing
	cleanup string    // source ID whose freshly written points must go first
	cause   error
	code    coverr.Code
	msg     string
	docID   int64
	fields  []coverr.Attr
}

// compensate rolls back the relational transaction, removes freshly written
// points and restores the snapshot. It runs on a context detached from the
// caller's cancellation so a cancelled request cannot skip the restore.
func (c *Coordinator) compensate(ctx context.Context, comp compensation) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.compensationTimeout)
	defer cancel()

	c.logger.Warn("compensating failed "+comp.op,
		"document_id", comp.docID,
		"source_id", comp.snap.sourceIDOr(comp.cleanup),
		"points", comp.snap.Len(),
		"error", comp.cause)

	if comp.tx != nil {
		if err := comp.tx.Rollback(); err != nil {
			// An uncommitted transaction is discarded with its connection anyway.
			c.logger.Warn("relational rollback failed", "document_id", comp.docID, "error", err)
		}
	}

	var errs []error
	if comp.cleanup != "" {
		if _, err := c.vectors.DeletePointsBySourceID(cctx, comp.cleanup); err != nil {
			errs = append(errs, fmt.Errorf("removing new points of %s: %w", comp.cleanup, err))
		}
	}
	if err := Restore(cctx, c.vectors, comp.snap); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		restoreErr := errors.Join(errs...)
		c.logger.Error("compensation failed, stores are inconsistent",
			"severity", "critical",
			"op", comp.op,
			"document_id", comp.docID,
			"source_id", comp.snap.sourceIDOr(comp.cleanup),
			"snapshot_point_ids", comp.snap.PointIDs(),
			"cause", comp.cause,
			"error", restoreErr)
		return compensationFailed(comp.msg, comp.cause, restoreErr, comp.fields...)
	}

	class := classOf(comp.cause)
	if class == ErrValidation {
		// Past the destructive step an invalid write is a pipeline fault.
		class = ErrStore
	}
	return fail(class, comp.code, comp.msg, comp.cause, comp.fields...)
}

func (s *Snapshot) sourceIDOr(fallback string) string {
	if s == nil {
		return fallback
	}
	return s.SourceID
}
