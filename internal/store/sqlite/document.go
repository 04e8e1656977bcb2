// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coverly-dev/coverly/internal/store"
)

// Compile-time interface checks.
var (
	_ store.DocumentStore = (*DocumentStore)(nil)
	_ store.DocumentTx    = (*documentTx)(nil)
)

// DocumentStore implements store.DocumentStore backed by SQLite.
type DocumentStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewDocumentStore opens (or creates) a SQLite database at dbPath using the
// named database/sql driver and initialises the documents table.
func NewDocumentStore(dbPath, driver string) (*DocumentStore, error) {
	db, err := openDB(driver, dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateDocuments(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating documents table: %w", err)
	}

	return &DocumentStore{db: db, now: time.Now}, nil
}

func migrateDocuments(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id         TEXT NOT NULL,
	owner_id          TEXT NOT NULL,
	filename          TEXT NOT NULL,
	original_filename TEXT NOT NULL DEFAULT '',
	storage_path      TEXT NOT NULL DEFAULT '',
	byte_size         INTEGER NOT NULL DEFAULT 0,
	mime_type         TEXT NOT NULL DEFAULT 'application/pdf',
	upload_ip         TEXT NOT NULL DEFAULT '',
	upload_agent      TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'active',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL,
	UNIQUE(owner_id, source_id)
);

CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id, created_at);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

// Begin opens a local transaction. The caller must Commit or Rollback it.
func (s *DocumentStore) Begin(ctx context.Context) (store.DocumentTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning document transaction: %w: %w", store.ErrDatabase, err)
	}
	return &documentTx{tx: tx, now: s.now}, nil
}

// ListByOwner returns the owner's documents, newest first.
func (s *DocumentStore) ListByOwner(ctx context.Context, ownerID string, opts store.ListOpts) ([]*store.Document, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	offset := max(opts.Offset, 0)

	const q = `SELECT ` + documentColumns + `
FROM documents WHERE owner_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing documents for owner %s: %w: %w", ownerID, store.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*store.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w: %w", store.ErrDatabase, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w: %w", store.ErrDatabase, err)
	}
	return docs, nil
}

const documentColumns = `id, source_id, owner_id, filename, original_filename, storage_path,
	byte_size, mime_type, upload_ip, upload_agent, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*store.Document, error) {
	var doc store.Document
	var createdAt, updatedAt string

	err := row.Scan(
		&doc.ID,
		&doc.SourceID,
		&doc.OwnerID,
		&doc.Filename,
		&doc.OriginalFilename,
		&doc.StoragePath,
		&doc.ByteSize,
		&doc.MimeType,
		&doc.UploadIP,
		&doc.UploadAgent,
		&doc.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}

// documentTx scopes document reads and writes to one *sql.Tx.
type documentTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *documentTx) GetByID(ctx context.Context, id int64) (*store.Document, bool, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`
	return t.getOne(ctx, fmt.Sprintf("document %d", id), q, id)
}

func (t *documentTx) GetBySourceID(ctx context.Context, ownerID, sourceID string) (*store.Document, bool, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE owner_id = ? AND source_id = ?`
	return t.getOne(ctx, fmt.Sprintf("document %s/%s", ownerID, sourceID), q, ownerID, sourceID)
}

func (t *documentTx) getOne(ctx context.Context, what, q string, args ...any) (*store.Document, bool, error) {
	doc, err := scanDocument(t.tx.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting %s: %w: %w", what, store.ErrDatabase, err)
	}
	return doc, true, nil
}

// Insert writes a new document and sets its ID and timestamps.
func (t *documentTx) Insert(ctx context.Context, doc *store.Document) error {
	if doc.MimeType == "" {
		doc.MimeType = store.DefaultMimeType
	}
	if doc.Status == "" {
		doc.Status = store.DocumentStatusActive
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("inserting document: %w: %w", store.ErrInvalidInput, err)
	}

	now := t.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	const q = `INSERT INTO documents (source_id, owner_id, filename, original_filename, storage_path,
	byte_size, mime_type, upload_ip, upload_agent, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := t.tx.ExecContext(ctx, q,
		doc.SourceID,
		doc.OwnerID,
		doc.Filename,
		doc.OriginalFilename,
		doc.StoragePath,
		doc.ByteSize,
		doc.MimeType,
		doc.UploadIP,
		doc.UploadAgent,
		string(doc.Status),
		formatTime(doc.CreatedAt),
		formatTime(doc.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("document %s/%s: %w", doc.OwnerID, doc.SourceID, store.ErrConflict)
		}
		return fmt.Errorf("inserting document %s/%s: %w: %w", doc.OwnerID, doc.SourceID, store.ErrDatabase, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted document id: %w: %w", store.ErrDatabase, err)
	}
	doc.ID = id
	return nil
}

// ApplyPatch writes the set fields of patch over doc and stamps UpdatedAt.
// It returns the patched copy; doc is left untouched.
func (t *documentTx) ApplyPatch(ctx context.Context, doc *store.Document, patch store.DocumentPatch) (*store.Document, error) {
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("patching document %d: %w: %w", doc.ID, store.ErrInvalidInput, err)
	}

	updated := patch.Apply(doc)
	updated.UpdatedAt = t.now().UTC()

	const q = `UPDATE documents SET source_id = ?, filename = ?, original_filename = ?, storage_path = ?,
	byte_size = ?, mime_type = ?, upload_ip = ?, upload_agent = ?, status = ?, updated_at = ?
WHERE id = ?`

	res, err := t.tx.ExecContext(ctx, q,
		updated.SourceID,
		updated.Filename,
		updated.OriginalFilename,
		updated.StoragePath,
		updated.ByteSize,
		updated.MimeType,
		updated.UploadIP,
		updated.UploadAgent,
		string(updated.Status),
		formatTime(updated.UpdatedAt),
		updated.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("document %s/%s: %w", updated.OwnerID, updated.SourceID, store.ErrConflict)
		}
		return nil, fmt.Errorf("patching document %d: %w: %w", doc.ID, store.ErrDatabase, err)
	}
	if err := expectOneRow(res, doc.ID); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the document row.
func (t *documentTx) Delete(ctx context.Context, doc *store.Document) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, doc.ID)
	if err != nil {
		return fmt.Errorf("deleting document %d: %w: %w", doc.ID, store.ErrDatabase, err)
	}
	return expectOneRow(res, doc.ID)
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w: %w", store.ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("document %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (t *documentTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing document transaction: %w: %w", store.ErrDatabase, err)
	}
	return nil
}

func (t *documentTx) Rollback() error {
	err := t.tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return fmt.Errorf("rolling back document transaction: %w: %w", store.ErrDatabase, err)
}
