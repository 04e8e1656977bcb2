// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/coverly-dev/coverly/internal/store"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.VectorStore = (*VectorStore)(nil)

// VectorStore implements store.VectorStore backed by SQLite with sqlite-vec.
// The vec0 extension is loaded through the cgo driver, so this store always
// uses mattn/go-sqlite3 regardless of the relational driver setting.
type VectorStore struct {
	db         *sql.DB
	dimensions int
}

// NewVectorStore opens (or creates) a SQLite database at dbPath and
// initialises the vec0 virtual table and companion payload table.
func NewVectorStore(dbPath string, dimensions int) (*VectorStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d: %w", dimensions, store.ErrInvalidInput)
	}

	db, err := openDB(DriverCGO, dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateVector(db, dimensions); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating vector tables: %w", err)
	}

	return &VectorStore{db: db, dimensions: dimensions}, nil
}

func migrateVector(db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating vectors virtual table: %w", err)
	}

	const payloadDDL = `
CREATE TABLE IF NOT EXISTS point_payload (
	id        TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	owner_id  TEXT NOT NULL DEFAULT '',
	text      TEXT NOT NULL DEFAULT '',
	extra     TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_point_payload_source ON point_payload(source_id);
CREATE INDEX IF NOT EXISTS idx_point_payload_owner ON point_payload(owner_id);
`
	if _, err := db.Exec(payloadDDL); err != nil {
		return fmt.Errorf("creating point_payload table: %w", err)
	}

	return nil
}

// Dimensions returns the fixed vector length of the store.
func (v *VectorStore) Dimensions() int {
	return v.dimensions
}

// GetPointsBySourceID returns every point for sourceID ordered by point ID,
// including the stored vectors.
func (v *VectorStore) GetPointsBySourceID(ctx context.Context, sourceID string) ([]store.Point, error) {
	const q = `SELECT p.id, p.source_id, p.owner_id, p.text, p.extra, v.embedding
FROM point_payload p
JOIN vectors v ON v.id = p.id
WHERE p.source_id = ?
ORDER BY p.id`

	rows, err := v.db.QueryContext(ctx, q, sourceID)
	if err != nil {
		return nil, fmt.Errorf("fetching points for source %s: %w: %w", sourceID, store.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var points []store.Point
	for rows.Next() {
		var p store.Point
		var extra string
		var blob []byte

		if err := rows.Scan(&p.ID, &p.Payload.SourceID, &p.Payload.OwnerID, &p.Payload.Text, &extra, &blob); err != nil {
			return nil, fmt.Errorf("scanning point: %w: %w", store.ErrDatabase, err)
		}
		if p.Payload.Extra, err = decodeExtra(extra); err != nil {
			return nil, fmt.Errorf("point %s: %w", p.ID, err)
		}
		if p.Vector, err = decodeFloat32(blob); err != nil {
			return nil, fmt.Errorf("point %s: %w", p.ID, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w: %w", store.ErrDatabase, err)
	}
	return points, nil
}

// DeletePointsBySourceID removes every point for sourceID in one local
// transaction and returns how many were removed.
func (v *VectorStore) DeletePointsBySourceID(ctx context.Context, sourceID string) (int, error) {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w: %w", store.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := pointIDsForSource(ctx, tx, sourceID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return 0, fmt.Errorf("deleting vectors for source %s: %w: %w", sourceID, store.ErrDatabase, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM point_payload WHERE source_id = ?`, sourceID); err != nil {
		return 0, fmt.Errorf("deleting payloads for source %s: %w: %w", sourceID, store.ErrDatabase, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing vector delete: %w: %w", store.ErrDatabase, err)
	}
	return len(ids), nil
}

func pointIDsForSource(ctx context.Context, tx *sql.Tx, sourceID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM point_payload WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("listing point ids for source %s: %w: %w", sourceID, store.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning point id: %w: %w", store.ErrDatabase, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating point ids: %w: %w", store.ErrDatabase, err)
	}
	return ids, nil
}

// UpsertPoints writes every point by ID in one local transaction.
// Re-upserting an existing ID replaces its vector and payload.
func (v *VectorStore) UpsertPoints(ctx context.Context, points []store.Point) error {
	if len(points) == 0 {
		return nil
	}

	for _, p := range points {
		if err := p.Validate(v.dimensions); err != nil {
			return fmt.Errorf("upserting points: %w: %w", store.ErrInvalidInput, err)
		}
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w: %w", store.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range points {
		if err := upsertPoint(ctx, tx, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vector upsert: %w: %w", store.ErrDatabase, err)
	}
	return nil
}

func upsertPoint(ctx context.Context, tx *sql.Tx, p store.Point) error {
	blob, err := sqlite_vec.SerializeFloat32(p.Vector)
	if err != nil {
		return fmt.Errorf("serializing embedding %s: %w", p.ID, err)
	}

	extra := []byte("{}")
	if len(p.Payload.Extra) > 0 {
		extra, err = json.Marshal(p.Payload.Extra)
		if err != nil {
			return fmt.Errorf("marshalling payload %s: %w: %w", p.ID, store.ErrInvalidInput, err)
		}
	}

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, p.ID); err != nil {
		return fmt.Errorf("deleting existing vector %s: %w: %w", p.ID, store.ErrDatabase, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO vectors(id, embedding) VALUES (?, ?)`, p.ID, blob); err != nil {
		return fmt.Errorf("inserting vector %s: %w: %w", p.ID, store.ErrDatabase, err)
	}

	const payloadQ = `INSERT INTO point_payload(id, source_id, owner_id, text, extra) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	source_id = excluded.source_id,
	owner_id = excluded.owner_id,
	text = excluded.text,
	extra = excluded.extra`
	if _, err := tx.ExecContext(ctx, payloadQ, p.ID, p.Payload.SourceID, p.Payload.OwnerID, p.Payload.Text, string(extra)); err != nil {
		return fmt.Errorf("upserting payload %s: %w: %w", p.ID, store.ErrDatabase, err)
	}
	return nil
}

// SearchByVector returns the topK points closest to vector.
// Score represents L2 distance (lower = more similar); 0.0 = exact match.
// An empty filter uses the vec0 KNN index; a filtered search scans the
// matching points exactly.
func (v *VectorStore) SearchByVector(ctx context.Context, vector []float32, topK int, filter store.PointFilter) ([]store.VectorResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d: %w", topK, store.ErrInvalidInput)
	}
	if len(vector) != v.dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, store expects %d: %w",
			len(vector), v.dimensions, store.ErrInvalidInput)
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fmt.Errorf("serializing query vector: %w", err)
	}

	var rows *sql.Rows
	if filter.IsEmpty() {
		const knnQ = `SELECT v.id, v.distance,
	COALESCE(p.source_id, ''), COALESCE(p.owner_id, ''), COALESCE(p.text, ''), COALESCE(p.extra, '{}')
FROM vectors v
LEFT JOIN point_payload p ON p.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`
		rows, err = v.db.QueryContext(ctx, knnQ, blob, topK)
	} else {
		const scanQ = `SELECT p.id, vec_distance_l2(v.embedding, ?) AS distance,
	p.source_id, p.owner_id, p.text, p.extra
FROM point_payload p
JOIN vectors v ON v.id = p.id
WHERE (? = '' OR p.source_id = ?) AND (? = '' OR p.owner_id = ?)
ORDER BY distance
LIMIT ?`
		rows, err = v.db.QueryContext(ctx, scanQ, blob,
			filter.SourceID, filter.SourceID, filter.OwnerID, filter.OwnerID, topK)
	}
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w: %w", store.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var results []store.VectorResult
	for rows.Next() {
		var r store.VectorResult
		var extra string

		if err := rows.Scan(&r.ID, &r.Score, &r.Payload.SourceID, &r.Payload.OwnerID, &r.Payload.Text, &extra); err != nil {
			return nil, fmt.Errorf("scanning vector result: %w: %w", store.ErrDatabase, err)
		}
		if r.Payload.Extra, err = decodeExtra(extra); err != nil {
			return nil, fmt.Errorf("vector result %s: %w", r.ID, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector results: %w: %w", store.ErrDatabase, err)
	}

	return results, nil
}

// Close closes the underlying database connection.
func (v *VectorStore) Close() error {
	return v.db.Close()
}

func decodeExtra(raw string) (map[string]any, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var extra map[string]any
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return nil, fmt.Errorf("unmarshalling payload extra: %w: %w", store.ErrDatabase, err)
	}
	return extra, nil
}

// decodeFloat32 reverses sqlite_vec.SerializeFloat32 (little-endian float32).
func decodeFloat32(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4: %w", len(blob), store.ErrDatabase)
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}
