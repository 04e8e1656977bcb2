// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package store

import (
	"maps"
	"time"
)

// --- Document types ---

// DocumentStatus represents the lifecycle state of a CV record.
type DocumentStatus string

const (
	DocumentStatusActive     DocumentStatus = "active"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// DefaultMimeType is assigned to documents created without a MIME type.
const DefaultMimeType = "application/pdf"

// Document is the relational metadata record for one uploaded CV.
type Document struct {
	ID               int64          `json:"id"`
	SourceID         string         `json:"source_id"`
	OwnerID          string         `json:"owner_id"`
	Filename         string         `json:"filename"`
	OriginalFilename string         `json:"original_filename"`
	StoragePath      string         `json:"storage_path"`
	ByteSize         int64          `json:"byte_size"`
	MimeType         string         `json:"mime_type"`
	UploadIP         string         `json:"upload_ip"`
	UploadAgent      string         `json:"upload_agent"`
	Status           DocumentStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// DocumentPatch is a partial update of a Document. A nil field leaves the
// stored value untouched; a non-nil field is written as-is, so empty strings
// and zero sizes are legitimate values.
type DocumentPatch struct {
	SourceID         *string
	Filename         *string
	OriginalFilename *string
	StoragePath      *string
	ByteSize         *int64
	MimeType         *string
	UploadIP         *string
	UploadAgent      *string
	Status           *DocumentStatus
}

// String returns a pointer to v for use in a DocumentPatch.
func String(v string) *string { return &v }

// Int64 returns a pointer to v for use in a DocumentPatch.
func Int64(v int64) *int64 { return &v }

// Status returns a pointer to v for use in a DocumentPatch.
func Status(v DocumentStatus) *DocumentStatus { return &v }

// IsEmpty reports whether the patch changes nothing.
func (p DocumentPatch) IsEmpty() bool {
	return p.SourceID == nil &&
		p.Filename == nil &&
		p.OriginalFilename == nil &&
		p.StoragePath == nil &&
		p.ByteSize == nil &&
		p.MimeType == nil &&
		p.UploadIP == nil &&
		p.UploadAgent == nil &&
		p.Status == nil
}

// ReassignsSource reports whether the patch moves the document to a
// different source ID than current.
func (p DocumentPatch) ReassignsSource(current string) bool {
	return p.SourceID != nil && *p.SourceID != current
}

// Apply returns a copy of doc with every set field of the patch written over
// it. doc itself is not modified.
func (p DocumentPatch) Apply(doc *Document) *Document {
	out := *doc
	if p.SourceID != nil {
		out.SourceID = *p.SourceID
	}
	if p.Filename != nil {
		out.Filename = *p.Filename
	}
	if p.OriginalFilename != nil {
		out.OriginalFilename = *p.OriginalFilename
	}
	if p.StoragePath != nil {
		out.StoragePath = *p.StoragePath
	}
	if p.ByteSize != nil {
		out.ByteSize = *p.ByteSize
	}
	if p.MimeType != nil {
		out.MimeType = *p.MimeType
	}
	if p.UploadIP != nil {
		out.UploadIP = *p.UploadIP
	}
	if p.UploadAgent != nil {
		out.UploadAgent = *p.UploadAgent
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	return &out
}

// --- Vector types ---

// Payload is the filterable data stored next to each vector.
type Payload struct {
	SourceID string         `json:"source_id"`
	OwnerID  string         `json:"owner_id"`
	Text     string         `json:"text"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Point is one vector plus payload in the vector store.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Clone returns a deep copy of the point so later mutation of the source
// slices or maps cannot leak into it.
func (p Point) Clone() Point {
	out := Point{ID: p.ID, Payload: p.Payload}
	if p.Vector != nil {
		out.Vector = make([]float32, len(p.Vector))
		copy(out.Vector, p.Vector)
	}
	if p.Payload.Extra != nil {
		out.Payload.Extra = maps.Clone(p.Payload.Extra)
	}
	return out
}

// PointFilter narrows a vector search. Empty fields do not filter.
type PointFilter struct {
	SourceID string
	OwnerID  string
}

// IsEmpty reports whether the filter matches every point.
func (f PointFilter) IsEmpty() bool {
	return f.SourceID == "" && f.OwnerID == ""
}

// VectorResult represents a single result from a vector similarity search.
type VectorResult struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"` // Distance metric: lower = more similar; 0.0 = exact match.
	Payload Payload `json:"payload"`
}

// ListOpts provides pagination parameters for list operations.
type ListOpts struct {
	Limit  int
	Offset int
}
