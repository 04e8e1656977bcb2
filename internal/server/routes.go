// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package server

import (
	"context"
	"net"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/coverly-dev/coverly/internal/coordinator"
	"github.com/coverly-dev/coverly/internal/store"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cvs",
		Method:      http.MethodGet,
		Path:        "/api/v1/cvs",
		Summary:     "List an owner's CVs",
		Tags:        []string{"cvs"},
	}, s.handleListCVs)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-cv",
		Method:      http.MethodGet,
		Path:        "/api/v1/cvs/{id}",
		Summary:     "Get CV metadata",
		Tags:        []string{"cvs"},
	}, s.handleGetCV)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-cv",
		Method:        http.MethodPost,
		Path:          "/api/v1/cvs",
		Summary:       "Register a CV and embed its content",
		Tags:          []string{"cvs"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateCV)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-cv",
		Method:      http.MethodPut,
		Path:        "/api/v1/cvs/{id}",
		Summary:     "Update CV metadata and optionally replace its content",
		Tags:        []string{"cvs"},
	}, s.handleUpdateCV)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-cv",
		Method:        http.MethodDelete,
		Path:          "/api/v1/cvs/{id}",
		Summary:       "Delete a CV and its vectors",
		Tags:          []string{"cvs"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteCV)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-cvs",
		Method:      http.MethodPost,
		Path:        "/api/v1/search",
		Summary:     "Semantic search over CV chunks",
		Tags:        []string{"search"},
	}, s.handleSearch)
}

// --- Request/Response types for huma ---

type cvIDInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Document ID"`
}

type cvOutput struct {
	Body store.Document
}

type listCVsInput struct {
	OwnerID string `query:"owner_id" required:"true" minLength:"1" doc:"Owner whose CVs to list"`
	Limit   int    `query:"limit" minimum:"0" maximum:"500" doc:"Page size, 0 for all"`
	Offset  int    `query:"offset" minimum:"0" doc:"Rows to skip"`
}

type listCVsOutput struct {
	Body struct {
		CVs []*store.Document `json:"cvs"`
	}
}

type createCVInput struct {
	UserAgent string `header:"User-Agent"`
	Body      struct {
		ContentRef       string `json:"content_ref" minLength:"1" doc:"Path of the CV text to embed"`
		SourceID         string `json:"source_id" minLength:"1" doc:"Join key shared with the vector store"`
		OwnerID          string `json:"owner_id" minLength:"1"`
		Filename         string `json:"filename" minLength:"1"`
		OriginalFilename string `json:"original_filename,omitempty"`
		StoragePath      string `json:"storage_path,omitempty"`
		ByteSize         int64  `json:"byte_size,omitempty" minimum:"0"`
		MimeType         string `json:"mime_type,omitempty"`
		Status           string `json:"status,omitempty"`
	}

	remoteAddr string
}

// Resolve captures the client address, which huma does not bind.
func (i *createCVInput) Resolve(ctx huma.Context) []error {
	i.remoteAddr = ctx.RemoteAddr()
	return nil
}

type updateCVInput struct {
	ID   int64 `path:"id" minimum:"1" doc:"Document ID"`
	Body struct {
		ContentRef       string  `json:"content_ref,omitempty" doc:"Replace the CV content; required when source_id changes"`
		SourceID         *string `json:"source_id,omitempty"`
		Filename         *string `json:"filename,omitempty"`
		OriginalFilename *string `json:"original_filename,omitempty"`
		StoragePath      *string `json:"storage_path,omitempty"`
		ByteSize         *int64  `json:"byte_size,omitempty"`
		MimeType         *string `json:"mime_type,omitempty"`
		Status           *string `json:"status,omitempty"`
	}
}

type searchInput struct {
	Body struct {
		Query    string `json:"query" minLength:"1"`
		TopK     int    `json:"top_k,omitempty" minimum:"0" maximum:"100" doc:"Defaults to 5"`
		SourceID string `json:"source_id,omitempty" doc:"Restrict to one CV"`
		OwnerID  string `json:"owner_id,omitempty" doc:"Restrict to one owner's CVs"`
	}
}

// SearchHit is one matching chunk.
type SearchHit struct {
	PointID  string         `json:"point_id"`
	Score    float64        `json:"score" doc:"Distance, lower is closer"`
	SourceID string         `json:"source_id"`
	OwnerID  string         `json:"owner_id"`
	Text     string         `json:"text"`
	Extra    map[string]any `json:"extra,omitempty"`
}

type searchOutput struct {
	Body struct {
		Results []SearchHit `json:"results"`
	}
}

// --- Handlers ---

func (s *Server) handleListCVs(ctx context.Context, input *listCVsInput) (*listCVsOutput, error) {
	docs, err := s.services.cvs.List(ctx, input.OwnerID, store.ListOpts{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return nil, toHTTPError(ctx, "listing cvs", err)
	}
	out := &listCVsOutput{}
	out.Body.CVs = docs
	if out.Body.CVs == nil {
		out.Body.CVs = []*store.Document{}
	}
	return out, nil
}

func (s *Server) handleGetCV(ctx context.Context, input *cvIDInput) (*cvOutput, error) {
	doc, err := s.services.cvs.Get(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(ctx, "getting cv", err)
	}
	return &cvOutput{Body: *doc}, nil
}

func (s *Server) handleCreateCV(ctx context.Context, input *createCVInput) (*cvOutput, error) {
	b := input.Body
	doc, err := s.services.cvs.Create(ctx, coordinator.CreateRequest{
		ContentRef: b.ContentRef,
		Document: store.Document{
			SourceID:         b.SourceID,
			OwnerID:          b.OwnerID,
			Filename:         b.Filename,
			OriginalFilename: b.OriginalFilename,
			StoragePath:      b.StoragePath,
			ByteSize:         b.ByteSize,
			MimeType:         b.MimeType,
			UploadIP:         clientIP(input.remoteAddr),
			UploadAgent:      input.UserAgent,
			Status:           store.DocumentStatus(b.Status),
		},
	})
	if err != nil {
		return nil, toHTTPError(ctx, "creating cv", err)
	}
	return &cvOutput{Body: *doc}, nil
}

func (s *Server) handleUpdateCV(ctx context.Context, input *updateCVInput) (*cvOutput, error) {
	b := input.Body
	patch := store.DocumentPatch{
		SourceID:         b.SourceID,
		Filename:         b.Filename,
		OriginalFilename: b.OriginalFilename,
		StoragePath:      b.StoragePath,
		ByteSize:         b.ByteSize,
		MimeType:         b.MimeType,
	}
	if b.Status != nil {
		patch.Status = store.Status(store.DocumentStatus(*b.Status))
	}

	doc, err := s.services.cvs.Update(ctx, coordinator.UpdateRequest{
		DocumentID: input.ID,
		ContentRef: b.ContentRef,
		Patch:      patch,
	})
	if err != nil {
		return nil, toHTTPError(ctx, "updating cv", err)
	}
	return &cvOutput{Body: *doc}, nil
}

func (s *Server) handleDeleteCV(ctx context.Context, input *cvIDInput) (*struct{}, error) {
	if err := s.services.cvs.Delete(ctx, input.ID); err != nil {
		return nil, toHTTPError(ctx, "deleting cv", err)
	}
	return nil, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	b := input.Body
	results, err := s.services.cvs.Search(ctx, b.Query, b.TopK, store.PointFilter{
		SourceID: b.SourceID,
		OwnerID:  b.OwnerID,
	})
	if err != nil {
		return nil, toHTTPError(ctx, "searching cvs", err)
	}

	out := &searchOutput{}
	out.Body.Results = make([]SearchHit, len(results))
	for i, r := range results {
		out.Body.Results[i] = SearchHit{
			PointID:  r.ID,
			Score:    r.Score,
			SourceID: r.Payload.SourceID,
			OwnerID:  r.Payload.OwnerID,
			Text:     r.Payload.Text,
			Extra:    r.Payload.Extra,
		}
	}
	return out, nil
}

// clientIP strips the port from a remote address.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
