// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

// Package google provides an embedding.Provider backed by the Gemini API.
package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/coverly-dev/coverly/internal/embedding"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-embedding-001"

func init() {
	embedding.RegisterProvider("google", func(cfg embedding.ProviderConfig) (embedding.Provider, error) {
		return New(cfg)
	})
}

// Provider implements embedding.Provider using the Google Gemini API.
type Provider struct {
	client *genai.Client
	model  string
	dims   int
}

// New creates a new Google provider. Returns an error if the API key is missing.
func New(cfg embedding.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, coverr.New(coverr.CodeEmbeddingConfigInvalid, "google: missing api_key in config", coverr.FieldProvider("google"))
	}
	if cfg.Dimensions < 0 {
		return nil, coverr.Errorf(coverr.CodeEmbeddingConfigInvalid, "google: dimensions must not be negative, got %d", cfg.Dimensions)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, coverr.Wrapf(err, coverr.CodeEmbeddingUpstreamFailure, "google: creating client")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Provider{client: client, model: model, dims: cfg.Dimensions}, nil
}

func (p *Provider) Name() string { return "google" }

func (p *Provider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, buildContents(texts), buildConfig(p.dims))
	if err != nil {
		return nil, coverr.Wrapf(err, coverr.CodeEmbeddingUpstreamFailure, "google: embedding %d texts", len(texts))
	}
	return convertResponse(resp, len(texts))
}

func buildContents(texts []string) []*genai.Content {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	return contents
}

func buildConfig(dims int) *genai.EmbedContentConfig {
	if dims <= 0 {
		return nil
	}
	return &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(int32(dims))}
}

func convertResponse(resp *genai.EmbedContentResponse, want int) ([][]float32, error) {
	if resp == nil || len(resp.Embeddings) != want {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, coverr.Errorf(coverr.CodeEmbeddingResponseInvalid,
			"google: got %d embeddings for %d texts", got, want)
	}

	out := make([][]float32, want)
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, coverr.Errorf(coverr.CodeEmbeddingResponseInvalid, "google: embedding %d is empty", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
