// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

// Package openai provides an embedding.Provider backed by the OpenAI
// embeddings API. Any OpenAI-compatible endpoint works through BaseURL.
package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/coverly-dev/coverly/internal/embedding"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "text-embedding-3-small"

func init() {
	embedding.RegisterProvider("openai", func(cfg embedding.ProviderConfig) (embedding.Provider, error) {
		return New(cfg)
	})
}

// Provider implements embedding.Provider.
type Provider struct {
	client openaisdk.Client
	model  string
	dims   int
}

// New creates a new OpenAI provider. Returns an error if the API key is missing.
func New(cfg embedding.ProviderConfig, extra ...option.RequestOption) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, coverr.New(coverr.CodeEmbeddingConfigInvalid, "openai: missing api_key in config")
	}
	if cfg.Dimensions < 0 {
		return nil, coverr.Errorf(coverr.CodeEmbeddingConfigInvalid, "openai: dimensions must not be negative, got %d", cfg.Dimensions)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Provider{
		client: openaisdk.NewClient(opts...),
		model:  model,
		dims:   cfg.Dimensions,
	}, nil
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embeddings.New(ctx, buildParams(p.model, p.dims, texts))
	if err != nil {
		return nil, coverr.Wrapf(err, coverr.CodeEmbeddingUpstreamFailure, "openai: embedding %d texts", len(texts))
	}
	return convertResponse(resp, len(texts))
}

func buildParams(model string, dims int, texts []string) openaisdk.EmbeddingNewParams {
	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:          openaisdk.EmbeddingModel(model),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	if dims > 0 {
		params.Dimensions = param.NewOpt(int64(dims))
	}
	return params
}

// convertResponse places each embedding at its reported index.
func convertResponse(resp *openaisdk.CreateEmbeddingResponse, want int) ([][]float32, error) {
	if resp == nil || len(resp.Data) != want {
		got := 0
		if resp != nil {
			got = len(resp.Data)
		}
		return nil, coverr.Errorf(coverr.CodeEmbeddingResponseInvalid,
			"openai: got %d embeddings for %d texts", got, want)
	}

	out := make([][]float32, want)
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= want || out[idx] != nil {
			return nil, coverr.Errorf(coverr.CodeEmbeddingResponseInvalid,
				"openai: unexpected embedding index %d", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		out[idx] = vec
	}
	return out, nil
}
