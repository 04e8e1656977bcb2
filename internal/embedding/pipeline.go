// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package embedding

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/coverly-dev/coverly/internal/store"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
	"github.com/coverly-dev/coverly/pkg/health"
)

const (
	DefaultBatchSize         = 64
	DefaultConcurrency       = 4
	DefaultRequestsPerSecond = 10
)

// pointNamespace scopes the name-based UUIDs of chunk points.
var pointNamespace = uuid.MustParse("6f1c3a52-8d0e-4b8e-9a57-3f0d2c1e7b44")

// PointID returns the stable point ID of chunk index of sourceID.
func PointID(sourceID string, index int) string {
	return uuid.NewSHA1(pointNamespace, []byte(sourceID+"#"+strconv.Itoa(index))).String()
}

// PipelineConfig tunes chunking and provider traffic.
type PipelineConfig struct {
	ChunkSize         int
	ChunkOverlap      int
	BatchSize         int
	Concurrency       int
	RequestsPerSecond float64
	Dimensions        int // expected vector length; 0 accepts any
	HealthCooldown    time.Duration
	FailureThreshold  int // consecutive upstream failures before cooling down
}

func (c *PipelineConfig) setDefaults() {
	if c.ChunkSize == 0 && c.ChunkOverlap == 0 {
		c.ChunkSize, c.ChunkOverlap = DefaultChunkSize, DefaultChunkOverlap
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.HealthCooldown <= 0 {
		c.HealthCooldown = DefaultHealthCooldown
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLoader replaces the default FileLoader.
func WithLoader(l Loader) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.loader = l
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pipeline loads CV content, chunks it and embeds the chunks with a
// provider. It produces the points the vector store holds for one source.
type Pipeline struct {
	provider Provider
	loader   Loader
	chunker  Chunker
	limiter  *rate.Limiter
	health   *HealthTracker
	logger   *slog.Logger

	batchSize   int
	concurrency int
	dims        int
}

// NewPipeline creates a Pipeline around provider.
func NewPipeline(provider Provider, cfg PipelineConfig, opts ...PipelineOption) (*Pipeline, error) {
	if provider == nil {
		return nil, coverr.New(coverr.CodeEmbeddingConfigInvalid, "embedding pipeline requires a provider")
	}
	cfg.setDefaults()

	chunker, err := NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	tracker, err := NewHealthTracker(cfg.HealthCooldown, cfg.FailureThreshold)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		provider:    provider,
		loader:      FileLoader{},
		chunker:     chunker,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Concurrency),
		health:      tracker,
		logger:      slog.Default(),
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		dims:        cfg.Dimensions,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Health reports the provider's availability.
func (p *Pipeline) Health() health.Metrics {
	return p.health.Metrics()
}

// Embed loads contentRef and returns one point per chunk, tagged with
// sourceID and ownerID.
func (p *Pipeline) Embed(ctx context.Context, contentRef, sourceID, ownerID string) ([]store.Point, error) {
	text, err := p.loader.Load(ctx, contentRef)
	if err != nil {
		return nil, err
	}
	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, coverr.New(coverr.CodeEmbeddingContentInvalid, "content has no text",
			coverr.FieldSourceID(sourceID))
	}

	vectors, err := p.embedAll(ctx, chunks)
	if err != nil {
		return nil, err
	}

	points := make([]store.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = store.Point{
			ID:     PointID(sourceID, i),
			Vector: vectors[i],
			Payload: store.Payload{
				SourceID: sourceID,
				OwnerID:  ownerID,
				Text:     chunk,
				Extra: map[string]any{
					"chunk_index": i,
					"chunk_count": len(chunks),
					"provider":    p.provider.Name(),
				},
			},
		}
	}

	p.logger.Debug("content embedded",
		"source_id", sourceID,
		"chunks", len(chunks),
		"provider", p.provider.Name(),
	)
	return points, nil
}

// EmbedQuery embeds a search query.
func (p *Pipeline) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, coverr.New(coverr.CodeEmbeddingContentInvalid, "query is empty")
	}
	vectors, err := p.embedAll(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedAll embeds texts in batches, running up to p.concurrency batches at
// once under the rate limiter. Results keep the order of texts.
func (p *Pipeline) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if !p.health.IsHealthy() {
		return nil, coverr.New(coverr.CodeEmbeddingUpstreamFailure, "embedding provider is cooling down",
			coverr.FieldProvider(p.provider.Name()))
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		batch := texts[start:end]
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return err
			}
			vectors, err := p.provider.EmbedTexts(gctx, batch)
			if err != nil {
				if gctx.Err() == nil && p.health.RecordFailure(err) {
					p.logger.Warn("embedding provider cooling down",
						"provider", p.provider.Name(),
						"code", coverr.CodeOf(err),
						"error", err)
				}
				return err
			}
			if len(vectors) != len(batch) {
				return coverr.Errorf(coverr.CodeEmbeddingResponseInvalid,
					"%s returned %d vectors for %d texts", p.provider.Name(), len(vectors), len(batch))
			}
			for i, vec := range vectors {
				if len(vec) == 0 || (p.dims > 0 && len(vec) != p.dims) {
					return coverr.Errorf(coverr.CodeEmbeddingResponseInvalid,
						"%s returned a vector of %d dimensions, expected %d", p.provider.Name(), len(vec), p.dims)
				}
				out[start+i] = vec
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.health.RecordSuccess()
	return out, nil
}
