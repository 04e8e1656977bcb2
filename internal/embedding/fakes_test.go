// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package embedding_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// stubProvider returns vectors of length dims whose first element is the
// text length.
type stubProvider struct {
	name string
	dims int
	err  error

	mu      sync.Mutex
	batches [][]string

	inFlight atomic.Int32
	peak     atomic.Int32
	// block, when set, holds every call until it is closed.
	block chan struct{}
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	p.mu.Lock()
	p.batches = append(p.batches, append([]string(nil), texts...))
	p.mu.Unlock()

	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, p.dims)
		vec[0] = float32(len(text))
		out[i] = vec
	}
	return out, nil
}

func (p *stubProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

var errNoContent = errors.New("no such content")

// mapLoader serves content from memory.
type mapLoader map[string]string

func (l mapLoader) Load(_ context.Context, ref string) (string, error) {
	text, ok := l[ref]
	if !ok {
		return "", errNoContent
	}
	return text, nil
}
