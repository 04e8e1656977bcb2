// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package embedding

import (
	"strings"

	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits text into overlapping windows measured in runes.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the window settings.
func NewChunker(size, overlap int) (Chunker, error) {
	if size <= 0 {
		return Chunker{}, coverr.Errorf(coverr.CodeEmbeddingConfigInvalid,
			"chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return Chunker{}, coverr.Errorf(coverr.CodeEmbeddingConfigInvalid,
			"chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return Chunker{size: size, overlap: overlap}, nil
}

// Split collapses whitespace and returns the chunks of text. Windows end on
// a space when one falls in the second half of the window. Empty or
// whitespace-only text yields no chunks.
func (c Chunker) Split(text string) []string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+c.size, len(runes))
		if end < len(runes) {
			for i := end; i > start+c.size/2; i-- {
				if runes[i] == ' ' {
					end = i
					break
				}
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}
