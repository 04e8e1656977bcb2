// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package embedding_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverly-dev/coverly/internal/embedding"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

func TestNewChunker_Validation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{name: "valid", size: 10, overlap: 2},
		{name: "no overlap", size: 10, overlap: 0},
		{name: "zero size", size: 0, overlap: 0, wantErr: true},
		{name: "negative overlap", size: 10, overlap: -1, wantErr: true},
		{name: "overlap equals size", size: 10, overlap: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := embedding.NewChunker(tt.size, tt.overlap)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, coverr.HasCode(err, coverr.CodeEmbeddingConfigInvalid))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestChunker_Split(t *testing.T) {
	c, err := embedding.NewChunker(10, 0)
	require.NoError(t, err)

	t.Run("empty text", func(t *testing.T) {
		assert.Empty(t, c.Split(""))
		assert.Empty(t, c.Split(" \n\t "))
	})

	t.Run("short text is one chunk", func(t *testing.T) {
		assert.Equal(t, []string{"hello go"}, c.Split("  hello\n\n go "))
	})

	t.Run("breaks on spaces", func(t *testing.T) {
		assert.Equal(t, []string{"alpha beta", "gamma"}, c.Split("alpha beta gamma"))
	})

	t.Run("long words are cut", func(t *testing.T) {
		assert.Equal(t, []string{"abcdefghij", "klm"}, c.Split("abcdefghijklm"))
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		chunks := c.Split(strings.Repeat("é", 15))
		require.Len(t, chunks, 2)
		assert.Equal(t, strings.Repeat("é", 10), chunks[0])
		assert.Equal(t, strings.Repeat("é", 5), chunks[1])
	})
}

func TestChunker_SplitOverlap(t *testing.T) {
	c, err := embedding.NewChunker(6, 2)
	require.NoError(t, err)

	chunks := c.Split("abcdefghij")
	assert.Equal(t, []string{"abcdef", "efghij"}, chunks)
}
