// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package embedding

import (
	"context"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// DefaultMaxContentBytes caps the size of a single CV file.
const DefaultMaxContentBytes int64 = 4 << 20

// Loader resolves a content reference to its plain text.
type Loader interface {
	Load(ctx context.Context, contentRef string) (string, error)
}

// FileLoader reads UTF-8 text from the local filesystem. A content reference
// is a path, optionally prefixed with file://.
type FileLoader struct {
	MaxBytes int64
}

func (l FileLoader) Load(ctx context.Context, contentRef string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := strings.TrimPrefix(contentRef, "file://")
	if path == "" {
		return "", coverr.New(coverr.CodeEmbeddingContentInvalid, "content reference is empty")
	}

	limit := l.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxContentBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return "", coverr.Wrapf(err, coverr.CodeEmbeddingLoadFailure, "opening content %s", path)
	}
	defer func() { _ = f.Close() }()

	// Read one byte past the limit so oversized files are detected without
	// trusting Stat.
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", coverr.Wrapf(err, coverr.CodeEmbeddingLoadFailure, "reading content %s", path)
	}
	if int64(len(data)) > limit {
		return "", coverr.Errorf(coverr.CodeEmbeddingContentInvalid,
			"content %s exceeds %d bytes", path, limit)
	}
	if !utf8.Valid(data) {
		return "", coverr.Errorf(coverr.CodeEmbeddingContentInvalid,
			"content %s is not UTF-8 text", path)
	}
	return string(data), nil
}
