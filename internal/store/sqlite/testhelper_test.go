// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package sqlite_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/coverly-dev/coverly/internal/store"
	"github.com/stretchr/testify/require"
)

// testDir creates a temp directory for a test and returns cleanup func.
func testDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "coverly-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testDir(t), name+".db")
}

func point(id, sourceID string, vec ...float32) store.Point {
	return store.Point{
		ID:     id,
		Vector: vec,
		Payload: store.Payload{
			SourceID: sourceID,
			OwnerID:  "user-1",
			Text:     "chunk " + id,
		},
	}
}

func newDocument(sourceID string) *store.Document {
	return &store.Document{
		SourceID:         sourceID,
		OwnerID:          "user-1",
		Filename:         sourceID + ".pdf",
		OriginalFilename: "Original " + sourceID + ".pdf",
		StoragePath:      "/uploads/" + sourceID + ".pdf",
		ByteSize:         1024,
		UploadIP:         "127.0.0.1",
		UploadAgent:      "test-agent",
	}
}
