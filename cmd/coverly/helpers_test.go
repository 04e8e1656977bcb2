// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/coverly-dev/coverly/internal/embedding"
	"github.com/coverly-dev/coverly/internal/secrets"
)

const testDims = 4

// stubProvider embeds text offline: the vector counts a few letters, so
// similar texts land close together.
type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		t = strings.ToLower(t)
		out[i] = []float32{
			float32(strings.Count(t, "a")),
			float32(strings.Count(t, "e")),
			float32(strings.Count(t, "o")),
			1,
		}
	}
	return out, nil
}

// testEnv isolates HOME and the global Viper, swaps in the stub provider and
// an in-memory secret store, and writes a config file. It returns the
// config path and the data directory.
func testEnv(t *testing.T) (cfgPath, dataDir string) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	oldProvider := newEmbeddingProvider
	newEmbeddingProvider = func(string, embedding.ProviderConfig) (embedding.Provider, error) {
		return stubProvider{}, nil
	}
	t.Cleanup(func() { newEmbeddingProvider = oldProvider })

	mock := newMockSecretStore()
	mock.data["embedding-api-key"] = "sk-test-key-123456"
	oldStore := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return mock }
	t.Cleanup(func() { secretStoreFactory = oldStore })

	dataDir = filepath.Join(home, "data")
	cfgPath = filepath.Join(home, "coverly.yaml")
	content := fmt.Sprintf(`server:
  listen: "127.0.0.1:18088"
storage:
  data_dir: %q
  vector_dimensions: %d
embedding:
  provider: openai
  api_key: "keyring://coverly/embedding-api-key"
  chunk_size: 40
  chunk_overlap: 0
`, dataDir, testDims)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))
	return cfgPath, dataDir
}

// newTestRoot returns a root command over a fresh global Viper, so no
// config file from an earlier test leaks in.
func newTestRoot(t *testing.T) *cobra.Command {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	return NewRootCmd()
}

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newTestRoot(t)
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// writeCV writes a content file under dir and returns its path.
func writeCV(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}
