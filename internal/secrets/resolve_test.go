// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package secrets_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverly-dev/coverly/internal/secrets"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

func TestIsKeyringURI(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"keyring://coverly/embedding-api-key", true},
		{"keyring://", true},
		{"sk-abc123", false},
		{"", false},
		{"vault://secret/key", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, secrets.IsKeyringURI(tt.value))
		})
	}
}

func TestParseKeyringURI(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		wantService string
		wantKey     string
		wantErr     bool
	}{
		{"valid", "keyring://coverly/api-key", "coverly", "api-key", false},
		{"slashes in key", "keyring://coverly/path/to/key", "coverly", "path/to/key", false},
		{"not a keyring URI", "vault://secret/key", "", "", true},
		{"missing key", "keyring://coverly/", "", "", true},
		{"missing service", "keyring:///key", "", "", true},
		{"missing both", "keyring://", "", "", true},
		{"no path", "keyring://coverly", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, key, err := secrets.ParseKeyringURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, coverr.HasCode(err, coverr.CodeSecretInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantService, svc)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestURI_RoundTrip(t *testing.T) {
	svc, key, err := secrets.ParseKeyringURI(secrets.URI(secrets.DefaultService, "embedding-api-key"))
	require.NoError(t, err)
	assert.Equal(t, "coverly", svc)
	assert.Equal(t, "embedding-api-key", key)
}

func TestResolve(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Set("coverly-resolve", "test-key", "resolved-secret"))

	t.Run("resolves keyring URI", func(t *testing.T) {
		val, err := secrets.Resolve(ks, "keyring://coverly-resolve/test-key")
		require.NoError(t, err)
		assert.Equal(t, "resolved-secret", val)
	})

	t.Run("passes through literal values", func(t *testing.T) {
		val, err := secrets.Resolve(ks, "sk-literal")
		require.NoError(t, err)
		assert.Equal(t, "sk-literal", val)
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := secrets.Resolve(ks, "keyring://coverly-resolve/nonexistent")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "keyring://coverly-resolve/nonexistent")
		assert.True(t, coverr.IsNotFound(err))
	})

	t.Run("malformed URI", func(t *testing.T) {
		_, err := secrets.Resolve(ks, "keyring://bad")
		require.Error(t, err)
		assert.True(t, coverr.HasCode(err, coverr.CodeSecretInvalidInput))
	})
}

func TestResolveViperSecrets(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Set("coverly-viper", "embedding-api-key", "sk-oai-secret"))

	v := viper.New()
	v.Set("embedding.api_key", "keyring://coverly-viper/embedding-api-key")
	v.Set("server.listen", "127.0.0.1:8088")

	require.NoError(t, secrets.ResolveViperSecrets(v, ks))
	assert.Equal(t, "sk-oai-secret", v.GetString("embedding.api_key"))
	assert.Equal(t, "127.0.0.1:8088", v.GetString("server.listen"))
}

func TestResolveViperSecrets_ReportsEveryFailure(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Set("coverly-partial", "present", "value"))

	v := viper.New()
	v.Set("embedding.api_key", "keyring://coverly-partial/absent")
	v.Set("embedding.base_url", "keyring://broken")
	v.Set("other.secret", "keyring://coverly-partial/present")

	err := secrets.ResolveViperSecrets(v, ks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.api_key")
	assert.Contains(t, err.Error(), "embedding.base_url")
	assert.Equal(t, "value", v.GetString("other.secret"), "resolvable keys are still resolved")
	assert.Equal(t, "keyring://coverly-partial/absent", v.GetString("embedding.api_key"))
}
