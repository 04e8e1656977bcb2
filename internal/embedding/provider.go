// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package embedding

import (
	"context"
	"slices"
	"sort"
	"sync"

	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// Provider turns a batch of texts into vectors, one per text and in order.
type Provider interface {
	Name() string
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderConfig holds the settings shared by every provider.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string // optional, useful for testing against a mock server
	Model      string
	Dimensions int
}

// ProviderFactory creates a provider from its configuration.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

var (
	providers   = map[string]ProviderFactory{}
	providersMu sync.RWMutex
)

// RegisterProvider registers a named provider factory. Provider packages call
// this from init(). This function is goroutine-safe.
func RegisterProvider(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewProvider creates the named provider.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	providersMu.RLock()
	factory, ok := providers[name]
	providersMu.RUnlock()
	if !ok {
		return nil, coverr.New(coverr.CodeEmbeddingProviderNotFound, "unknown embedding provider",
			coverr.FieldProvider(name),
			coverr.Field("available", slices.Clone(Providers())))
	}
	return factory(cfg)
}
