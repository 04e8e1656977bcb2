// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/zalando/go-keyring"

	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// indexKey holds the JSON list of key names per service, since keyrings
// cannot enumerate entries portably.
const indexKey = "__coverly_index__"

// KeyringStore implements Store on the OS keyring.
type KeyringStore struct{}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkNames(op, service, key string) error {
	switch {
	case service == "":
		return coverr.Errorf(coverr.CodeSecretInvalidInput, "secret %s: service must not be empty", op)
	case key == "":
		return coverr.Errorf(coverr.CodeSecretInvalidInput, "secret %s: key must not be empty", op)
	case key == indexKey:
		return coverr.Errorf(coverr.CodeSecretInvalidInput, "secret %s: key %q is reserved", op, key)
	}
	return nil
}

func (s *KeyringStore) Set(service, key, value string) error {
	if err := checkNames("set", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return coverr.Wrapf(err, coverr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	})
}

func (s *KeyringStore) Get(service, key string) (string, error) {
	if err := checkNames("get", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", coverr.Errorf(coverr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", coverr.Wrapf(err, coverr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkNames("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return coverr.Errorf(coverr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return coverr.Wrapf(err, coverr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})
}

// List returns the key names stored under service, sorted.
func (s *KeyringStore) List(service string) ([]string, error) {
	if service == "" {
		return nil, coverr.New(coverr.CodeSecretInvalidInput, "secret list: service must not be empty")
	}
	keys, err := loadIndex(service)
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

func loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, coverr.Wrapf(err, coverr.CodeSecretListFailure, "loading key index for %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, coverr.Wrapf(err, coverr.CodeSecretListFailure, "decoding key index for %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) updateIndex(service string, mutate func([]string) []string) error {
	keys, err := loadIndex(service)
	if err != nil {
		return err
	}
	keys = mutate(keys)

	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("failed to remove empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return coverr.Wrapf(err, coverr.CodeSecretListFailure, "encoding key index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return coverr.Wrapf(err, coverr.CodeSecretListFailure, "saving key index for %s", service)
	}
	return nil
}
