// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/coverly-dev/coverly/internal/config"
	"github.com/coverly-dev/coverly/internal/secrets"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

const redacted = "<redacted>"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the merged configuration with secrets redacted",
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file in use",
			RunE:  runConfigPath,
		},
	)

	return cmd
}

// runConfigShow decodes the config without resolving keyring references, so
// it works before any secret is stored.
func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}
	if cfg.Embedding.APIKey != "" && !secrets.IsKeyringURI(cfg.Embedding.APIKey) {
		cfg.Embedding.APIKey = redacted
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return coverr.Errorf(coverr.CodeCLISetupFailure, "encoding config: %w", err)
	}
	return enc.Close()
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = "(none, using defaults)"
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
	return err
}
