// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coverly-dev/coverly/internal/config"
	"github.com/coverly-dev/coverly/internal/secrets"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// NewRootCmd creates the root coverly command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coverly",
		Short:         "Coverly keeps CV metadata and embeddings in step",
		Long:          "Coverly stores CV documents in a relational store and their embeddings in a vector store, and keeps the two consistent across updates and deletes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newCVCmd(),
		newSecretCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and an optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return coverr.Errorf(coverr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
		config.WarnInsecurePermissions(cfgFile)
	} else {
		// SetConfigType stays unset: with it, Viper also tries the bare name,
		// which matches a ./coverly binary.
		v.SetConfigName("coverly")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/coverly")
		v.AddConfigPath("/etc/coverly")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return coverr.Errorf(coverr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return coverr.Errorf(coverr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		} else {
			config.WarnInsecurePermissions(v.ConfigFileUsed())
		}
	}

	if err := v.BindPFlag("storage.data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return coverr.Errorf(coverr.CodeCLISetupFailure, "binding data-dir flag: %w", err)
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return coverr.Errorf(coverr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}

// loadConfig resolves keyring references held by the global Viper and
// decodes the result. Commands that touch the stores or the embedding
// provider call it; secret and status commands do not need a valid config.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	if err := secrets.ResolveViperSecrets(v, secretStoreFactory()); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}
