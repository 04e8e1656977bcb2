// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coverly-dev/coverly/internal/server"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Query a running server's health endpoint and report its status and embedding provider health.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:8088", "server address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	var body server.HealthBody
	if err := newAPIClient(addr).getJSON("/health", &body); err != nil {
		if errors.Is(err, ErrServerNotRunning) {
			_, _ = fmt.Fprintf(out, "coverly at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "coverly at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "coverly at %s: %s\n", addr, body.Status)
	if m := body.Embedding; m != nil && !m.Available {
		_, _ = fmt.Fprintf(out, "embedding provider cooling down after %d failures", m.FailureCount)
		if m.CooldownUntil != nil {
			_, _ = fmt.Fprintf(out, " until %s", m.CooldownUntil.Format("15:04:05"))
		}
		if m.LastErrorCode != "" {
			_, _ = fmt.Fprintf(out, " (last error %s)", m.LastErrorCode)
		}
		_, _ = fmt.Fprintln(out)
	}
	return nil
}
