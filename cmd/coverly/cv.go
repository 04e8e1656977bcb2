// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coverly-dev/coverly/internal/coordinator"
	"github.com/coverly-dev/coverly/internal/store"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

func newCVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cv",
		Short: "Manage CVs directly against the local stores",
		Long: "Create, inspect, update, delete, and search CVs without a running server. " +
			"Every command goes through the same coordinator the HTTP API uses.",
	}

	cmd.AddCommand(
		newCVAddCmd(),
		newCVGetCmd(),
		newCVListCmd(),
		newCVUpdateCmd(),
		newCVDeleteCmd(),
		newCVSearchCmd(),
	)

	return cmd
}

func newCVAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <content-file>",
		Short: "Store a CV and embed its text",
		Args:  cobra.ExactArgs(1),
		RunE:  runCVAdd,
	}
	f := cmd.Flags()
	f.String("source-id", "", "join key shared by the document and its vectors")
	f.String("owner-id", "", "owner of the CV")
	f.String("filename", "", "stored filename; defaults to the content file's base name")
	f.String("original-filename", "", "filename as uploaded")
	f.String("storage-path", "", "where the original file is kept")
	f.String("mime-type", "", "MIME type of the original file")
	_ = cmd.MarkFlagRequired("source-id")
	_ = cmd.MarkFlagRequired("owner-id")
	return cmd
}

func newCVGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one CV",
		Args:  cobra.ExactArgs(1),
		RunE:  runCVGet,
	}
}

func newCVListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an owner's CVs, newest first",
		RunE:  runCVList,
	}
	cmd.Flags().String("owner-id", "", "owner whose CVs to list")
	cmd.Flags().Int("limit", 50, "page size, 0 for all")
	cmd.Flags().Int("offset", 0, "rows to skip")
	_ = cmd.MarkFlagRequired("owner-id")
	return cmd
}

func newCVUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Patch a CV's metadata, optionally replacing its content",
		Args:  cobra.ExactArgs(1),
		RunE:  runCVUpdate,
	}
	f := cmd.Flags()
	f.String("content", "", "new content file; its embeddings replace the old ones")
	f.String("source-id", "", "new source ID; requires --content")
	f.String("filename", "", "new filename")
	f.String("original-filename", "", "new original filename")
	f.String("storage-path", "", "new storage path")
	f.Int64("byte-size", 0, "new byte size")
	f.String("mime-type", "", "new MIME type")
	f.String("status", "", "new status: active, processing or failed")
	return cmd
}

func newCVDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a CV and its embeddings",
		Args:  cobra.ExactArgs(1),
		RunE:  runCVDelete,
	}
}

func newCVSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the CV chunks closest to a query",
		Args:  cobra.ExactArgs(1),
		RunE:  runCVSearch,
	}
	cmd.Flags().Int("top-k", 5, "number of results")
	cmd.Flags().String("owner-id", "", "restrict to one owner")
	cmd.Flags().String("source-id", "", "restrict to one CV")
	return cmd
}

// withApp wires the app for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(context.Context, *App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Logging, viper.GetBool("verbose"))
	ctx := cmd.Context()

	app, err := WireApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("closing stores", "error", err)
		}
	}()

	return fn(ctx, app)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, coverr.Errorf(coverr.CodeCLIInputInvalid, "invalid document id %q", arg)
	}
	return id, nil
}

func runCVAdd(cmd *cobra.Command, args []string) error {
	contentPath := args[0]
	info, err := os.Stat(contentPath)
	if err != nil {
		return coverr.Errorf(coverr.CodeCLIInputInvalid, "reading content file: %w", err)
	}

	f := cmd.Flags()
	sourceID, _ := f.GetString("source-id")
	ownerID, _ := f.GetString("owner-id")
	filename, _ := f.GetString("filename")
	original, _ := f.GetString("original-filename")
	storagePath, _ := f.GetString("storage-path")
	mimeType, _ := f.GetString("mime-type")
	if filename == "" {
		filename = filepath.Base(contentPath)
	}
	if original == "" {
		original = filename
	}
	if storagePath == "" {
		storagePath = contentPath
	}

	req := coordinator.CreateRequest{
		ContentRef: contentPath,
		Document: store.Document{
			SourceID:         sourceID,
			OwnerID:          ownerID,
			Filename:         filename,
			OriginalFilename: original,
			StoragePath:      storagePath,
			ByteSize:         info.Size(),
			MimeType:         mimeType,
			UploadAgent:      "coverly-cli/" + version,
		},
	}

	return withApp(cmd, func(ctx context.Context, app *App) error {
		doc, err := app.Coordinator.Create(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd, doc)
	})
}

func runCVGet(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, app *App) error {
		doc, err := app.Coordinator.Get(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(cmd, doc)
	})
}

func runCVList(cmd *cobra.Command, _ []string) error {
	ownerID, _ := cmd.Flags().GetString("owner-id")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	return withApp(cmd, func(ctx context.Context, app *App) error {
		docs, err := app.Coordinator.List(ctx, ownerID, store.ListOpts{Limit: limit, Offset: offset})
		if err != nil {
			return err
		}
		if docs == nil {
			docs = []*store.Document{}
		}
		return printJSON(cmd, docs)
	})
}

// updatePatch sets only the fields whose flags were given, so an explicit
// empty value is distinguishable from an absent one.
func updatePatch(cmd *cobra.Command) store.DocumentPatch {
	f := cmd.Flags()
	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return store.String(v)
	}

	patch := store.DocumentPatch{
		SourceID:         str("source-id"),
		Filename:         str("filename"),
		OriginalFilename: str("original-filename"),
		StoragePath:      str("storage-path"),
		MimeType:         str("mime-type"),
	}
	if f.Changed("byte-size") {
		v, _ := f.GetInt64("byte-size")
		patch.ByteSize = store.Int64(v)
	}
	if s := str("status"); s != nil {
		patch.Status = store.Status(store.DocumentStatus(*s))
	}
	return patch
}

func runCVUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	content, _ := cmd.Flags().GetString("content")
	req := coordinator.UpdateRequest{
		DocumentID: id,
		ContentRef: content,
		Patch:      updatePatch(cmd),
	}

	return withApp(cmd, func(ctx context.Context, app *App) error {
		doc, err := app.Coordinator.Update(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd, doc)
	})
}

func runCVDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, app *App) error {
		if err := app.Coordinator.Delete(ctx, id); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted cv %d\n", id)
		return err
	})
}

func runCVSearch(cmd *cobra.Command, args []string) error {
	topK, _ := cmd.Flags().GetInt("top-k")
	ownerID, _ := cmd.Flags().GetString("owner-id")
	sourceID, _ := cmd.Flags().GetString("source-id")

	return withApp(cmd, func(ctx context.Context, app *App) error {
		results, err := app.Coordinator.Search(ctx, args[0], topK, store.PointFilter{
			SourceID: sourceID,
			OwnerID:  ownerID,
		})
		if err != nil {
			return err
		}
		if results == nil {
			results = []store.VectorResult{}
		}
		return printJSON(cmd, results)
	})
}
