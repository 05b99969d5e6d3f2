// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/g4chat/internal/api"
	"github.com/jeranaias/g4chat/internal/export"
)

// =============================================================================
// EXPORT COMMAND
// =============================================================================

func newExportCommand(o *rootOptions) *cobra.Command {
	var (
		format     string
		outputDir  string
		theme      string
		toStdout   bool
		offline    bool
		open       bool
		noMetadata bool
	)
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write a session transcript to a Markdown, JSON or HTML file",
		Long: `Write a session transcript to a file.

The transcript is fetched from the backend, or read from the local
archive with --offline. HTML pages render message Markdown and strip
any markup or script the messages contain.`,
		Example: `  g4chat export 42
  g4chat export 42 --format html --open
  g4chat export 42 --offline --stdout | less`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			opts := export.DefaultOptions()
			opts.OutputDir = outputDir
			opts.OpenAfterExport = open && !toStdout
			opts.IncludeMetadata = !noMetadata
			opts.Theme = theme

			exp, err := export.ForFormat(format, opts)
			if err != nil {
				return &ValidationError{Field: "format", Value: format, Reason: "unsupported", Example: "--format " + strings.Join(export.Formats, "|")}
			}

			t, err := loadTranscript(cmd.Context(), a, args[0], offline)
			if err != nil {
				return err
			}

			if toStdout {
				content, err := exp.Export(t)
				if err != nil {
					return err
				}
				_, err = a.out.Write(content)
				return err
			}

			path, err := export.ToFile(t, exp, opts)
			if err != nil && path == "" {
				return err
			}
			if err != nil {
				a.Logger.Warn("open after export failed", zap.String("path", path), zap.Error(err))
			}
			return o.emit(a.out, "export", map[string]any{
				"session_id": t.Session.ID,
				"path":       path,
				"format":     exp.FileExtension()[1:],
				"messages":   len(t.Messages),
			}, func() error {
				fmt.Fprintf(a.out, "%s %s\n", RenderConditional(SuccessStyle, "Exported"), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format: "+strings.Join(export.Formats, ", "))
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory to write to")
	cmd.Flags().StringVar(&theme, "theme", "dark", "HTML theme: dark or light")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "write to stdout instead of a file")
	cmd.Flags().BoolVar(&offline, "offline", false, "read the transcript from the local archive")
	cmd.Flags().BoolVar(&open, "open", false, "open the file when done")
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "leave out the session header")
	return cmd
}

// loadTranscript fetches a session and its messages, from the archive when
// offline is set.
func loadTranscript(ctx context.Context, a *App, id string, offline bool) (*export.Transcript, error) {
	project, _ := a.State.Project(id)

	if offline {
		arch, err := a.Archive()
		if err != nil {
			return nil, err
		}
		sessions, err := arch.LoadSessions(ctx)
		if err != nil {
			return nil, err
		}
		msgs, err := arch.LoadMessages(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, s := range sessions {
			if s.ID == id {
				return &export.Transcript{Session: s, Messages: msgs, Project: project}, nil
			}
		}
		return nil, fmt.Errorf("session %s is not archived: %w", id, api.ErrNotFound)
	}

	sess, err := a.Chat.SelectSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := archiveOpenSession(ctx, a, sess); err != nil {
		a.Logger.Warn("archive not updated", zap.String("session_id", sess.ID), zap.Error(err))
	}
	return &export.Transcript{Session: sess, Messages: a.Store.Messages(), Project: project}, nil
}
