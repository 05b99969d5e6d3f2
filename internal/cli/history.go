// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/g4chat/internal/model"
)

// =============================================================================
// HISTORY COMMAND
// =============================================================================

// The archive only holds what this client has seen, so history works
// without the backend.
func newHistoryCommand(o *rootOptions) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Read archived sessions offline",
		Long: `Read the local archive of sessions and transcripts.

Without an id the archived session list is printed. With an id that
session's archived transcript is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := o.app
			arch, err := a.Archive()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				msgs, err := arch.LoadMessages(ctx, args[0])
				if err != nil {
					return err
				}
				return o.emit(a.out, "history", messageInfos(msgs), func() error {
					printTranscript(a.out, msgs)
					return nil
				})
			}

			sessions, err := arch.LoadSessions(ctx)
			if err != nil {
				return err
			}
			if filter != "" {
				sessions = filterByTitle(sessions, filter)
			}
			projects := a.State.Projects()
			return o.emit(a.out, "history", sessionInfos(sessions, projects), func() error {
				if len(sessions) == 0 && filter == "" {
					fmt.Fprintln(a.out, RenderConditional(DimStyle, "The archive is empty. "+historyHint()))
					return nil
				}
				printSessionTable(a.out, sessions, "", projects)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "only sessions whose title contains this text")
	return cmd
}

func filterByTitle(sessions []model.Session, text string) []model.Session {
	text = strings.ToLower(text)
	var out []model.Session
	for _, s := range sessions {
		if strings.Contains(strings.ToLower(s.DisplayTitle()), text) {
			out = append(out, s)
		}
	}
	return out
}

// historyHint is printed when the archive has nothing to show yet.
func historyHint() string {
	return fmt.Sprintf("Open a session with %q to archive it.", "g4chat sessions show <id>")
}
