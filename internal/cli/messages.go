// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/g4chat/internal/model"
)

// =============================================================================
// MESSAGES COMMAND
// =============================================================================

func newMessagesCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "messages",
		Aliases: []string{"msg", "m"},
		Short:   "Read and change a session's messages",
	}
	cmd.AddCommand(
		newMessagesListCommand(o),
		newMessagesEditCommand(o),
		newMessagesDeleteCommand(o),
		newMessagesRegenerateCommand(o),
	)
	return cmd
}

// requireSession validates the --session flag.
func requireSession(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "session", Reason: "required", Example: "--session 42"}
	}
	return nil
}

// printMessages writes the open transcript, as JSON in --json mode.
func printMessages(o *rootOptions, command string) error {
	a := o.app
	msgs := a.Store.Messages()
	return o.emit(a.out, command, messageInfos(msgs), func() error {
		printTranscript(a.out, msgs)
		return nil
	})
}

func newMessagesListCommand(o *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Print a session's transcript",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(sessionID); err != nil {
				return err
			}
			a := o.app
			sess, err := a.Chat.SelectSession(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			if err := archiveOpenSession(cmd.Context(), a, sess); err != nil {
				a.Logger.Warn("archive not updated", zap.String("session_id", sess.ID), zap.Error(err))
			}
			return printMessages(o, "messages list")
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id")
	return cmd
}

func newMessagesEditCommand(o *rootOptions) *cobra.Command {
	var (
		sessionID  string
		regenerate bool
	)
	cmd := &cobra.Command{
		Use:   "edit <message-id> <content...>",
		Short: "Change a message",
		Long: `Change a message's content.

Without --regenerate the edit only changes your local copy of the
transcript. With --regenerate the backend applies the edit and writes a
new reply after it.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(sessionID); err != nil {
				return err
			}
			ctx := cmd.Context()
			a := o.app
			sess, err := a.Chat.SelectSession(ctx, sessionID)
			if err != nil {
				return err
			}
			if err := a.Chat.EditMessage(ctx, args[0], strings.Join(args[1:], " "), regenerate); err != nil {
				return err
			}
			if err := archiveOpenSession(ctx, a, sess); err != nil {
				a.Logger.Warn("archive not updated", zap.String("session_id", sess.ID), zap.Error(err))
			}
			return printMessages(o, "messages edit")
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id")
	cmd.Flags().BoolVarP(&regenerate, "regenerate", "r", false, "apply on the backend and regenerate the reply")
	return cmd
}

func newMessagesDeleteCommand(o *rootOptions) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:     "delete <message-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a message",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			id := args[0]
			ok, err := RequireConfirmation(a.in, a.errOut, "delete message "+id, ConfirmationOptions{
				ConfirmFlag: confirm,
				JSONMode:    o.jsonMode,
			})
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.errOut, "Cancelled.")
				return nil
			}
			if err := a.Chat.DeleteMessage(cmd.Context(), id); err != nil {
				return err
			}
			return o.emit(a.out, "messages delete", map[string]string{"deleted": id}, func() error {
				fmt.Fprintln(a.out, RenderConditional(SuccessStyle, "Deleted message "+id))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "skip the confirmation prompt")
	return cmd
}

func newMessagesRegenerateCommand(o *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:     "regenerate",
		Aliases: []string{"regen"},
		Short:   "Replace the last reply with a new one",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(sessionID); err != nil {
				return err
			}
			ctx := cmd.Context()
			a := o.app
			a.Store.SetCurrent(sessionID)
			if err := a.Chat.RegenerateResponse(ctx, sessionID); err != nil {
				return err
			}
			reply, ok := lastAssistant(a.Store.Messages())
			if !ok {
				return o.emit(a.out, "messages regenerate", nil, func() error { return nil })
			}
			return o.emit(a.out, "messages regenerate", messageInfos([]model.Message{reply}), func() error {
				displayReply(a.out, reply.Content)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id")
	return cmd
}
